package mqtt

import (
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/packyr/tahoma2mqtt/internal/tahoma"
)

type haDevice struct {
	Identifiers  []string `json:"ids,omitempty"`
	Manufacturer string   `json:"mf,omitempty"`
	Model        string   `json:"mdl,omitempty"`
	Name         string   `json:"name,omitempty"`
	SWVersion    string   `json:"sw,omitempty"`
}

type haEntity struct {
	UniqueID    string `json:"uniq_id,omitempty"`
	Name        string `json:"name,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`

	Device haDevice `json:"device,omitempty"`
}

type haCover struct {
	haEntity
	CommandTopic string `json:"cmd_t"`
	PayloadOpen  string `json:"pl_open"`
	PayloadStop  string `json:"pl_stop"`
	PayloadClose string `json:"pl_cls"`
}

// NewHACoverFromBridge builds a Home Assistant cover entity whose command
// payloads are the JSON control payloads this bridge accepts.
func NewHACoverFromBridge(bridge *Bridge) haCover {
	return haCover{
		haEntity: haEntity{
			UniqueID:    bridge.device.Name,
			Name:        bridge.device.Name,
			DeviceClass: "shutter",

			Device: haDevice{
				Identifiers:  []string{"tahoma2mqtt"},
				Manufacturer: "Somfy",
				Model:        "TaHoma",
				Name:         bridge.device.Name,
				SWVersion:    "tahoma2mqtt",
			},
		},
		CommandTopic: bridge.CommandTopic,
		PayloadOpen:  controlPayloadJSON(tahoma.ActionOpen),
		PayloadStop:  controlPayloadJSON(tahoma.ActionStop),
		PayloadClose: controlPayloadJSON(tahoma.ActionClose),
	}
}

func controlPayloadJSON(action tahoma.Action) string {
	payload, _ := json.Marshal(tahoma.ControlPayload{Action: string(action)})
	return string(payload)
}

func PublishHAAutoDiscovery(client paho.Client, homeAssistantDiscoveryTopicPrefix string, haCover haCover) error {
	topic := fmt.Sprintf("%s/cover/tahoma2mqtt/%s/config", homeAssistantDiscoveryTopicPrefix, haCover.Name)

	payload, err := json.Marshal(haCover)
	if err != nil {
		return err
	}

	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}
