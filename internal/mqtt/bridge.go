package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/packyr/tahoma2mqtt/internal/metrics"
	"github.com/packyr/tahoma2mqtt/internal/tahoma"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// GatewayClient is the narrow slice of the gateway API the bridge consumes.
type GatewayClient interface {
	Execute(ctx context.Context, deviceURL string, cmd tahoma.Command) (string, error)
	ExecutionStatus(ctx context.Context, execID string) (*tahoma.ExecutionStatus, error)
}

// Status is the display status published for UIs: fill conveys severity,
// shape the phase, text the human-readable label.
type Status struct {
	Fill  string `json:"fill"`
	Shape string `json:"shape"`
	Text  string `json:"text"`
}

func progressStatus(text string) Status { return Status{Fill: "yellow", Shape: "ring", Text: text} }
func doneStatus(text string) Status     { return Status{Fill: "green", Shape: "dot", Text: text} }
func unknownStatus() Status             { return Status{Fill: "grey", Shape: "ring", Text: "Unknown"} }

// Device identifies one gateway device a bridge drives.
type Device struct {
	Name      string
	DeviceURL string
}

// Bridge wires one device's MQTT control topic to the gateway: it resolves
// inbound control payloads, dispatches the resulting commands and reflects
// execution progress back on the status topic.
type Bridge struct {
	mqtt    paho.Client
	gateway GatewayClient
	tracker *tahoma.Tracker
	device  Device

	StatusTopic  string
	EventsTopic  string
	CommandTopic string
}

func NewBridge(mqtt paho.Client, gateway GatewayClient, tracker *tahoma.Tracker, device Device) *Bridge {
	bridge := &Bridge{mqtt: mqtt, gateway: gateway, tracker: tracker, device: device}
	bridge.StatusTopic = fmt.Sprintf("tahoma2mqtt/%s/status", device.Name)
	bridge.EventsTopic = fmt.Sprintf("tahoma2mqtt/%s/events", device.Name)
	bridge.CommandTopic = fmt.Sprintf("tahoma2mqtt/%s/set", device.Name)
	return bridge
}

func (b *Bridge) Subscribe(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if token := b.mqtt.Unsubscribe(b.CommandTopic); token.Wait() && token.Error() != nil {
			logrus.Errorf("%s: MQTT command topic unsubscribe failed: %s", b.device.Name, token.Error())
		}
	}()

	if token := b.mqtt.Subscribe(b.CommandTopic, 0, b.onControlHandler(ctx)); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "%s: MQTT command topic subscription failed", b.device.Name)
	}
	logrus.Infof("%s: MQTT command topic subscribed", b.device.Name)

	return nil
}

func (b *Bridge) onControlHandler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		payload := msg.Payload()
		// Each control message gets its own goroutine so a long polling
		// chain never blocks the MQTT router or another invocation.
		go func() {
			if err := b.Dispatch(ctx, payload); err != nil {
				logrus.Errorf("%s: control dispatch failed: %s", b.device.Name, err)
			}
		}()
	}
}

// Dispatch resolves one control payload, issues the resulting command and
// drives the visible status to its terminal value. Instructions with an
// expected terminal state report progress immediately, then poll the gateway
// until the execution is no longer pending and report done. Instructions
// without one (stop) skip polling and report unknown right away. Either way
// the original payload is forwarded to the events topic exactly once, after
// the terminal status. Unrecognized actions are silently ignored; gateway
// errors abort the invocation with no status rollback and no forward.
func (b *Bridge) Dispatch(ctx context.Context, raw []byte) error {
	var payload tahoma.ControlPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errors.Wrapf(err, "%s: control payload decode", b.device.Name)
	}

	instr, ok := tahoma.Resolve(payload)
	if !ok {
		metrics.UnrecognizedTotal.Inc()
		logrus.Debugf("%s: ignoring unsupported action %q", b.device.Name, payload.Action)
		return nil
	}

	cmd := instr.WireCommand(payload.LowSpeed)
	execID, err := b.gateway.Execute(ctx, b.device.DeviceURL, cmd)
	if err != nil {
		metrics.CommandFailures.Inc()
		return errors.Wrapf(err, "%s: %s command failed", b.device.Name, cmd.Name)
	}
	metrics.CommandsTotal.WithLabelValues(cmd.Name).Inc()
	logrus.Infof("%s: %s accepted as execution %s", b.device.Name, cmd.Name, execID)

	if instr.Expected == nil {
		b.publishStatus(unknownStatus())
		b.forward(raw)
		return nil
	}

	b.publishStatus(progressStatus(instr.Labels.Progress))

	if err := b.tracker.Track(ctx, execID, b.probe()); err != nil {
		return errors.Wrapf(err, "%s: completion tracking aborted", b.device.Name)
	}
	metrics.CompletionsTotal.Inc()
	logrus.Infof("%s: execution %s completed", b.device.Name, execID)

	b.publishStatus(doneStatus(instr.Labels.Done))
	b.forward(raw)

	return nil
}

func (b *Bridge) probe() tahoma.StatusProbe {
	return func(ctx context.Context, execID string) (*tahoma.ExecutionStatus, error) {
		metrics.PollsTotal.Inc()
		return b.gateway.ExecutionStatus(ctx, execID)
	}
}

func (b *Bridge) publishStatus(status Status) {
	payload, err := json.Marshal(status)
	if err != nil {
		logrus.Errorf("%s: status encode failed: %s", b.device.Name, err)
		return
	}
	if token := b.mqtt.Publish(b.StatusTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT status publish failed: %s", b.device.Name, token.Error())
	}
}

func (b *Bridge) forward(raw []byte) {
	if token := b.mqtt.Publish(b.EventsTopic, 0, false, raw); token.Wait() && token.Error() != nil {
		logrus.Errorf("%s: MQTT event publish failed: %s", b.device.Name, token.Error())
	}
}
