package main

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/packyr/tahoma2mqtt/internal/mqtt"
	"github.com/packyr/tahoma2mqtt/internal/tahoma"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type cfgMQTT struct { // todo more fields
	ClientID string `yaml:"client_id" default:"tahoma2mqtt" env:"CLIENT_ID"`
	Broker   string `yaml:"broker" default:"127.0.0.1:1883" env:"BROKER"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type cfgGateway struct {
	URL          string        `yaml:"url" default:"https://tahomalink.com/enduser-mobile-web/externalAPI/json" env:"URL"`
	Username     string        `yaml:"username" env:"USERNAME"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	PollInterval time.Duration `yaml:"poll_interval" default:"2500ms" env:"POLL_INTERVAL"`
}

type cfgHASS struct {
	Enabled     bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	TopicPrefix string `yaml:"topic_prefix" default:"homeassistant" env:"TOPIC_PREFIX"`
}

type cfgMetrics struct {
	Enabled bool   `yaml:"enabled" default:"true" env:"ENABLED"`
	Addr    string `yaml:"addr" default:":9672" env:"ADDR"`
}

type cfgDevice struct {
	Name      string `yaml:"name"`
	DeviceURL string `yaml:"device_url"`
}

var Cfg struct {
	LogLevel string `yaml:"log_level" default:"info" env:"LOG_LEVEL"`

	MQTT    cfgMQTT    `yaml:"mqtt" env:"MQTT"`
	Gateway cfgGateway `yaml:"gateway" env:"GATEWAY"`
	HASS    cfgHASS    `yaml:"hass" env:"HASS"`
	Metrics cfgMetrics `yaml:"metrics" env:"METRICS"`

	Devices []cfgDevice `yaml:"devices"`
}

var configLoader = aconfig.LoaderFor(&Cfg, aconfig.Config{
	EnvPrefix: "T2M",
})

func loadConfigFromYamlFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		logrus.Error(err)
		return
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&Cfg); err != nil {
		logrus.Fatal(err)
		return
	}
}

func pahoOptsFromConfig() *paho.ClientOptions {
	return paho.NewClientOptions().
		SetClientID(Cfg.MQTT.ClientID).
		AddBroker(Cfg.MQTT.Broker).
		SetUsername(Cfg.MQTT.Username).
		SetPassword(Cfg.MQTT.Password).
		SetConnectTimeout(time.Second).
		SetPingTimeout(time.Second).
		SetWriteTimeout(time.Second).
		SetAutoReconnect(true)
}

func bridgesFromConfig(client paho.Client, gw mqtt.GatewayClient) (bridges []*mqtt.Bridge) {
	for _, cfg := range Cfg.Devices {
		if cfg.Name == "" || cfg.DeviceURL == "" {
			logrus.Fatalf("%s: device entries need both name and device_url", cfg.Name)
			continue
		}

		tracker := tahoma.NewTracker(Cfg.Gateway.PollInterval)
		device := mqtt.Device{Name: cfg.Name, DeviceURL: cfg.DeviceURL}
		bridges = append(bridges, mqtt.NewBridge(client, gw, tracker, device))
	}

	return bridges
}
