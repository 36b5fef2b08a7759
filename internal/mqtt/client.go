package mqtt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"

	"intelliclima2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("intelliclima_%d", rand.IntN(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client:               mqtt.NewClient(opts),
		cfg:                  cfg.MQTT,
		climateCommandRegexp: climateCommandExtractor(cfg.MQTT.BaseTopic),
		fanCommandRegexp:     fanCommandExtractor(cfg.MQTT.BaseTopic),
	}
}

type MQTTClient struct {
	client               mqtt.Client
	cfg                  config.MQTTConfig
	climateCommandRegexp *regexp.Regexp
	fanCommandRegexp     *regexp.Regexp
}

// ParsedMQTTCommand is one device command received on a `set` topic.
// Command is the topic leaf: temperature, mode, percentage, preset or
// power.
type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", c.baseTopic(), sensorId)
}

func (c *MQTTClient) ClimateStateTopic(deviceId, field string) string {
	return fmt.Sprintf("%s/climate/%s/%s/state", c.baseTopic(), deviceId, field)
}

func (c *MQTTClient) ClimateCommandTopic(deviceId, field string) string {
	return fmt.Sprintf("%s/climate/%s/%s/set", c.baseTopic(), deviceId, field)
}

func (c *MQTTClient) FanStateTopic(deviceId, field string) string {
	return fmt.Sprintf("%s/fan/%s/%s/state", c.baseTopic(), deviceId, field)
}

func (c *MQTTClient) FanCommandTopic(deviceId, field string) string {
	return fmt.Sprintf("%s/fan/%s/%s/set", c.baseTopic(), deviceId, field)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	climateCmd, err := c.parseClimateMQTTCommand(msg)
	if err == nil {
		return climateCmd, nil
	}
	fanCmd, err := c.parseFanMQTTCommand(msg)
	if err == nil {
		return fanCmd, nil
	}
	return nil, err
}

func (c *MQTTClient) parseClimateMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	topic := msg.Topic()
	matches := c.climateCommandRegexp.FindAllStringSubmatch(topic, 1)
	if len(matches) == 0 {
		return nil, errors.New("invalid command")
	}
	if len(matches[0]) != 3 {
		return nil, errors.New("invalid climate command")
	}

	command := matches[0][2]
	if command == "temperature" {
		// reject garbage before it reaches the cloud
		if _, err := strconv.ParseFloat(string(msg.Payload()), 64); err != nil {
			return nil, err
		}
	}

	return &ParsedMQTTCommand{
		DeviceId: matches[0][1],
		Command:  command,
		Payload:  string(msg.Payload()),
	}, nil
}

func (c *MQTTClient) parseFanMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	topic := msg.Topic()
	matches := c.fanCommandRegexp.FindAllStringSubmatch(topic, 1)
	if len(matches) == 0 {
		return nil, errors.New("invalid command")
	}
	if len(matches[0]) != 3 {
		return nil, errors.New("invalid fan command")
	}

	command := matches[0][2]
	if command == "percentage" {
		if _, err := strconv.ParseUint(string(msg.Payload()), 10, 8); err != nil {
			return nil, err
		}
	}

	return &ParsedMQTTCommand{
		DeviceId: matches[0][1],
		Command:  command,
		Payload:  string(msg.Payload()),
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	token := c.client.Unsubscribe(topic)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/#", c.baseTopic())
}

func climateCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("%s/climate/([a-zA-Z0-9_]+)/(temperature|mode)/set", baseTopic))
}

func fanCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("%s/fan/([a-zA-Z0-9_]+)/(percentage|preset|power)/set", baseTopic))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
