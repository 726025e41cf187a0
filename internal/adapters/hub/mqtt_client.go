// Package hub forwards telemetry batches to the IoT hub over MQTT and
// bridges direct-method requests to the method dispatcher. The hub side
// speaks plain MQTT topics; device-twin semantics are not part of this
// transport.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AshyBoy91/jetsonazure/internal/domain"
	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 10 * time.Second
)

type Config struct {
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`

	// Topic layout. Defaults derive from the device id.
	TelemetryTopic       string `yaml:"telemetry_topic"`
	MethodRequestFilter  string `yaml:"method_request_filter"`
	MethodResponsePrefix string `yaml:"method_response_prefix"`
	StateTopic           string `yaml:"state_topic"`

	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

func (c *Config) ApplyDefaults(deviceID string) {
	if c.ClientID == "" {
		c.ClientID = deviceID
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = fmt.Sprintf("devices/%s/telemetry", deviceID)
	}
	if c.MethodRequestFilter == "" {
		c.MethodRequestFilter = fmt.Sprintf("devices/%s/methods/req/+/+", deviceID)
	}
	if c.MethodResponsePrefix == "" {
		c.MethodResponsePrefix = fmt.Sprintf("devices/%s/methods/res", deviceID)
	}
	if c.StateTopic == "" {
		c.StateTopic = fmt.Sprintf("devices/%s/state", deviceID)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
}

func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return fmt.Errorf("hub: broker_url is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("hub: client_id is required")
	}
	return nil
}

// Client implements ports.Publisher over MQTT and routes incoming
// method requests to a ports.MethodDispatcher.
type Client struct {
	cfg        Config
	obs        ports.Observability
	dispatcher ports.MethodDispatcher
	mqtt       mqtt.Client
}

func NewClient(cfg Config, dispatcher ports.MethodDispatcher, obs ports.Observability) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, obs: obs, dispatcher: dispatcher}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logError("hub connection lost", err)
	})

	c.mqtt = mqtt.NewClient(opts)
	return c, nil
}

func (c *Client) Name() string { return "mqtt-hub" }

// Connect blocks until the broker accepts the session or the timeout
// elapses. The method subscription is re-established on every reconnect.
func (c *Client) Connect() error {
	tok := c.mqtt.Connect()
	if !tok.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("hub: connect to %s timed out", c.cfg.BrokerURL)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("hub: connect to %s: %w", c.cfg.BrokerURL, err)
	}
	return nil
}

func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}

// PublishBatch sends one JSON array of samples to the telemetry topic.
func (c *Client) PublishBatch(samples []*domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	payload, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("hub: encode batch: %w", err)
	}
	return c.publish(c.cfg.TelemetryTopic, payload)
}

// PublishState reports the device state document, e.g. after a
// configuration change.
func (c *Client) PublishState(state any) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("hub: encode state: %w", err)
	}
	return c.publish(c.cfg.StateTopic, payload)
}

func (c *Client) publish(topic string, payload []byte) error {
	tok := c.mqtt.Publish(topic, c.cfg.QoS, false, payload)
	if !tok.WaitTimeout(c.cfg.PublishTimeout) {
		return fmt.Errorf("hub: publish to %s timed out", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("hub: publish to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) onConnect(cl mqtt.Client) {
	c.logInfo("hub connected", ports.Field{Key: "broker", Value: c.cfg.BrokerURL})
	if c.dispatcher == nil {
		return
	}
	tok := cl.Subscribe(c.cfg.MethodRequestFilter, c.cfg.QoS, c.handleMethodRequest)
	if !tok.WaitTimeout(c.cfg.ConnectTimeout) || tok.Error() != nil {
		c.logError("method subscription failed", tok.Error(),
			ports.Field{Key: "filter", Value: c.cfg.MethodRequestFilter})
	}
}

func (c *Client) handleMethodRequest(_ mqtt.Client, msg mqtt.Message) {
	method, rid, err := parseMethodTopic(msg.Topic())
	if err != nil {
		c.logError("malformed method topic", err, ports.Field{Key: "topic", Value: msg.Topic()})
		return
	}

	// paho delivers on its own goroutine per SetOrderMatters(false);
	// dispatch inline and publish the response.
	status, body := c.dispatcher.Dispatch(context.Background(), method, msg.Payload())
	respTopic := responseTopic(c.cfg.MethodResponsePrefix, status, rid)
	if err := c.publish(respTopic, body); err != nil {
		c.logError("method response publish failed", err,
			ports.Field{Key: "method", Value: method})
	}
}

func (c *Client) logInfo(msg string, fields ...ports.Field) {
	if c.obs != nil {
		c.obs.LogInfo(msg, fields...)
	}
}

func (c *Client) logError(msg string, err error, fields ...ports.Field) {
	if c.obs != nil {
		c.obs.LogError(msg, err, fields...)
	}
}

// parseMethodTopic extracts the method name and request id from a topic
// of the form <prefix>/methods/req/<method>/<rid>.
func parseMethodTopic(topic string) (method, rid string, err error) {
	parts := strings.Split(topic, "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "methods" && parts[i+1] == "req" {
			rest := parts[i+2:]
			if len(rest) != 2 || rest[0] == "" || rest[1] == "" {
				return "", "", fmt.Errorf("malformed method topic: %s", topic)
			}
			return rest[0], rest[1], nil
		}
	}
	return "", "", fmt.Errorf("malformed method topic: %s", topic)
}

func responseTopic(prefix string, status int, rid string) string {
	return prefix + "/" + strconv.Itoa(status) + "/" + rid
}
