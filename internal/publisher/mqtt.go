// Package publisher mirrors each unit's latest state to an MQTT broker so
// dashboards such as Home Assistant can pick it up.
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rewired-gh/elecwatch/internal/models"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "elecwatch"

// Config holds MQTT connection settings.
type Config struct {
	Broker      string // host:port or a full URL such as tcp://host:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// client is the part of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher publishes retained unit state messages.
type Publisher struct {
	client      client
	topicPrefix string
	qos         byte
	timeout     time.Duration
}

// New connects to the broker described by cfg.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid MQTT QoS %d", cfg.QoS)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "elecwatch"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connecting to MQTT broker: timed out after %s", cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
	}

	return newWithClient(c, cfg), nil
}

func newWithClient(c client, cfg Config) *Publisher {
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{client: c, topicPrefix: prefix, qos: cfg.QoS, timeout: timeout}
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// State is the retained message body for one unit.
type State struct {
	Time           string  `json:"time"`
	KWh            float64 `json:"kwh"`
	Power1h        float64 `json:"power_1h"`
	Power24h       float64 `json:"power_24h"`
	EstimatedHours float64 `json:"estimated_hours"`
	Alert          bool    `json:"alert"`
}

// Topic returns the state topic for a unit.
func Topic(prefix, unitID string) string {
	return fmt.Sprintf("%s/%s/state", prefix, unitID)
}

// Payload encodes rec as a State message.
func Payload(rec models.Record, alert bool) ([]byte, error) {
	return json.Marshal(State{
		Time:           rec.Time.Format(time.RFC3339),
		KWh:            rec.KWh,
		Power1h:        rec.Power1h,
		Power24h:       rec.Power24h,
		EstimatedHours: rec.EstimatedHours,
		Alert:          alert,
	})
}

// Publish sends the latest record of unit as a retained message.
func (p *Publisher) Publish(unit models.Unit, rec models.Record, alert bool) error {
	body, err := Payload(rec, alert)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := Topic(p.topicPrefix, unit.Key())
	token := p.client.Publish(topic, p.qos, true, body)
	if !token.WaitTimeout(p.timeout) {
		return errors.New("publishing to " + topic + ": timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
