package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/elecwatch/internal/models"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	token        *fakeToken
	published    []message
	connected    bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, message{topic, qos, retained, payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

var testRecord = models.Record{
	Time:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	KWh:            45,
	Power1h:        5,
	Power24h:       1.2,
	EstimatedHours: 9,
}

func TestPublish(t *testing.T) {
	fc := &fakeClient{}
	p := newWithClient(fc, Config{TopicPrefix: "/home/power/", QoS: 1})

	require.NoError(t, p.Publish(models.Unit{ID: "room-101", Name: "Room 101"}, testRecord, true))

	require.Len(t, fc.published, 1)
	msg := fc.published[0]
	assert.Equal(t, "home/power/room-101/state", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var state State
	require.NoError(t, json.Unmarshal(msg.payload, &state))
	assert.Equal(t, State{
		Time:           "2026-03-01T12:00:00Z",
		KWh:            45,
		Power1h:        5,
		Power24h:       1.2,
		EstimatedHours: 9,
		Alert:          true,
	}, state)
}

func TestPublish_DefaultPrefixUsesUnitKey(t *testing.T) {
	fc := &fakeClient{}
	p := newWithClient(fc, Config{})

	require.NoError(t, p.Publish(models.Unit{Name: "宿舍A"}, testRecord, false))
	assert.Equal(t, "elecwatch/宿舍A/state", fc.published[0].topic)
}

func TestPublish_Errors(t *testing.T) {
	fc := &fakeClient{token: &fakeToken{err: errors.New("not connected")}}
	p := newWithClient(fc, Config{})
	assert.ErrorContains(t, p.Publish(models.Unit{ID: "a"}, testRecord, false), "not connected")

	fc = &fakeClient{token: &fakeToken{pending: true}}
	p = newWithClient(fc, Config{Timeout: time.Millisecond})
	assert.ErrorContains(t, p.Publish(models.Unit{ID: "a"}, testRecord, false), "timed out")
}

func TestClose(t *testing.T) {
	fc := &fakeClient{connected: true}
	newWithClient(fc, Config{}).Close()
	assert.True(t, fc.disconnected)

	fc = &fakeClient{}
	newWithClient(fc, Config{}).Close()
	assert.False(t, fc.disconnected)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Broker: "localhost:1883", QoS: 3})
	assert.Error(t, err)
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://localhost:1883", brokerURL("localhost:1883"))
	assert.Equal(t, "ssl://mqtt.example.com:8883", brokerURL("ssl://mqtt.example.com:8883"))
}
