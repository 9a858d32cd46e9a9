// Package mqtt bridges the acquisition broker to the dashboard services.
// The local node receives these topics from the device firmware, the
// cloud node from the bridged broker on the Pi.
package mqtt

import (
	"context"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"

	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/service"
)

const topicPrefix = "vital/device"

const (
	connectTimeout = 10 * time.Second
	retryInterval  = 5 * time.Second
	keepAlive      = 30 * time.Second
)

// Client subscribes to the telemetry topics and routes messages into the
// telemetry and anomaly services.
type Client struct {
	ctx       context.Context
	broker    string
	clientId  string
	client    paho.Client
	telemetry *service.TelemetryService
	anomaly   *service.AnomalyService
}

func NewClient(ctx context.Context, broker, clientId string, telemetry *service.TelemetryService, anomaly *service.AnomalyService) *Client {
	return &Client{
		ctx:       ctx,
		broker:    broker,
		clientId:  clientId,
		telemetry: telemetry,
		anomaly:   anomaly,
	}
}

// subscriptions covers each topic family with and without a device id
// segment, matching what the firmware publishes. All at QoS 1: losing a
// chart frame is fine, losing an anomaly is not, and the broker session
// keeps both simple.
func subscriptions() map[string]byte {
	topics := make(map[string]byte)
	for _, suffix := range []string{"realtime/+", "anomalies/+", "session", "status"} {
		topics[topicPrefix+"/+/"+suffix] = 1
		topics[topicPrefix+"/"+suffix] = 1
	}
	return topics
}

// Start connects to the broker. When the broker is down the client keeps
// retrying in the background rather than failing the whole process.
func (c *Client) Start() error {
	opts := paho.NewClientOptions().
		AddBroker(c.broker).
		SetClientID(c.clientId).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetKeepAlive(keepAlive).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warningf("MQTT broker %s not reachable yet, retrying in background", c.broker)
		return nil
	}
	return token.Error()
}

// Stop disconnects from the broker, allowing in-flight handlers to finish.
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.telemetry.SetBrokerConnected(false)
}

func (c *Client) onConnect(client paho.Client) {
	logger.Infof("Connected to MQTT broker at %s", c.broker)
	c.telemetry.SetBrokerConnected(true)

	for topic, qos := range subscriptions() {
		if token := client.Subscribe(topic, qos, c.onMessage); token.Wait() && token.Error() != nil {
			logger.Warningf("subscribe %s: %v", topic, token.Error())
			continue
		}
		logger.Debugf("Subscribed to: %s", topic)
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	logger.Warning("MQTT connection lost:", err)
	c.telemetry.SetBrokerConnected(false)
}

// onMessage routes by topic family the way the firmware names them.
func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	switch {
	case strings.Contains(topic, "/realtime/"):
		c.handleRealtime(msg.Payload())
	case strings.Contains(topic, "/anomalies/"):
		c.handleAnomaly(topic, msg.Payload())
	case strings.Contains(topic, "/session"):
		c.handleSession(msg.Payload())
	case strings.Contains(topic, "/status"):
		c.handleStatus(msg.Payload())
	default:
		logger.Debugf("unhandled MQTT topic: %s", topic)
	}
}

type realtimePayload struct {
	Signal    string      `json:"signal"`
	Frames    [][]float64 `json:"frames"`
	Timestamp any         `json:"timestamp"`
}

func (c *Client) handleRealtime(payload []byte) {
	var rt realtimePayload
	if err := json.Unmarshal(payload, &rt); err != nil {
		logger.Warning("malformed realtime payload:", err)
		return
	}
	if err := c.telemetry.PushFrames(rt.Signal, rt.Frames, coerceEpoch(rt.Timestamp)); err != nil {
		logger.Debug("realtime frames dropped:", err)
	}
}

func (c *Client) handleAnomaly(topic string, payload []byte) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warning("malformed anomaly payload:", err)
		return
	}
	c.anomaly.Handle(c.ctx, topic, data)
}

type sessionPayload struct {
	Event     string `json:"event"`
	SessionId string `json:"session_id"`
}

func (c *Client) handleSession(payload []byte) {
	var ev sessionPayload
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warning("malformed session payload:", err)
		return
	}
	switch ev.Event {
	case "session_start":
		c.telemetry.StartSession(ev.SessionId)
	case "session_end":
		c.telemetry.EndSession(ev.SessionId)
	default:
		logger.Debugf("unknown session event: %s", ev.Event)
	}
}

type statusPayload struct {
	Status string `json:"status"`
}

func (c *Client) handleStatus(payload []byte) {
	var st statusPayload
	if err := json.Unmarshal(payload, &st); err != nil {
		logger.Warning("malformed status payload:", err)
		return
	}
	switch st.Status {
	case "connected":
		c.telemetry.SetDeviceConnected(true)
	case "disconnected":
		c.telemetry.SetDeviceConnected(false)
	}
}

// coerceEpoch accepts the timestamp however the firmware encodes it:
// epoch seconds as a number, or a formatted stamp.
func coerceEpoch(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		parsed, err := model.ParseStamp(t)
		if err != nil {
			return 0
		}
		return float64(parsed.UnixNano()) / float64(time.Second)
	}
	return 0
}
