// Package broker owns the MQTT client and drains the in-process telemetry
// queue, publishing each item as JSON. Grounded on tve-devices' mqttradio
// (ClientOptions/Connect/Publish usage) and the teacher's cloud.Client
// worker-loop shape (owned client, single publishing goroutine, reconnect
// on disconnect), swapped from the teacher's websocket transport to MQTT.
package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/BuzzVerse/rusty-beagle/internal/config"
	"github.com/BuzzVerse/rusty-beagle/internal/rlog"
)

const keepAlive = 5 * time.Second

// Message is one item of the broker queue: a rendered payload plus the
// device_id needed to fill in the topic template.
type Message struct {
	DeviceID uint8
	Payload  map[string]interface{}
}

// Worker owns the MQTT client and publishes everything it receives on In.
type Worker struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	In     chan Message
}

// New builds a worker with a bounded input queue. The client isn't
// connected until Run is called.
func New(cfg config.MQTTConfig, queueDepth int) *Worker {
	return &Worker{cfg: cfg, In: make(chan Message, queueDepth)}
}

func (w *Worker) clientID() string {
	return fmt.Sprintf("rusty-beagle-%d", time.Now().UnixMilli())
}

func (w *Worker) connect() mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", w.cfg.IP, w.cfg.Port)).
		SetClientID(w.clientID()).
		SetUsername(w.cfg.Login).
		SetPassword(w.cfg.Password).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(w.cfg.ReconnectDelay()).
		// Only incoming publishes that match no subscription reach this
		// handler (none are made); they are dropped without logging.
		SetDefaultPublishHandler(func(mqtt.Client, mqtt.Message) {}).
		SetOnConnectHandler(func(mqtt.Client) {
			rlog.Info("broker: connected")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			rlog.Error("broker: connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		rlog.Error("broker: initial connect failed, will keep retrying: %v", err)
	}
	return client
}

// Run connects and drains In until it's closed, publishing every item at
// QoS 1 (at-least-once). The publish call itself is not retried here: the
// client library's own delivery retry is trusted, per the design.
func (w *Worker) Run() error {
	w.client = w.connect()
	defer w.client.Disconnect(250)

	for msg := range w.In {
		body, err := json.Marshal(msg.Payload)
		if err != nil {
			rlog.Error("broker: marshal payload for device %d: %v", msg.DeviceID, err)
			continue
		}
		topic := renderTopic(w.cfg.Topic, msg.DeviceID)
		token := w.client.Publish(topic, 1, false, body)
		token.Wait()
		if err := token.Error(); err != nil {
			rlog.Error("broker: publish to %s: %v", topic, err)
		}
	}
	return nil
}

func renderTopic(template string, deviceID uint8) string {
	return strings.ReplaceAll(template, "{device_id}", strconv.Itoa(int(deviceID)))
}
