// FilePath: internal/realtime/realtime.go

// Package realtime wraps the MQTT connection that carries row-level
// change notifications between the hub and the embedded device: sensor
// readings and heartbeats flow in, pending commands flow out, and
// command status updates flow back.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ralphtiongco19/mushroom-hub/internal/config"
	nuts "github.com/vaudience/go-nuts"
)

// Topic layout, one namespace per device.
const (
	topicReadings      = "farm/%s/readings"
	topicHeartbeat     = "farm/%s/heartbeat"
	topicCommands      = "farm/%s/commands"
	topicCommandStatus = "farm/%s/commands/status"
)

func ReadingsTopic(deviceID string) string      { return fmt.Sprintf(topicReadings, deviceID) }
func HeartbeatTopic(deviceID string) string     { return fmt.Sprintf(topicHeartbeat, deviceID) }
func CommandsTopic(deviceID string) string      { return fmt.Sprintf(topicCommands, deviceID) }
func CommandStatusTopic(deviceID string) string { return fmt.Sprintf(topicCommandStatus, deviceID) }

// Subscription is a scoped handle on a topic subscription. Closing it
// stops all further callbacks for that topic.
type Subscription interface {
	Close() error
}

// Channel is the transport the reconciler and relay depend on. The
// MQTT client satisfies it in production; tests use an in-memory fake.
type Channel interface {
	Publish(topic string, payload interface{}) error
	Subscribe(topic string, handler func(topic string, payload []byte)) (Subscription, error)
	Connected() bool
}

// MQTTChannel implements Channel over a paho client
type MQTTChannel struct {
	client mqtt.Client
}

// Connect dials the broker with bounded exponential backoff. The
// onConnect hook also fires on every automatic reconnect, which is how
// the reconciler resynchronizes after a transport gap.
func Connect(ctx context.Context, cfg config.RealtimeConfig, onConnect func(), onLost func(error)) (*MQTTChannel, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		nuts.L.Infof("[Realtime] Connected to broker %s", cfg.BrokerURL)
		if onConnect != nil {
			onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		nuts.L.Warnf("[Realtime] Connection lost: %v", err)
		if onLost != nil {
			onLost(err)
		}
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if bo.MaxElapsedTime == 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			nuts.L.Warnf("[Realtime] Broker connect failed: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish broker connection after retries: %w", err)
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		nuts.L.Infof("[Realtime] Broker connection closed")
	}()

	return &MQTTChannel{client: client}, nil
}

// Publish JSON-encodes payload and publishes it at QoS 1
func (c *MQTTChannel) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}

	token := c.client.Publish(topic, 1, false, data)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Subscribe registers handler for topic and returns a handle whose
// Close unsubscribes, guaranteeing no further callbacks.
func (c *MQTTChannel) Subscribe(topic string, handler func(topic string, payload []byte)) (Subscription, error) {
	token := c.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	nuts.L.Infof("[Realtime] Subscribed to %s", topic)
	return &mqttSubscription{client: c.client, topic: topic}, nil
}

// Connected reports broker connectivity
func (c *MQTTChannel) Connected() bool {
	return c.client.IsConnected()
}

type mqttSubscription struct {
	client mqtt.Client
	topic  string
}

func (s *mqttSubscription) Close() error {
	token := s.client.Unsubscribe(s.topic)
	token.Wait()
	return token.Error()
}
