// Package publish mirrors accepted commands to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds connect and publish acknowledgement waits.
const DefaultTimeout = 5 * time.Second

// Client is the subset of mqtt.Client used by a Publisher.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Config describes the broker connection.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Timeout  time.Duration
}

// Publisher sends JSON payloads to a single topic with QoS 0, not retained.
type Publisher struct {
	client  Client
	topic   string
	timeout time.Duration
	log     logrus.FieldLogger
}

// Connect dials the broker. The client reconnects on its own after a
// connection loss; publishes in the gap fail and are logged.
func Connect(cfg Config, log logrus.FieldLogger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("mqtt connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	log.WithField("broker", cfg.Broker).Info("connected to mqtt broker")

	return New(client, cfg.Topic, timeout, log), nil
}

// New wraps an already connected client.
func New(client Client, topic string, timeout time.Duration, log logrus.FieldLogger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{
		client:  client,
		topic:   topic,
		timeout: timeout,
		log:     log,
	}
}

// Topic returns the topic payloads are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish marshals v and hands it to the client. It does not wait for the
// broker; the returned channel yields the publish result once known.
func (p *Publisher) Publish(v any) (<-chan error, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	result := make(chan error, 1)
	go func() {
		defer close(result)
		if !token.WaitTimeout(p.timeout) {
			err := fmt.Errorf("publish to %s: timed out", p.topic)
			p.log.WithError(err).Warn("mqtt publish failed")
			result <- err
			return
		}
		if err := token.Error(); err != nil {
			p.log.WithError(err).WithField("topic", p.topic).Warn("mqtt publish failed")
			result <- err
		}
	}()

	return result, nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
