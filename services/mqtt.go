package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"smartsensors/config"
	"smartsensors/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTEscalator publishes escalated log entries to an MQTT topic
type MQTTEscalator struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTTEscalator connects to the broker configured in cfg
func NewMQTTEscalator(cfg *config.Config, logger *zap.Logger) (*MQTTEscalator, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.MQTTBroker))
	opts.SetClientID(fmt.Sprintf("smartsensors-client-%d", time.Now().UnixNano()))
	if cfg.MQTTUser != "" {
		opts.SetUsername(cfg.MQTTUser)
		opts.SetPassword(cfg.MQTTPass)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.MQTTBroker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", cfg.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &MQTTEscalator{
		client: client,
		topic:  cfg.MQTTTopic,
		logger: logger,
	}, nil
}

func (m *MQTTEscalator) Name() string { return "mqtt" }

// Escalate publishes the entry with QoS 1
func (m *MQTTEscalator) Escalate(ctx context.Context, entry models.LogEntry) error {
	body, err := json.Marshal(entry.Payload())
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	token := m.client.Publish(m.topic, 1, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish MQTT message: %w", err)
	}

	m.logger.Debug("Published log entry to MQTT",
		zap.String("topic", m.topic),
		zap.String("entry_id", entry.ID))
	return nil
}

// Close disconnects from the broker
func (m *MQTTEscalator) Close() {
	m.logger.Info("Disconnecting from MQTT broker")
	m.client.Disconnect(250)
}
