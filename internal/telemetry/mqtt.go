// Package telemetry publishes MCWarden activity to an MQTT broker so
// external dashboards can follow chat, command dispatches and link
// health without polling the REST API.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/mcwarden-project/mcwarden/internal/config"
	"github.com/mcwarden-project/mcwarden/internal/events"
	"github.com/mcwarden-project/mcwarden/internal/util"
)

// MQTT topics
const (
	TopicAdmin    = "warden/admin"
	TopicChat     = "warden/chat"
	TopicDispatch = "warden/dispatch"
	TopicLink     = "warden/link"
)

// MQTTHandler manages the MQTT connection and publishes telemetry events.
type MQTTHandler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus) (*MQTTHandler, error) {
	mqttCfg := cfg.GetApplicationData().MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname": sysInfo.Hostname,
		"platform": sysInfo.OS,
	}

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: metadata,
	}

	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("mcwarden-%s", sysInfo.Hostname))
	}
	if mqttCfg.Username != "" {
		opts.SetUsername(mqttCfg.Username)
		opts.SetPassword(mqttCfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)

	return handler, nil
}

// Start connects to the MQTT broker and subscribes to events.
func (h *MQTTHandler) Start(ctx context.Context) error {
	mqttCfg := h.cfg.GetApplicationData().MQTT
	log.Info().
		Str("broker", mqttCfg.BrokerURL).
		Int("port", mqttCfg.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	// Block until context cancelled
	<-ctx.Done()

	h.PublishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// subscribeEvents registers event handlers for MQTT publishing.
func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.Subscribe(events.EventChatMessage, "mqtt.chat", h.onChatMessage)
	h.eventBus.Subscribe(events.EventCommandDispatched, "mqtt.dispatch", h.onDispatch("dispatched"))
	h.eventBus.Subscribe(events.EventCommandRejected, "mqtt.rejected", h.onDispatch("rejected"))
	h.eventBus.Subscribe(events.EventBridgeState, "mqtt.bridgeState", h.onBridgeState)
	h.eventBus.Subscribe(events.EventRconConnected, "mqtt.rconUp", h.onRconState("connected"))
	h.eventBus.Subscribe(events.EventRconDisconnected, "mqtt.rconDown", h.onRconState("disconnected"))
	h.eventBus.Subscribe(events.EventRconAuthFailed, "mqtt.rconAuth", h.onRconState("auth_failed"))
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	msg := h.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

// Event handlers

func (h *MQTTHandler) onChatMessage(ctx context.Context, event events.Event) error {
	h.publish(TopicChat, event.Payload)
	return nil
}

func (h *MQTTHandler) onDispatch(outcome string) events.HandlerFunc {
	return func(ctx context.Context, event events.Event) error {
		h.publish(TopicDispatch, map[string]interface{}{
			"event":   outcome,
			"payload": event.Payload,
		})
		return nil
	}
}

func (h *MQTTHandler) onBridgeState(ctx context.Context, event events.Event) error {
	h.publish(TopicLink, map[string]interface{}{
		"event":   "bridge_state",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onRconState(state string) events.HandlerFunc {
	return func(ctx context.Context, event events.Event) error {
		h.publish(TopicLink, map[string]interface{}{
			"event":   "rcon_" + state,
			"payload": event.Payload,
		})
		return nil
	}
}

// PublishShutdown sends a shutdown message to the MQTT broker.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(TopicAdmin, map[string]interface{}{
		"event":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
