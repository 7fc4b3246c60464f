package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mededge/treatment-core/internal/infrastructure/mqtt"
)

// DeviceInfo holds the resolved identity of a reporting device.
type DeviceInfo struct {
	ID        string
	StationID string
	AreaID    string
}

// Directory resolves a device's external (wire) identifier to its
// registered identity. Devices report under their external ID; storage
// and broadcasting key on the internal one.
type Directory interface {
	Resolve(ctx context.Context, externalDeviceID string) (DeviceInfo, error)
}

// Subscriber is the interface for registering MQTT topic handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Recorder persists telemetry points to the time-series store.
type Recorder interface {
	WriteVitalSign(deviceID, stationID, metric string, value float64)
	WriteDeviceEvent(deviceID, eventType, detail string)
}

// Broadcaster is the interface for forwarding live events to WebSocket
// clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the minimal logging interface used by the ingestor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// statusMessage is the device status report published on
// treatment/status/{externalDeviceID}.
type statusMessage struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Ingestor consumes device telemetry and status reports from the broker,
// records them to the time-series store, and forwards them to WebSocket
// subscribers.
//
// Telemetry payloads are treated as opaque JSON objects: every numeric
// field becomes a vital-sign point, everything is forwarded verbatim to
// live subscribers. Reports from devices the registry does not know are
// dropped with a warning.
type Ingestor struct {
	subscriber Subscriber
	directory  Directory
	recorder   Recorder
	hub        Broadcaster
	logger     Logger
	topics     mqtt.Topics
}

// NewIngestor creates a telemetry ingestor.
//
// recorder and hub may be nil; the corresponding sink is skipped.
func NewIngestor(subscriber Subscriber, directory Directory, recorder Recorder, hub Broadcaster, logger Logger) *Ingestor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Ingestor{
		subscriber: subscriber,
		directory:  directory,
		recorder:   recorder,
		hub:        hub,
		logger:     logger,
	}
}

// Start subscribes to the device telemetry and status topic patterns.
func (i *Ingestor) Start() error {
	if err := i.subscriber.Subscribe(i.topics.AllDeviceTelemetry(), 0, i.handleTelemetry); err != nil {
		return fmt.Errorf("subscribing to telemetry: %w", err)
	}
	if err := i.subscriber.Subscribe(i.topics.AllDeviceStatus(), 1, i.handleStatus); err != nil {
		return fmt.Errorf("subscribing to status: %w", err)
	}
	return nil
}

// handleTelemetry processes one vital-signs report.
func (i *Ingestor) handleTelemetry(topic string, payload []byte) error {
	externalID := mqtt.DeviceIDFromTopic(topic)
	if externalID == "" {
		return fmt.Errorf("unexpected telemetry topic %q", topic)
	}

	var report map[string]any
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding telemetry from %q: %w", externalID, err)
	}

	dev, err := i.directory.Resolve(context.Background(), externalID)
	if err != nil {
		i.logger.Warn("telemetry from unknown device", "external_device_id", externalID)
		return nil
	}

	if i.recorder != nil {
		for metric, raw := range report {
			value, ok := raw.(float64)
			if !ok {
				continue
			}
			i.recorder.WriteVitalSign(dev.ID, dev.StationID, metric, value)
		}
	}

	i.broadcast(dev, "telemetry", map[string]any{
		"device_id": dev.ID,
		"vitals":    report,
	})

	i.logger.Debug("telemetry ingested", "device_id", dev.ID, "metrics", len(report))
	return nil
}

// handleStatus processes one device status report.
func (i *Ingestor) handleStatus(topic string, payload []byte) error {
	externalID := mqtt.DeviceIDFromTopic(topic)
	if externalID == "" {
		return fmt.Errorf("unexpected status topic %q", topic)
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding status from %q: %w", externalID, err)
	}

	dev, err := i.directory.Resolve(context.Background(), externalID)
	if err != nil {
		i.logger.Warn("status from unknown device", "external_device_id", externalID)
		return nil
	}

	if i.recorder != nil {
		i.recorder.WriteDeviceEvent(dev.ID, "status", msg.Status)
	}

	i.broadcast(dev, "status", map[string]any{
		"device_id": dev.ID,
		"status":    msg.Status,
		"detail":    msg.Detail,
	})
	return nil
}

// broadcast fans an event out to the device, station, and area channels.
func (i *Ingestor) broadcast(dev DeviceInfo, event string, payload map[string]any) {
	if i.hub == nil {
		return
	}
	payload["event"] = event
	i.hub.Broadcast("device:"+dev.ID, payload)
	if dev.StationID != "" {
		i.hub.Broadcast("station:"+dev.StationID, payload)
	}
	if dev.AreaID != "" {
		i.hub.Broadcast("area:"+dev.AreaID, payload)
	}
}
