package influxdb_test

import (
	"errors"
	"testing"

	"github.com/mededge/treatment-core/internal/infrastructure/config"
	"github.com/mededge/treatment-core/internal/infrastructure/influxdb"
)

// Connection and write paths against a live server are covered by
// integration tests; these cover the behaviour that needs no server.

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "mededge-dev-token",
		Org:           "mededge",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestCloseZeroClient(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestFlushZeroClient(t *testing.T) {
	client := &influxdb.Client{}
	// Must not panic with no write API configured.
	client.Flush()
}

func TestIsConnectedZeroClient(t *testing.T) {
	client := &influxdb.Client{}
	if client.IsConnected() {
		t.Error("IsConnected() = true for zero client, want false")
	}
}

func TestWriteVitalSignDisconnected(t *testing.T) {
	client := &influxdb.Client{}
	// Writes on a disconnected client are silently dropped, never panic.
	client.WriteVitalSign("MON-B-042", "ST-12", "heart_rate", 72)
	client.WriteDeviceEvent("MON-B-042", "alarm", "spo2 low")
	client.WritePoint("vital_signs", nil, map[string]interface{}{"value": 1.0})
}
