package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
center:
  id: "test-center"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
coordination:
  dispatch_pause_ms: 50
  publish_timeout_ms: 2000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Center.ID != "test-center" {
		t.Errorf("Center.ID = %q, want %q", cfg.Center.ID, "test-center")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Coordination.DispatchPauseMS != 50 {
		t.Errorf("Coordination.DispatchPauseMS = %d, want 50", cfg.Coordination.DispatchPauseMS)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// A minimal file should leave defaults intact.
	path := writeConfig(t, `
center:
  id: "test-center"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Coordination.DispatchPauseMS != 100 {
		t.Errorf("Coordination.DispatchPauseMS = %d, want default 100", cfg.Coordination.DispatchPauseMS)
	}
	if cfg.Coordination.PublishTimeoutMS != 5000 {
		t.Errorf("Coordination.PublishTimeoutMS = %d, want default 5000", cfg.Coordination.PublishTimeoutMS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
center:
  id: ""
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for empty center id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
center:
  id: "test-center"
database:
  path: "/tmp/file.db"
`)

	t.Setenv("MEDEDGE_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("MEDEDGE_MQTT_HOST", "env-broker")
	t.Setenv("MEDEDGE_MQTT_PORT", "8883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want env override /tmp/env.db", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env override env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want env override 8883", cfg.MQTT.Broker.Port)
	}
}

func TestValidate_QoSRange(t *testing.T) {
	tests := []struct {
		name    string
		qos     int
		wantErr bool
	}{
		{"qos 0", 0, false},
		{"qos 1", 1, false},
		{"qos 2", 2, false},
		{"qos 3", 3, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.MQTT.QoS = tt.qos
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
