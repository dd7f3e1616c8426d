package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
port: "9090"
log:
  level: debug
db:
  path: /tmp/printers.db
auth:
  signing_key: secret
printers:
  - name: Office
    address: http://10.0.0.5:631/ipp/print
    polling: 5
    marker: true
    switchType: SWITCH
  - name: Lab
    address: ipp://10.0.0.6/ipp/print
    switchType: CHARACTERISTIC
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_ReadsPrintersAndDefaults(t *testing.T) {
	dir := writeConfig(t, sampleYAML)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %q", cfg.Log.Level)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token ttl default: got %v", cfg.Auth.TokenTTL)
	}
	if cfg.History.MaxEntries != defaultMaxEntries {
		t.Errorf("history default: got %d", cfg.History.MaxEntries)
	}
	if cfg.MQTT.TopicPrefix != defaultMQTTPrefix {
		t.Errorf("mqtt prefix default: got %q", cfg.MQTT.TopicPrefix)
	}
	if len(cfg.Printers) != 2 {
		t.Fatalf("printers: want 2, got %d", len(cfg.Printers))
	}
	office := cfg.Printers[0]
	if office.Name != "Office" || office.Polling == nil || *office.Polling != 5 || !office.Marker || office.SwitchType != "SWITCH" {
		t.Errorf("unexpected first printer: %+v", office)
	}
	if cfg.Printers[1].Marker {
		t.Errorf("second printer must not track markers")
	}
	if cfg.Printers[1].Polling != nil {
		t.Errorf("unset polling must stay nil, got %d", *cfg.Printers[1].Polling)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := writeConfig(t, sampleYAML)
	t.Setenv("PRINTER_MONITOR_PORT", "7000")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7000" {
		t.Fatalf("env override not applied: %q", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
