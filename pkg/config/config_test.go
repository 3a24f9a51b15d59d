package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func TestGetNestedSection(t *testing.T) {
	m := writeConfig(t, `{"server": {"port": 8080, "name": "myserver"}}`)
	name, err := m.GetString("server", "name")
	if err != nil || name != "myserver" {
		t.Fatalf("unexpected name %q err %v", name, err)
	}
	port, err := m.GetFloat("server", "port")
	if err != nil || port != 8080 {
		t.Fatalf("unexpected port %v err %v", port, err)
	}
}

func TestGetMissingSectionErrors(t *testing.T) {
	m := writeConfig(t, `{"server": {}}`)
	if _, err := m.Get("server", "missing"); err == nil {
		t.Fatalf("expected error for missing section")
	}
}
