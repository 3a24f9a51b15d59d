// Package config loads a JSON configuration file and exposes nested
// sections by key path. Grounded on
// original_source/utils/config_manager.py's ConfigManager.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caldervale/go-rawhttpd/pkg/jsoncodec"
)

// Manager holds a parsed JSON configuration tree.
type Manager struct {
	path string
	tree any
}

// Load reads and parses the JSON file at path.
func Load(path string) (*Manager, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := jsoncodec.Default.Unmarshal(string(content), 0)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &Manager{path: path, tree: tree}, nil
}

// Get walks the configuration tree through the given keys, returning the
// value found there, or an error if any segment of the path is missing or
// not itself a section (a JSON object).
func (m *Manager) Get(keys ...string) (any, error) {
	var section any = m.tree
	for _, key := range keys {
		obj, ok := section.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: section %q not found", key)
		}
		value, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("config: section %q not found", key)
		}
		section = value
	}
	return section, nil
}

// GetString is Get narrowed to a string leaf.
func (m *Manager) GetString(keys ...string) (string, error) {
	v, err := m.Get(keys...)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("config: %v is not a string", keys)
	}
	return s, nil
}

// GetFloat is Get narrowed to a numeric leaf. jsoncodec decodes numbers as
// json.Number to avoid float64 precision loss on large integers, so this
// converts on the way out.
func (m *Manager) GetFloat(keys ...string) (float64, error) {
	v, err := m.Get(keys...)
	if err != nil {
		return 0, err
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("config: %v is not a number", keys)
	}
	return n.Float64()
}
