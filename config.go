package lwm2mdp

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the JSON-backed configuration for a DataPlane, loaded and saved the way
// the teacher's inventoryd.go handled its own Config (LoadInventorydConfig/SaveConfig/
// CreateDefaultConfig).
type Config struct {
	EndpointClientName string `json:"endpointClientName"`
	ObserveInterval    int    `json:"observeInterval"`
}

// DefaultObserveInterval is used by CreateDefaultConfig and matches the cadence the
// teacher's own default configuration used for its observe loop.
const DefaultObserveInterval = 30

// LoadConfig reads and parses a Config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("lwm2mdp: parsing %s: %w", path, err)
	}
	return config, nil
}

// SaveConfig writes config to path as indented JSON.
func SaveConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// CreateDefaultConfig writes a fresh Config with conservative defaults to path.
func CreateDefaultConfig(path string) error {
	return SaveConfig(path, &Config{
		EndpointClientName: "lwm2mdp-device",
		ObserveInterval:    DefaultObserveInterval,
	})
}
