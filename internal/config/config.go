// Package config holds the YAML configuration of the gpibquery tool.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Adapter kinds.
const (
	AdapterSim            = "sim"
	AdapterPrologixTCP    = "prologix-tcp"
	AdapterPrologixSerial = "prologix-serial"
)

// Defaults applied by Normalize.
const (
	DefaultTimeout     = "10s"
	DefaultMaxResponse = 256
	DefaultBaudRate    = 115200
)

type Config struct {
	Adapter     AdapterConfig      `yaml:"adapter"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// ---- ADAPTER ----

type AdapterConfig struct {
	Kind string `yaml:"kind"`
	// Address is host[:port] for prologix-tcp and the port name for prologix-serial.
	Address  string `yaml:"address"`
	Board    int    `yaml:"board"`
	BaudRate int    `yaml:"baud_rate"`
	// EOTChar is the decimal code of the adapter end-of-transmission character.
	EOTChar *int `yaml:"eot_char"`

	// Simulated instruments, only used by the sim adapter.
	Devices []SimDeviceConfig `yaml:"devices"`
}

type SimDeviceConfig struct {
	Board     int               `yaml:"board"`
	Primary   int               `yaml:"primary"`
	Secondary int               `yaml:"secondary"`
	Responses map[string]string `yaml:"responses"`
	DelayMs   int               `yaml:"delay_ms"`
}

// ---- INSTRUMENT ----

type InstrumentConfig struct {
	Name        string   `yaml:"name"`
	Board       int      `yaml:"board"`
	Primary     int      `yaml:"primary"`
	Secondary   int      `yaml:"secondary"`
	Timeout     string   `yaml:"timeout"`
	MaxResponse int      `yaml:"max_response"`
	AssertEOI   *bool    `yaml:"assert_eoi"`
	Commands    []string `yaml:"commands"`
}

// Load reads, normalizes and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML document, then normalizes and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	Normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
