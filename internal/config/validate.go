package config

import (
	"fmt"

	"github.com/arloliu/go-gpib/gpib"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// ADAPTER
	// ------------------------------------------------------------

	a := cfg.Adapter
	switch a.Kind {
	case AdapterSim:
		for i, d := range a.Devices {
			if _, err := gpib.NewAddress(d.Board, d.Primary, d.Secondary); err != nil {
				return fmt.Errorf("adapter device #%d: %w", i, err)
			}
			if d.DelayMs < 0 {
				return fmt.Errorf("adapter device #%d: delay_ms must not be negative", i)
			}
		}
	case AdapterPrologixTCP, AdapterPrologixSerial:
		if a.Address == "" {
			return fmt.Errorf("adapter %q: address is required", a.Kind)
		}
		if len(a.Devices) > 0 {
			return fmt.Errorf("adapter %q: devices are only supported by the %q adapter", a.Kind, AdapterSim)
		}
		if a.EOTChar != nil && (*a.EOTChar < 0 || *a.EOTChar > 0xff) {
			return fmt.Errorf("adapter %q: eot_char %d out of range [0, 255]", a.Kind, *a.EOTChar)
		}
	default:
		return fmt.Errorf("unknown adapter kind %q", a.Kind)
	}
	if a.Board < 0 {
		return fmt.Errorf("adapter board %d is negative", a.Board)
	}

	// ------------------------------------------------------------
	// INSTRUMENTS
	// ------------------------------------------------------------

	if len(cfg.Instruments) == 0 {
		return fmt.Errorf("no instruments configured")
	}

	names := make(map[string]struct{}, len(cfg.Instruments))
	for i, inst := range cfg.Instruments {
		if inst.Name == "" {
			return fmt.Errorf("instrument #%d: name is required", i)
		}
		if _, exists := names[inst.Name]; exists {
			return fmt.Errorf("instrument %q: duplicate name", inst.Name)
		}
		names[inst.Name] = struct{}{}

		if _, err := gpib.NewAddress(inst.Board, inst.Primary, inst.Secondary); err != nil {
			return fmt.Errorf("instrument %q: %w", inst.Name, err)
		}
		if _, err := gpib.ParseTimeout(inst.Timeout); err != nil {
			return fmt.Errorf("instrument %q: %w", inst.Name, err)
		}
		if inst.MaxResponse <= 0 {
			return fmt.Errorf("instrument %q: max_response must be positive", inst.Name)
		}
		if len(inst.Commands) == 0 {
			return fmt.Errorf("instrument %q: no commands", inst.Name)
		}
	}

	return nil
}

// Address returns the bus address of the instrument. It must be called only
// after Validate.
func (inst InstrumentConfig) Address() gpib.Address {
	return gpib.Address{Board: inst.Board, Primary: inst.Primary, Secondary: inst.Secondary}
}

// Address returns the bus address of the simulated device.
func (d SimDeviceConfig) Address() gpib.Address {
	return gpib.Address{Board: d.Board, Primary: d.Primary, Secondary: d.Secondary}
}
