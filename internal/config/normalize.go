package config

import "strings"

// Normalize fills in defaults. It is allowed to mutate configuration and
// runs before Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Adapter.Kind = strings.ToLower(strings.TrimSpace(cfg.Adapter.Kind))
	if cfg.Adapter.Kind == AdapterPrologixSerial && cfg.Adapter.BaudRate == 0 {
		cfg.Adapter.BaudRate = DefaultBaudRate
	}

	for i := range cfg.Instruments {
		inst := &cfg.Instruments[i]

		if strings.TrimSpace(inst.Timeout) == "" {
			inst.Timeout = DefaultTimeout
		}
		if inst.MaxResponse == 0 {
			inst.MaxResponse = DefaultMaxResponse
		}
		if inst.AssertEOI == nil {
			enable := true
			inst.AssertEOI = &enable
		}
	}
}
