package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arloliu/go-gpib/gpib"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
adapter:
  kind: Sim
  devices:
    - primary: 2
      responses:
        "*IDN?": "ACME,MODEL1,SN123,1.0"
      delay_ms: 5
instruments:
  - name: dmm
    primary: 2
    timeout: 300ms
    commands: ["*IDN?"]
  - name: scope
    primary: 7
    secondary: 96
    max_response: 1024
    assert_eoi: false
    commands: ["*IDN?", "*ESR?"]
`

// helper to build a valid config quickly
func instrument(name string, primary int) InstrumentConfig {
	enable := true
	return InstrumentConfig{
		Name:        name,
		Primary:     primary,
		Timeout:     "1s",
		MaxResponse: 64,
		AssertEOI:   &enable,
		Commands:    []string{"*IDN?"},
	}
}

func TestParse(t *testing.T) {
	require := require.New(t)

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(err)

	require.Equal(AdapterSim, cfg.Adapter.Kind)
	require.Len(cfg.Adapter.Devices, 1)
	require.Equal(gpib.Address{Primary: 2}, cfg.Adapter.Devices[0].Address())
	require.Equal("ACME,MODEL1,SN123,1.0", cfg.Adapter.Devices[0].Responses["*IDN?"])

	require.Len(cfg.Instruments, 2)
	dmm := cfg.Instruments[0]
	require.Equal("300ms", dmm.Timeout)
	require.Equal(DefaultMaxResponse, dmm.MaxResponse)
	require.True(*dmm.AssertEOI)

	scope := cfg.Instruments[1]
	require.Equal(DefaultTimeout, scope.Timeout)
	require.Equal(1024, scope.MaxResponse)
	require.False(*scope.AssertEOI)
	require.Equal(gpib.Address{Primary: 7, Secondary: 96}, scope.Address())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Instruments, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Parse([]byte("adapter: ["))
	require.Error(t, err)
}

func TestNormalizeSerialBaudRate(t *testing.T) {
	cfg := &Config{Adapter: AdapterConfig{Kind: " PROLOGIX-SERIAL ", Address: "/dev/ttyUSB0"}}
	Normalize(cfg)

	require.Equal(t, AdapterPrologixSerial, cfg.Adapter.Kind)
	require.Equal(t, DefaultBaudRate, cfg.Adapter.BaudRate)
}

func TestValidate(t *testing.T) {
	eot := 300

	tests := []struct {
		name   string
		mutate func(cfg *Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"unknown adapter", func(cfg *Config) { cfg.Adapter.Kind = "visa" }, false},
		{"tcp without address", func(cfg *Config) { cfg.Adapter.Kind = AdapterPrologixTCP }, false},
		{"tcp with address", func(cfg *Config) {
			cfg.Adapter.Kind = AdapterPrologixTCP
			cfg.Adapter.Address = "192.168.1.50"
		}, true},
		{"tcp with devices", func(cfg *Config) {
			cfg.Adapter.Kind = AdapterPrologixTCP
			cfg.Adapter.Address = "192.168.1.50"
			cfg.Adapter.Devices = []SimDeviceConfig{{Primary: 1}}
		}, false},
		{"eot out of range", func(cfg *Config) {
			cfg.Adapter.Kind = AdapterPrologixTCP
			cfg.Adapter.Address = "192.168.1.50"
			cfg.Adapter.EOTChar = &eot
		}, false},
		{"bad sim device address", func(cfg *Config) {
			cfg.Adapter.Devices = []SimDeviceConfig{{Primary: 31}}
		}, false},
		{"negative board", func(cfg *Config) { cfg.Adapter.Board = -1 }, false},
		{"no instruments", func(cfg *Config) { cfg.Instruments = nil }, false},
		{"missing name", func(cfg *Config) { cfg.Instruments[0].Name = "" }, false},
		{"duplicate name", func(cfg *Config) { cfg.Instruments[1].Name = "a" }, false},
		{"bad secondary", func(cfg *Config) { cfg.Instruments[0].Secondary = 50 }, false},
		{"bad timeout", func(cfg *Config) { cfg.Instruments[0].Timeout = "soon" }, false},
		{"bad max response", func(cfg *Config) { cfg.Instruments[0].MaxResponse = 0 }, false},
		{"no commands", func(cfg *Config) { cfg.Instruments[0].Commands = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Adapter:     AdapterConfig{Kind: AdapterSim},
				Instruments: []InstrumentConfig{instrument("a", 1), instrument("b", 2)},
			}
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := &Config{
		Adapter:     AdapterConfig{Kind: AdapterSim},
		Instruments: []InstrumentConfig{{Name: "a", Primary: 1, Timeout: "1s", MaxResponse: 8, Commands: []string{"X"}}},
	}

	require.NoError(t, Validate(cfg))
	require.Nil(t, cfg.Instruments[0].AssertEOI)
}
