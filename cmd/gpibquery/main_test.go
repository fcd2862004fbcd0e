package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arloliu/go-gpib/gpib"
	"github.com/arloliu/go-gpib/gpib/sim"
	"github.com/arloliu/go-gpib/internal/config"
	"github.com/arloliu/go-gpib/logger"
	"github.com/stretchr/testify/require"
)

const simConfig = `
adapter:
  kind: sim
  devices:
    - primary: 2
      responses:
        "*IDN?": "ACME,MODEL1,SN123,1.0"
        "*ESR?": "0"
instruments:
  - name: dmm
    primary: 2
    timeout: 100ms
    commands: ["*IDN?", "*ESR?"]
`

func TestMain(m *testing.M) {
	log = logger.NewSlog(logger.ErrorLevel, false)
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "gpib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRunSim(t *testing.T) {
	require.NoError(t, run(writeConfig(t, simConfig)))
}

func TestRunReportsFailedInstrument(t *testing.T) {
	content := simConfig + `
  - name: ghost
    primary: 9
    timeout: 10ms
    commands: ["*IDN?"]
`
	err := run(writeConfig(t, content))
	require.ErrorContains(t, err, "ghost")
	require.NotContains(t, err.Error(), "dmm")
}

func TestRunSimSecondBoard(t *testing.T) {
	content := `
adapter:
  kind: sim
  devices:
    - board: 1
      primary: 2
      responses:
        "*IDN?": "ACME,MODEL1,SN123,1.0"
instruments:
  - name: dmm
    board: 1
    primary: 2
    timeout: 100ms
    commands: ["*IDN?"]
`
	require.NoError(t, run(writeConfig(t, content)))
}

func TestSimBoards(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{"default", config.Config{}, 1},
		{"adapter", config.Config{Adapter: config.AdapterConfig{Board: 2}}, 3},
		{"device", config.Config{Adapter: config.AdapterConfig{Devices: []config.SimDeviceConfig{{Board: 3}}}}, 4},
		{"instrument", config.Config{Instruments: []config.InstrumentConfig{{Board: 1}, {Board: 5}}}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, simBoards(&tt.cfg))
		})
	}
}

func TestQueryInstrument(t *testing.T) {
	require := require.New(t)

	cfg, err := config.Parse([]byte(simConfig))
	require.NoError(err)

	drv, closeDriver, err := buildDriver(context.Background(), cfg)
	require.NoError(err)
	defer closeDriver()

	require.NoError(queryInstrument(context.Background(), drv, cfg.Instruments[0]))

	simDrv, ok := drv.(*sim.Driver)
	require.True(ok)
	require.Equal(2, simDrv.CallCount(sim.OpWrite))
	require.Zero(simDrv.OpenHandles())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = queryInstrument(ctx, drv, cfg.Instruments[0])
	require.ErrorIs(err, context.Canceled)

	_, ok = gpib.DiagnosticOf(err)
	require.False(ok)
}
