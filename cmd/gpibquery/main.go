// Command gpibquery runs the commands listed in a YAML file against GPIB
// instruments and logs every response.
//
// Usage:
//
//	gpibquery <config.yaml>
//
// Environment variables:
//
//	LOG_LEVEL - "debug", "info" (default), "warn", "error" or "fatal"
//	ENV       - "development" switches to the console log handler
//
// Instruments are queried concurrently, one session each. Every failed
// query is logged with its decoded driver status.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/arloliu/go-gpib/gpib"
	"github.com/arloliu/go-gpib/gpib/sim"
	"github.com/arloliu/go-gpib/internal/config"
	"github.com/arloliu/go-gpib/logger"
	"github.com/arloliu/go-gpib/prologix"
)

var log logger.Logger

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gpibquery <config.yaml>")
		os.Exit(2)
	}

	log = logger.NewSlogFromEnv()
	logger.SetLogger(log)

	if err := run(os.Args[1]); err != nil {
		log.Error("gpibquery failed", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	drv, closeDriver, err := buildDriver(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDriver()

	log.Info("adapter ready", "kind", cfg.Adapter.Kind, "instruments", len(cfg.Instruments))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for _, inst := range cfg.Instruments {
		wg.Add(1)
		go func(inst config.InstrumentConfig) {
			defer wg.Done()

			if err := queryInstrument(ctx, drv, inst); err != nil {
				logFailure(inst.Name, err)

				mu.Lock()
				failed = append(failed, inst.Name)
				mu.Unlock()
			}
		}(inst)
	}
	wg.Wait()

	if len(failed) > 0 {
		return fmt.Errorf("%d instrument(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}

	return nil
}

// buildDriver creates the bus driver selected by the adapter configuration
// and returns a function that releases it.
func buildDriver(ctx context.Context, cfg *config.Config) (gpib.Driver, func(), error) {
	a := cfg.Adapter

	switch a.Kind {
	case config.AdapterSim:
		drv := sim.NewDriver(sim.WithBoards(simBoards(cfg)))
		for _, d := range a.Devices {
			drv.AddDevice(d.Address(), &sim.Device{
				Responses: d.Responses,
				Delay:     time.Duration(d.DelayMs) * time.Millisecond,
			})
		}

		return drv, func() {}, nil

	case config.AdapterPrologixTCP, config.AdapterPrologixSerial:
		opts := []prologix.Option{
			prologix.WithBoard(a.Board),
			prologix.WithLogger(log),
		}
		if a.EOTChar != nil {
			opts = append(opts, prologix.WithEOTChar(byte(*a.EOTChar)))
		}

		var (
			drv *prologix.Driver
			err error
		)
		if a.Kind == config.AdapterPrologixTCP {
			drv, err = prologix.Dial(ctx, a.Address, opts...)
		} else {
			opts = append(opts, prologix.WithBaudRate(a.BaudRate))
			drv, err = prologix.DialSerial(a.Address, opts...)
		}
		if err != nil {
			return nil, nil, err
		}

		return drv, func() {
			if err := drv.Close(); err != nil {
				log.Warn("failed to close adapter", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown adapter kind %q", a.Kind)
	}
}

// simBoards returns the number of simulated boards needed to reach every
// configured device and instrument.
func simBoards(cfg *config.Config) int {
	top := cfg.Adapter.Board
	for _, d := range cfg.Adapter.Devices {
		top = max(top, d.Board)
	}
	for _, inst := range cfg.Instruments {
		top = max(top, inst.Board)
	}

	return top + 1
}

// queryInstrument runs the configured commands in one session. Commands
// without a '?' are still queried; an instrument that does not answer them
// times out and the session goes offline.
func queryInstrument(ctx context.Context, drv gpib.Driver, inst config.InstrumentConfig) error {
	timeout, err := gpib.ParseTimeout(inst.Timeout)
	if err != nil {
		return err
	}

	l := log.With("instrument", inst.Name)

	return gpib.Run(drv, inst.Address(), timeout, func(s *gpib.Session) error {
		for _, cmd := range inst.Commands {
			if err := ctx.Err(); err != nil {
				return err
			}

			begin := time.Now()
			resp, err := s.QueryString(cmd, inst.MaxResponse)
			if err != nil {
				return fmt.Errorf("query %q: %w", cmd, err)
			}

			l.Info("response",
				"command", cmd,
				"response", strings.TrimRight(resp, "\r\n"),
				"bytes", len(resp),
				"elapsed", time.Since(begin),
			)
		}

		m := s.Metrics()
		l.Debug("session done", "queries", m.QueryCount.Load(), "bytesSent", m.BytesSent.Load(), "bytesRecv", m.BytesRecv.Load())

		return nil
	}, gpib.WithLogger(l), gpib.WithAssertEOI(*inst.AssertEOI))
}

func logFailure(name string, err error) {
	kv := []any{"instrument", name, "error", err}
	if diag, ok := gpib.DiagnosticOf(err); ok {
		kv = append(kv, "reason", diag.Reason.String(), "status", diag.Status.String(), "retryable", diag.Retryable())
	}

	var gerr *gpib.Error
	if errors.As(err, &gerr) {
		kv = append(kv, "kind", gerr.Kind.String())
	}

	log.Error("instrument failed", kv...)
}
