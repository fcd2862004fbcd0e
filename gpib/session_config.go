package gpib

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-gpib/logger"
)

// sessionConfig holds the optional settings of a Session.
type sessionConfig struct {
	// assertEOI asserts EOI with the last byte of every write.
	assertEOI bool
	// eosMode is the end-of-string mode passed to the driver on open.
	eosMode EOSMode

	handlers []StateChangeHandler

	logger logger.Logger
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		assertEOI: true,
		eosMode:   EOSNone,
		logger:    logger.GetLogger(),
	}
}

// SessionOption is a functional option for configuring a Session.
type SessionOption interface {
	apply(*sessionConfig) error
}

type sessionOptFunc func(*sessionConfig) error

func (f sessionOptFunc) apply(cfg *sessionConfig) error { return f(cfg) }

// WithLogger sets the logger of the session. The session adds its address to the logger context.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if l == nil {
			return errors.New("gpib: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithAssertEOI controls whether EOI is asserted with the last byte of every write.
// The default is true.
func WithAssertEOI(enable bool) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		cfg.assertEOI = enable
		return nil
	})
}

// WithEOSMode sets the end-of-string mode. The default is EOSNone.
func WithEOSMode(mode EOSMode) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		if mode&^(EOSRead|EOSWrite|EOSBinary|0xff) != 0 {
			return fmt.Errorf("gpib: invalid EOS mode 0x%04x", uint16(mode))
		}
		cfg.eosMode = mode

		return nil
	})
}

// WithStateChangeHandler adds handlers invoked on every session state change.
func WithStateChangeHandler(handlers ...StateChangeHandler) SessionOption {
	return sessionOptFunc(func(cfg *sessionConfig) error {
		for _, h := range handlers {
			if h != nil {
				cfg.handlers = append(cfg.handlers, h)
			}
		}

		return nil
	})
}
