package prologix

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-gpib/logger"
)

// Default settings.
const (
	DefaultPort        = 1234
	DefaultBaudRate    = 115200
	DefaultDialTimeout = 3 * time.Second

	// DefaultEOTChar is ASCII EOT, a control byte that text responses do not carry.
	DefaultEOTChar = 0x04

	// MinReadTimeout and MaxReadTimeout bound the adapter's ++read_tmo_ms setting.
	MinReadTimeout = time.Millisecond
	MaxReadTimeout = 3 * time.Second

	rxQueueSize = 16
	rxChunkSize = 512
)

// Config holds the settings of a Prologix adapter driver.
type Config struct {
	// board is the GPIB board index the adapter answers for.
	board int
	// eotChar is appended by the adapter when EOI is detected on a read.
	eotChar byte
	// ifc sends an interface clear during initialization.
	ifc bool

	port        int
	baudRate    int
	dialTimeout time.Duration

	logger logger.Logger
}

func newConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		eotChar:     DefaultEOTChar,
		ifc:         true,
		port:        DefaultPort,
		baudRate:    DefaultBaudRate,
		dialTimeout: DefaultDialTimeout,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Board returns the board index served by the adapter.
func (cfg *Config) Board() int { return cfg.board }

// EOTChar returns the end-of-transmission character.
func (cfg *Config) EOTChar() byte { return cfg.eotChar }

// Option is a functional option for configuring a Driver.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBoard sets the board index the adapter answers for. The default is 0.
func WithBoard(board int) Option {
	return optFunc(func(cfg *Config) error {
		if board < 0 {
			return fmt.Errorf("prologix: board index %d is negative", board)
		}
		cfg.board = board

		return nil
	})
}

// WithEOTChar sets the character the adapter appends when the device
// asserts EOI. A read ends at the first occurrence of this byte, so it must
// not occur in device responses. The default is ASCII EOT (0x04).
//
// Arbitrary binary data, such as an IEEE-488.2 definite length block, may
// contain any byte value, including the EOT character. Such responses are
// cut short at that byte.
func WithEOTChar(c byte) Option {
	return optFunc(func(cfg *Config) error {
		cfg.eotChar = c
		return nil
	})
}

// WithInterfaceClear controls whether an interface clear is sent during
// initialization. The default is true.
func WithInterfaceClear(enable bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.ifc = enable
		return nil
	})
}

// WithPort sets the TCP port used by Dial when the address has none.
func WithPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("prologix: port %d out of range [1, 65535]", port)
		}
		cfg.port = port

		return nil
	})
}

// WithBaudRate sets the baud rate used by DialSerial.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("prologix: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithDialTimeout sets the TCP dial timeout used by Dial.
func WithDialTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return fmt.Errorf("prologix: invalid dial timeout %v", d)
		}
		cfg.dialTimeout = d

		return nil
	})
}

// WithLogger sets the logger of the driver.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("prologix: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
