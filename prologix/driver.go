package prologix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-gpib/gpib"
	"github.com/arloliu/go-gpib/internal/pool"
	"github.com/arloliu/go-gpib/internal/util"
	"github.com/arloliu/go-gpib/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.bug.st/serial"
)

// ErrDriverClosed indicates the driver was closed.
var ErrDriverClosed = errors.New("prologix: driver closed")

// Adapter ++eos settings.
const (
	eosCRLF = 0
	eosCR   = 1
	eosLF   = 2
	eosNone = 3
)

const okStatus = gpib.StatusCMPL | gpib.StatusCIC

type device struct {
	params gpib.OpenParams
}

// Driver is a gpib.Driver for a Prologix GPIB-ETHERNET or GPIB-USB adapter.
//
// The adapter acts as controller-in-charge of one bus. Descriptors opened
// on the driver share the adapter; every call re-addresses the adapter as
// needed and calls are serialized by the driver.
type Driver struct {
	mu     sync.Mutex
	cfg    *Config
	logger logger.Logger
	rw     io.ReadWriteCloser

	handles    *xsync.MapOf[gpib.Handle, *device]
	nextHandle atomic.Int64

	rx        chan []byte
	rxErr     chan error
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	// guarded by mu
	err     error
	pending []byte
	// midHandle is the descriptor whose response is partly read.
	midHandle gpib.Handle
	addr      string
	eoi       int
	eos       int
	readTmo   int
}

var _ gpib.Driver = (*Driver)(nil)

// New initializes the adapter behind rw and returns a driver for it.
// The driver owns rw and closes it on Close.
func New(rw io.ReadWriteCloser, opts ...Option) (*Driver, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return newDriver(rw, cfg)
}

// Dial connects to a GPIB-ETHERNET adapter. The address may omit the port,
// in which case the configured port (1234 by default) is used.
func Dial(ctx context.Context, address string, opts ...Option) (*Driver, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, strconv.Itoa(cfg.port))
	}

	dialer := net.Dialer{Timeout: cfg.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("prologix: dial %s: %w", address, err)
	}

	return newDriver(conn, cfg)
}

// DialSerial opens a GPIB-USB adapter on the named serial port.
func DialSerial(portName string, opts ...Option) (*Driver, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("prologix: open serial port %s: %w", portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("prologix: reset serial port %s: %w", portName, err)
	}

	return newDriver(port, cfg)
}

func newDriver(rw io.ReadWriteCloser, cfg *Config) (*Driver, error) {
	d := &Driver{
		cfg:     cfg,
		logger:  cfg.logger.With("component", "prologix", "board", cfg.board),
		rw:      rw,
		handles: xsync.NewMapOf[gpib.Handle, *device](),
		rx:      make(chan []byte, rxQueueSize),
		rxErr:   make(chan error, 1),
		done:      make(chan struct{}),
		midHandle: gpib.InvalidHandle,
		eoi:       -1,
		eos:       -1,
		readTmo:   -1,
	}

	go d.receiveTask()

	if err := d.initAdapter(); err != nil {
		_ = d.Close()
		return nil, err
	}

	return d, nil
}

// initAdapter puts the adapter in controller mode with manual read-after-write.
func (d *Driver) initAdapter() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmds := []string{
		"++savecfg 0",
		"++mode 1",
		"++auto 0",
	}
	if d.cfg.ifc {
		cmds = append(cmds, "++ifc")
	}
	cmds = append(cmds,
		"++eos "+strconv.Itoa(eosNone),
		"++eot_enable 1",
		"++eot_char "+strconv.Itoa(int(d.cfg.eotChar)),
	)

	for _, cmd := range cmds {
		if err := d.command(cmd); err != nil {
			return fmt.Errorf("prologix: initialize adapter: %w", err)
		}
	}
	d.eos = eosNone
	d.logger.Debug("prologix: adapter initialized")

	return nil
}

// Close releases the transport. Open descriptors become invalid.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		err = d.rw.Close()
	})

	return err
}

// Open implements gpib.Driver. It only records the descriptor; the adapter
// is addressed on the first call that uses it.
func (d *Driver) Open(params gpib.OpenParams) (gpib.Handle, gpib.Result) {
	if params.Address.Validate() != nil || !params.Timeout.Valid() {
		return gpib.InvalidHandle, failure(gpib.EARG, 0)
	}
	if params.Address.Board != d.cfg.board {
		return gpib.InvalidHandle, failure(gpib.ENEB, 0)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return gpib.InvalidHandle, failure(gpib.EDVR, 0)
	}

	h := gpib.Handle(d.nextHandle.Add(1))
	d.handles.Store(h, &device{params: params})
	d.logger.Debug("prologix: device opened", "handle", int(h), "addr", params.Address.String())

	return h, gpib.Result{Status: okStatus}
}

// Clear implements gpib.Driver.
func (d *Driver) Clear(h gpib.Handle) gpib.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, res, ok := d.lookup(h)
	if !ok {
		return res
	}

	d.discardInput()
	if err := d.selectDevice(dev.params); err != nil {
		return failure(gpib.EDVR, 0)
	}
	if err := d.command("++clr"); err != nil {
		return failure(gpib.EDVR, 0)
	}

	return gpib.Result{Status: okStatus}
}

// Write implements gpib.Driver. The payload is escaped so that it reaches
// the device unchanged.
func (d *Driver) Write(h gpib.Handle, data []byte) gpib.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, res, ok := d.lookup(h)
	if !ok {
		return res
	}

	d.discardInput()
	if err := d.selectDevice(dev.params); err != nil {
		return failure(gpib.EDVR, 0)
	}

	payload := append(escape(data), '\n')
	if err := d.write(payload); err != nil {
		return failure(gpib.EDVR, 0)
	}

	return gpib.Result{Status: okStatus | gpib.StatusTACS, Count: len(data)}
}

// Read implements gpib.Driver. It reads until the device asserts EOI or buf
// is full, bounded by the descriptor's timeout tier. When buf fills before
// EOI, the next Read continues the same response.
func (d *Driver) Read(h gpib.Handle, buf []byte) gpib.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, res, ok := d.lookup(h)
	if !ok {
		return res
	}
	if len(buf) == 0 {
		return failure(gpib.EARG, 0)
	}

	if d.midHandle != h {
		// drop the rest of another descriptor's response
		if d.midHandle.Valid() {
			d.discardInput()
		}
		if err := d.selectDevice(dev.params); err != nil {
			return failure(gpib.EDVR, 0)
		}
		if err := d.setReadTimeout(dev.params.Timeout); err != nil {
			return failure(gpib.EDVR, 0)
		}
		if err := d.command("++read eoi"); err != nil {
			return failure(gpib.EDVR, 0)
		}
	}

	return d.collect(h, buf, dev.params.Timeout.Duration())
}

// Offline implements gpib.Driver. The device is returned to local mode and
// the descriptor is released even if the adapter cannot be reached.
func (d *Driver) Offline(h gpib.Handle) gpib.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := d.handles.LoadAndDelete(h)
	if !ok {
		return failure(gpib.EHDL, 0)
	}
	d.logger.Debug("prologix: device offline", "handle", int(h), "addr", dev.params.Address.String())

	if d.usable() != nil {
		return failure(gpib.EDVR, 0)
	}

	d.discardInput()
	if err := d.selectDevice(dev.params); err != nil {
		return failure(gpib.EDVR, 0)
	}
	if err := d.command("++loc"); err != nil {
		return failure(gpib.EDVR, 0)
	}

	return gpib.Result{Status: gpib.StatusCMPL}
}

// collect gathers the response for h into buf. It must be called with mu held.
func (d *Driver) collect(h gpib.Handle, buf []byte, timeout time.Duration) gpib.Result {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := pool.GetTimer(timeout)
		defer pool.PutTimer(timer)
		timeoutC = timer.C
	}

	n := 0
	for {
		var end bool
		n, end = d.consume(buf, n)
		if end || n == len(buf) {
			d.midHandle = gpib.InvalidHandle
			if !end {
				d.midHandle = h
			}
			status := okStatus | gpib.StatusLACS
			if end {
				status |= gpib.StatusEND
			}

			return gpib.Result{Status: status, Count: n}
		}

		select {
		case chunk := <-d.rx:
			d.pending = append(d.pending, chunk...)

		case err := <-d.rxErr:
			d.fail(err)
			d.midHandle = gpib.InvalidHandle

			return gpib.Result{Status: gpib.StatusERR | okStatus, Error: gpib.EDVR, Count: n}

		case <-timeoutC:
			d.midHandle = gpib.InvalidHandle
			d.logger.Debug("prologix: read timeout", "timeout", timeout, "count", n)

			return gpib.Result{Status: gpib.StatusERR | gpib.StatusTIMO | okStatus, Error: gpib.EABO, Count: n}

		case <-d.done:
			d.midHandle = gpib.InvalidHandle
			return gpib.Result{Status: gpib.StatusERR | okStatus, Error: gpib.EDVR, Count: n}
		}
	}
}

// consume moves pending bytes into buf starting at n, stopping at the EOT
// character. It returns the new count and whether the EOT character was seen.
func (d *Driver) consume(buf []byte, n int) (int, bool) {
	for len(d.pending) > 0 {
		c := d.pending[0]
		if c == d.cfg.eotChar {
			d.pending = d.pending[1:]
			return n, true
		}
		if n == len(buf) {
			return n, false
		}
		buf[n] = c
		n++
		d.pending = d.pending[1:]
	}

	return n, false
}

// lookup resolves h and checks the transport. It must be called with mu held.
func (d *Driver) lookup(h gpib.Handle) (*device, gpib.Result, bool) {
	dev, ok := d.handles.Load(h)
	if !ok {
		return nil, failure(gpib.EHDL, 0), false
	}
	if d.usable() != nil {
		return nil, failure(gpib.EDVR, 0), false
	}

	return dev, gpib.Result{}, true
}

// selectDevice addresses the adapter to the device and applies its EOI and
// EOS settings, sending only the settings that changed.
func (d *Driver) selectDevice(params gpib.OpenParams) error {
	addr := strconv.Itoa(params.Address.Primary)
	if params.Address.HasSecondary() {
		addr += " " + strconv.Itoa(params.Address.Secondary)
	}
	if addr != d.addr {
		if err := d.command("++addr " + addr); err != nil {
			return err
		}
		d.addr = addr
	}

	eoi := 0
	if params.AssertEOI {
		eoi = 1
	}
	if eoi != d.eoi {
		if err := d.command("++eoi " + strconv.Itoa(eoi)); err != nil {
			return err
		}
		d.eoi = eoi
	}

	if eos := eosSetting(params.EOS); eos != d.eos {
		if err := d.command("++eos " + strconv.Itoa(eos)); err != nil {
			return err
		}
		d.eos = eos
	}

	return nil
}

// setReadTimeout applies the adapter's inter-character read timeout for tier t.
func (d *Driver) setReadTimeout(t gpib.Timeout) error {
	tmo := t.Duration()
	if tmo <= 0 || tmo > MaxReadTimeout {
		tmo = MaxReadTimeout
	}
	tmo = max(tmo, MinReadTimeout)

	ms := int(tmo / time.Millisecond)
	if ms == d.readTmo {
		return nil
	}
	if err := d.command("++read_tmo_ms " + strconv.Itoa(ms)); err != nil {
		return err
	}
	d.readTmo = ms

	return nil
}

// discardInput drops bytes left over from a previous exchange.
func (d *Driver) discardInput() {
	d.pending = nil
	d.midHandle = gpib.InvalidHandle
	for {
		select {
		case <-d.rx:
		default:
			return
		}
	}
}

func (d *Driver) command(cmd string) error {
	return d.write([]byte(cmd + "\n"))
}

func (d *Driver) write(b []byte) error {
	if err := d.usable(); err != nil {
		return err
	}
	if _, err := d.rw.Write(b); err != nil {
		d.fail(err)
		return err
	}

	return nil
}

// usable returns the error that made the transport unusable, if any.
func (d *Driver) usable() error {
	if d.closed.Load() {
		return ErrDriverClosed
	}

	select {
	case err := <-d.rxErr:
		d.fail(err)
	default:
	}

	return d.err
}

func (d *Driver) fail(err error) {
	if d.err == nil && err != nil {
		d.err = err
		d.logger.Error("prologix: transport failed", "error", err)
	}
}

// receiveTask forwards bytes received from the adapter until the transport
// fails or the driver is closed.
func (d *Driver) receiveTask() {
	defer d.logger.Debug("prologix: receive task terminated")

	buf := make([]byte, rxChunkSize)
	for {
		n, err := d.rw.Read(buf)
		if n > 0 {
			select {
			case d.rx <- util.CloneSlice(buf[:n], 0):
			case <-d.done:
				return
			}
		}

		if err != nil {
			if d.closed.Load() {
				return
			}
			select {
			case d.rxErr <- err:
			default:
			}

			return
		}
	}
}

func failure(code gpib.ErrorCode, extra gpib.Status) gpib.Result {
	return gpib.Result{Status: gpib.StatusERR | gpib.StatusCMPL | extra, Error: code}
}

// eosSetting maps a session EOS mode to the adapter's ++eos setting. The
// adapter can only append CR or LF on writes.
func eosSetting(mode gpib.EOSMode) int {
	if mode&gpib.EOSWrite == 0 {
		return eosNone
	}

	switch byte(mode) {
	case '\r':
		return eosCR
	case '\n':
		return eosLF
	default:
		return eosNone
	}
}
