// Package sim provides an in-memory gpib.Driver with scripted instruments,
// fault injection and a call log.
//
// It is intended for tests and for running tools without bus hardware.
package sim

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-gpib/gpib"
	"github.com/arloliu/go-gpib/internal/pool"
	"github.com/arloliu/go-gpib/internal/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// Op names a driver primitive.
type Op string

// Driver primitives.
const (
	OpOpen    Op = "open"
	OpClear   Op = "clear"
	OpWrite   Op = "write"
	OpRead    Op = "read"
	OpOffline Op = "offline"
)

// Device is a simulated instrument.
type Device struct {
	// Responses maps a command, with trailing CR/LF removed, to its response.
	// Commands without an entry produce no response; a following read times out.
	Responses map[string]string
	// Handler, when set, is used instead of Responses. A nil response means no
	// response; an error makes the write fail with EABO.
	Handler func(cmd []byte) ([]byte, error)
	// Delay is the time the device takes to answer a read. A delay longer
	// than the session timeout tier makes the read time out. With TNone the
	// read always waits for the full delay.
	Delay time.Duration
}

func (d *Device) respond(cmd []byte) ([]byte, error) {
	if d.Handler != nil {
		return d.Handler(cmd)
	}

	resp, ok := d.Responses[strings.TrimRight(string(cmd), "\r\n")]
	if !ok {
		return nil, nil
	}

	return []byte(resp), nil
}

// Fault is an injected driver failure. The ERR bit is always added to Status.
type Fault struct {
	Status gpib.Status
	Error  gpib.ErrorCode
}

// Call is an entry of the driver call log.
type Call struct {
	Op     Op
	Handle gpib.Handle
	// Data is a copy of the payload of a write.
	Data []byte
	// Size is the buffer capacity of a read.
	Size int
}

type openDevice struct {
	mu      sync.Mutex
	params  gpib.OpenParams
	pending []byte
}

// Driver is a simulated bus driver implementing gpib.Driver.
//
// Devices are looked up by address when a descriptor is used, so instruments
// can be added or removed while sessions are open.
type Driver struct {
	boards     int
	nextHandle atomic.Int64

	devices *xsync.MapOf[gpib.Address, *Device]
	handles *xsync.MapOf[gpib.Handle, *openDevice]

	mu     sync.Mutex
	faults map[Op]Fault
	calls  []Call
}

var _ gpib.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithBoards sets the number of simulated boards. Opening a device on a
// higher board index fails with ENEB. The default is 1.
func WithBoards(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.boards = n
		}
	}
}

// WithFirstHandle sets the first descriptor value handed out by Open. Values
// below 1 are ignored.
func WithFirstHandle(h gpib.Handle) Option {
	return func(d *Driver) {
		if h > 0 {
			d.nextHandle.Store(int64(h) - 1)
		}
	}
}

// NewDriver creates a simulated driver with no devices.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		boards:  1,
		devices: xsync.NewMapOf[gpib.Address, *Device](),
		handles: xsync.NewMapOf[gpib.Handle, *openDevice](),
		faults:  make(map[Op]Fault),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// AddDevice attaches dev at addr.
func (d *Driver) AddDevice(addr gpib.Address, dev *Device) {
	d.devices.Store(addr, dev)
}

// RemoveDevice detaches the device at addr.
func (d *Driver) RemoveDevice(addr gpib.Address) {
	d.devices.Delete(addr)
}

// SetFault makes every following call of op fail with f until ClearFault.
func (d *Driver) SetFault(op Op, f Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.faults[op] = f
}

// ClearFault removes the fault injected for op.
func (d *Driver) ClearFault(op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.faults, op)
}

// Calls returns a copy of the call log.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()

	return util.CloneSlice(d.calls, 0)
}

// CallCount returns the number of logged calls of op.
func (d *Driver) CallCount(op Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}

	return n
}

// ResetCalls clears the call log.
func (d *Driver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = nil
}

// OpenHandles returns the number of descriptors not yet taken offline.
func (d *Driver) OpenHandles() int {
	return d.handles.Size()
}

// record logs the call and returns the injected fault for op, if any.
func (d *Driver) record(c Call) (gpib.Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, c)
	f, ok := d.faults[c.Op]
	if !ok {
		return gpib.Result{}, false
	}

	return gpib.Result{Status: f.Status | gpib.StatusERR, Error: f.Error}, true
}

func failure(code gpib.ErrorCode, extra gpib.Status) gpib.Result {
	return gpib.Result{Status: gpib.StatusERR | gpib.StatusCMPL | extra, Error: code}
}

// Open implements gpib.Driver.
func (d *Driver) Open(params gpib.OpenParams) (gpib.Handle, gpib.Result) {
	if res, faulted := d.record(Call{Op: OpOpen}); faulted {
		return gpib.InvalidHandle, res
	}
	if params.Address.Validate() != nil || !params.Timeout.Valid() {
		return gpib.InvalidHandle, failure(gpib.EARG, 0)
	}
	if params.Address.Board >= d.boards {
		return gpib.InvalidHandle, failure(gpib.ENEB, 0)
	}

	h := gpib.Handle(d.nextHandle.Add(1))
	d.handles.Store(h, &openDevice{params: params})

	return h, gpib.Result{Status: gpib.StatusCMPL | gpib.StatusCIC}
}

// Clear implements gpib.Driver.
func (d *Driver) Clear(h gpib.Handle) gpib.Result {
	if res, faulted := d.record(Call{Op: OpClear, Handle: h}); faulted {
		return res
	}

	od, ok := d.handles.Load(h)
	if !ok {
		return failure(gpib.EHDL, 0)
	}
	if _, ok := d.devices.Load(od.params.Address); !ok {
		return failure(gpib.ENOL, gpib.StatusCIC)
	}

	od.mu.Lock()
	od.pending = nil
	od.mu.Unlock()

	return gpib.Result{Status: gpib.StatusCMPL | gpib.StatusCIC}
}

// Write implements gpib.Driver.
func (d *Driver) Write(h gpib.Handle, data []byte) gpib.Result {
	if res, faulted := d.record(Call{Op: OpWrite, Handle: h, Data: util.CloneSlice(data, 0)}); faulted {
		return res
	}

	od, ok := d.handles.Load(h)
	if !ok {
		return failure(gpib.EHDL, 0)
	}
	dev, ok := d.devices.Load(od.params.Address)
	if !ok {
		return failure(gpib.ENOL, gpib.StatusCIC)
	}

	resp, err := dev.respond(data)
	if err != nil {
		return failure(gpib.EABO, gpib.StatusCIC)
	}

	od.mu.Lock()
	od.pending = resp
	od.mu.Unlock()

	return gpib.Result{Status: gpib.StatusCMPL | gpib.StatusCIC | gpib.StatusTACS, Count: len(data)}
}

// Read implements gpib.Driver.
//
// Responses are produced by Write, so a read with nothing pending can never
// be answered. It waits out the timeout tier and fails with TIMO; with TNone
// it fails at once instead of blocking forever.
func (d *Driver) Read(h gpib.Handle, buf []byte) gpib.Result {
	if res, faulted := d.record(Call{Op: OpRead, Handle: h, Size: len(buf)}); faulted {
		return res
	}

	od, ok := d.handles.Load(h)
	if !ok {
		return failure(gpib.EHDL, 0)
	}
	dev, ok := d.devices.Load(od.params.Address)
	if !ok {
		return failure(gpib.EABO, gpib.StatusCIC|gpib.StatusTIMO)
	}

	timeout := od.params.Timeout.Duration()
	od.mu.Lock()
	defer od.mu.Unlock()

	if len(od.pending) == 0 {
		if timeout > 0 {
			pool.Sleep(timeout, nil)
		}

		return failure(gpib.EABO, gpib.StatusCIC|gpib.StatusTIMO)
	}
	if dev.Delay > 0 {
		if timeout > 0 && dev.Delay > timeout {
			pool.Sleep(timeout, nil)
			return failure(gpib.EABO, gpib.StatusCIC|gpib.StatusTIMO)
		}
		pool.Sleep(dev.Delay, nil)
	}

	n := copy(buf, od.pending)
	od.pending = od.pending[n:]

	status := gpib.StatusCMPL | gpib.StatusCIC | gpib.StatusLACS
	if len(od.pending) == 0 {
		status |= gpib.StatusEND
	}

	return gpib.Result{Status: status, Count: n}
}

// Offline implements gpib.Driver.
func (d *Driver) Offline(h gpib.Handle) gpib.Result {
	res, faulted := d.record(Call{Op: OpOffline, Handle: h})
	if _, ok := d.handles.LoadAndDelete(h); !ok && !faulted {
		return failure(gpib.EHDL, 0)
	}
	if faulted {
		return res
	}

	return gpib.Result{Status: gpib.StatusCMPL}
}
