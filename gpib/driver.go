package gpib

// Handle is the opaque device descriptor returned by Driver.Open.
//
// Only strictly positive values are valid; anything else means the open failed.
type Handle int

// InvalidHandle is the sentinel drivers return when Open fails.
const InvalidHandle Handle = -1

// Valid reports whether h refers to an opened device.
func (h Handle) Valid() bool { return h > 0 }

// EOSMode selects the end-of-string handling of the driver. The low byte
// holds the EOS character and the upper bits the mode flags.
type EOSMode uint16

// EOS mode flags.
const (
	EOSNone   EOSMode = 0
	EOSRead   EOSMode = 0x0400 // terminate reads on the EOS character
	EOSWrite  EOSMode = 0x0800 // assert EOI with the EOS character on writes
	EOSBinary EOSMode = 0x1000 // compare all 8 bits of the EOS character
)

// OpenParams carries the arguments of Driver.Open.
type OpenParams struct {
	Address Address
	Timeout Timeout
	// AssertEOI asserts EOI with the last byte of every write.
	AssertEOI bool
	EOS       EOSMode
}

// Driver is the bus driver a Session talks to.
//
// Every primitive is a blocking call bounded by the timeout tier given to
// Open, and returns its status explicitly. Implementations must not keep
// per-call status in shared state that a concurrent call on another handle
// could overwrite.
type Driver interface {
	// Open acquires a device descriptor. On failure it returns InvalidHandle
	// (or any non-positive handle) together with the failing Result.
	Open(params OpenParams) (Handle, Result)
	// Clear sends the selected device clear message to the device.
	Clear(h Handle) Result
	// Write sends data to the device. Result.Count is the number of bytes sent.
	Write(h Handle, data []byte) Result
	// Read receives at most len(buf) bytes into buf. Result.Count is the
	// number of bytes received.
	Read(h Handle, buf []byte) Result
	// Offline takes the device offline and releases the descriptor.
	Offline(h Handle) Result
}
