package gpib

import (
	"fmt"
	"strings"
)

// Status is the status word reported by the bus driver after every call.
//
// Bit positions follow the NI-488.2 ibsta layout. A Status is a snapshot of a
// single driver call; it has no meaning beyond the Result it arrived in.
type Status uint32

// Status bits.
const (
	StatusDCAS Status = 1 << 0  // device clear state
	StatusDTAS Status = 1 << 1  // device trigger state
	StatusLACS Status = 1 << 2  // listener active
	StatusTACS Status = 1 << 3  // talker active
	StatusATN  Status = 1 << 4  // attention asserted
	StatusCIC  Status = 1 << 5  // controller-in-charge
	StatusREM  Status = 1 << 6  // remote state
	StatusLOK  Status = 1 << 7  // lockout state
	StatusCMPL Status = 1 << 8  // I/O completed
	StatusRQS  Status = 1 << 11 // device requesting service
	StatusSRQI Status = 1 << 12 // SRQ interrupt received
	StatusEND  Status = 1 << 13 // END or EOS detected
	StatusTIMO Status = 1 << 14 // time limit exceeded
	StatusERR  Status = 1 << 15 // error detected
)

// Failed reports whether the error bit is set.
func (s Status) Failed() bool { return s&StatusERR != 0 }

// TimedOut reports whether the timeout bit is set.
func (s Status) TimedOut() bool { return s&StatusTIMO != 0 }

// String returns the status in the "&H8100 <ERR CMPL>" form.
func (s Status) String() string {
	flags := Decode(s, 0, 0).Flags
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		names = append(names, f.Mnemonic())
	}

	return fmt.Sprintf("&H%x <%s>", uint32(s), strings.Join(names, " "))
}

// ErrorCode is the driver error code. It is meaningful only when the
// accompanying Status has the ERR bit set.
type ErrorCode int

// Driver error codes, using the NI-488.2 iberr values.
const (
	EDVR ErrorCode = 0  // system error
	ECIC ErrorCode = 1  // not controller-in-charge
	ENOL ErrorCode = 2  // no listener
	EADR ErrorCode = 3  // addressing error
	EARG ErrorCode = 4  // invalid argument
	ESAC ErrorCode = 5  // not system controller
	EABO ErrorCode = 6  // I/O operation aborted
	ENEB ErrorCode = 7  // nonexistent board
	EDMA ErrorCode = 8  // DMA error
	EOIP ErrorCode = 10 // async I/O in progress
	ECAP ErrorCode = 11 // no capability
	EFSO ErrorCode = 12 // file system error
	EBUS ErrorCode = 14 // bus command error
	ESRQ ErrorCode = 16 // SRQ stuck on
	ETAB ErrorCode = 20 // table overflow
	ELCK ErrorCode = 21 // interface is locked
	EARM ErrorCode = 22 // ibnotify callback failed to rearm
	EHDL ErrorCode = 23 // input handle is invalid
	EWIP ErrorCode = 26 // wait in progress on handle
	ERST ErrorCode = 27 // notification cancelled by interface reset
	EPWR ErrorCode = 28 // interface lost power
)

// Result bundles the status, error code and byte count produced by a single
// driver call. Drivers return it explicitly instead of exposing "last call"
// globals.
type Result struct {
	Status Status
	Error  ErrorCode
	Count  int
}

// Failed reports whether the call failed.
func (r Result) Failed() bool { return r.Status.Failed() }

// Diagnostic decodes the result.
func (r Result) Diagnostic() Diagnostic { return Decode(r.Status, r.Error, r.Count) }

// Flag is a named status bit.
type Flag uint8

// Status flags, in the order Decode reports them.
const (
	FlagError Flag = iota
	FlagTimeout
	FlagEnd
	FlagServiceRequest
	FlagRequestService
	FlagComplete
	FlagLockout
	FlagRemote
	FlagControllerInCharge
	FlagAttention
	FlagTalker
	FlagListener
	FlagDeviceTalk
	FlagDeviceClear
	// FlagUnknown marks status bits outside the known vocabulary.
	FlagUnknown
)

type flagInfo struct {
	bit      Status
	name     string
	mnemonic string
}

var flagTable = [...]flagInfo{
	FlagError:              {StatusERR, "Error", "ERR"},
	FlagTimeout:            {StatusTIMO, "Timeout", "TIMO"},
	FlagEnd:                {StatusEND, "End", "END"},
	FlagServiceRequest:     {StatusSRQI, "ServiceRequest", "SRQI"},
	FlagRequestService:     {StatusRQS, "RequestService", "RQS"},
	FlagComplete:           {StatusCMPL, "Complete", "CMPL"},
	FlagLockout:            {StatusLOK, "LockoutState", "LOK"},
	FlagRemote:             {StatusREM, "RemoteState", "REM"},
	FlagControllerInCharge: {StatusCIC, "ControllerInCharge", "CIC"},
	FlagAttention:          {StatusATN, "AttentionAsserted", "ATN"},
	FlagTalker:             {StatusTACS, "TalkerActive", "TACS"},
	FlagListener:           {StatusLACS, "ListenerActive", "LACS"},
	FlagDeviceTalk:         {StatusDTAS, "DeviceTalkActive", "DTAS"},
	FlagDeviceClear:        {StatusDCAS, "DeviceClearActive", "DCAS"},
}

// knownStatusBits is the union of every named status bit.
var knownStatusBits = func() Status {
	var s Status
	for _, fi := range flagTable {
		s |= fi.bit
	}

	return s
}()

// String returns the flag name.
func (f Flag) String() string {
	if int(f) < len(flagTable) {
		return flagTable[f].name
	}

	return "Unknown"
}

// Mnemonic returns the short driver mnemonic of the flag, e.g. "TIMO".
func (f Flag) Mnemonic() string {
	if int(f) < len(flagTable) {
		return flagTable[f].mnemonic
	}

	return "?"
}

// Bit returns the status bit of the flag, or 0 for FlagUnknown.
func (f Flag) Bit() Status {
	if int(f) < len(flagTable) {
		return flagTable[f].bit
	}

	return 0
}

// Reason is the named cause of a driver error.
type Reason uint8

// Error reasons.
const (
	ReasonNone Reason = iota
	ReasonDriverError
	ReasonNotControllerInCharge
	ReasonNoListener
	ReasonAddressError
	ReasonInvalidArgument
	ReasonNotSystemController
	ReasonOperationAborted
	ReasonNoBoard
	ReasonDMAError
	ReasonAsyncInProgress
	ReasonNoCapability
	ReasonFileSystemError
	ReasonCommandError
	ReasonServiceRequestStuck
	ReasonTableOverflow
	ReasonInterfaceLocked
	ReasonCallbackRearmFailed
	ReasonInvalidHandle
	ReasonWaitInProgress
	ReasonNotificationCancelled
	ReasonPowerLoss
	ReasonUnknown
)

var reasonNames = [...]string{
	ReasonNone:                  "None",
	ReasonDriverError:           "DriverError",
	ReasonNotControllerInCharge: "NotControllerInCharge",
	ReasonNoListener:            "NoListener",
	ReasonAddressError:          "AddressError",
	ReasonInvalidArgument:       "InvalidArgument",
	ReasonNotSystemController:   "NotSystemController",
	ReasonOperationAborted:      "OperationAborted",
	ReasonNoBoard:               "NoBoard",
	ReasonDMAError:              "DmaError",
	ReasonAsyncInProgress:       "AsyncInProgress",
	ReasonNoCapability:          "NoCapability",
	ReasonFileSystemError:       "FileSystemError",
	ReasonCommandError:          "CommandError",
	ReasonServiceRequestStuck:   "ServiceRequestStuck",
	ReasonTableOverflow:         "TableOverflow",
	ReasonInterfaceLocked:       "InterfaceLocked",
	ReasonCallbackRearmFailed:   "CallbackRearmFailed",
	ReasonInvalidHandle:         "InvalidHandle",
	ReasonWaitInProgress:        "WaitInProgress",
	ReasonNotificationCancelled: "NotificationCancelled",
	ReasonPowerLoss:             "PowerLoss",
	ReasonUnknown:               "Unknown",
}

var codeReasons = map[ErrorCode]Reason{
	EDVR: ReasonDriverError,
	ECIC: ReasonNotControllerInCharge,
	ENOL: ReasonNoListener,
	EADR: ReasonAddressError,
	EARG: ReasonInvalidArgument,
	ESAC: ReasonNotSystemController,
	EABO: ReasonOperationAborted,
	ENEB: ReasonNoBoard,
	EDMA: ReasonDMAError,
	EOIP: ReasonAsyncInProgress,
	ECAP: ReasonNoCapability,
	EFSO: ReasonFileSystemError,
	EBUS: ReasonCommandError,
	ESRQ: ReasonServiceRequestStuck,
	ETAB: ReasonTableOverflow,
	ELCK: ReasonInterfaceLocked,
	EARM: ReasonCallbackRearmFailed,
	EHDL: ReasonInvalidHandle,
	EWIP: ReasonWaitInProgress,
	ERST: ReasonNotificationCancelled,
	EPWR: ReasonPowerLoss,
}

// String returns the reason name.
func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}

	return reasonNames[ReasonUnknown]
}

// ReasonOf maps an error code to its reason. Unknown codes map to ReasonUnknown.
func ReasonOf(code ErrorCode) Reason {
	if r, ok := codeReasons[code]; ok {
		return r
	}

	return ReasonUnknown
}

// Diagnostic is the decoded form of a failed driver call.
type Diagnostic struct {
	// Flags lists the named status flags that were set, in a fixed order.
	// FlagUnknown is appended once when bits outside the vocabulary were set.
	Flags []Flag
	// Reason is the named error reason, ReasonNone when the ERR bit was clear.
	Reason Reason
	// Count is the byte count of the call.
	Count int
	// Status and Code are the raw inputs.
	Status Status
	Code   ErrorCode
}

// Decode translates a raw status word, error code and byte count into a Diagnostic.
//
// Decode is pure and total: every input decodes, unrecognized bits and codes
// become FlagUnknown and ReasonUnknown.
func Decode(status Status, code ErrorCode, count int) Diagnostic {
	d := Diagnostic{
		Flags:  make([]Flag, 0, 4),
		Reason: ReasonNone,
		Count:  count,
		Status: status,
		Code:   code,
	}

	for i, fi := range flagTable {
		if status&fi.bit != 0 {
			d.Flags = append(d.Flags, Flag(i))
		}
	}
	if status&^knownStatusBits != 0 {
		d.Flags = append(d.Flags, FlagUnknown)
	}

	if status.Failed() {
		d.Reason = ReasonOf(code)
	}

	return d
}

// Has reports whether flag f is present.
func (d Diagnostic) Has(f Flag) bool {
	for _, v := range d.Flags {
		if v == f {
			return true
		}
	}

	return false
}

// Retryable reports whether the failure looks transient: the call timed out
// and the reason does not indicate a missing device or adapter.
func (d Diagnostic) Retryable() bool {
	if !d.Has(FlagTimeout) {
		return false
	}

	switch d.Reason { //nolint:exhaustive
	case ReasonNoListener, ReasonAddressError, ReasonNoBoard, ReasonInvalidHandle:
		return false
	default:
		return true
	}
}

// String renders the diagnostic as "flags=[Error Timeout] reason=OperationAborted count=0".
func (d Diagnostic) String() string {
	names := make([]string, 0, len(d.Flags))
	for _, f := range d.Flags {
		names = append(names, f.String())
	}

	return fmt.Sprintf("flags=[%s] reason=%s count=%d", strings.Join(names, " "), d.Reason, d.Count)
}
