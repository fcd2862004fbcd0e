package gpib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSingleFlag(t *testing.T) {
	tests := []struct {
		bit  Status
		flag Flag
		name string
	}{
		{StatusERR, FlagError, "Error"},
		{StatusTIMO, FlagTimeout, "Timeout"},
		{StatusEND, FlagEnd, "End"},
		{StatusSRQI, FlagServiceRequest, "ServiceRequest"},
		{StatusRQS, FlagRequestService, "RequestService"},
		{StatusCMPL, FlagComplete, "Complete"},
		{StatusLOK, FlagLockout, "LockoutState"},
		{StatusREM, FlagRemote, "RemoteState"},
		{StatusCIC, FlagControllerInCharge, "ControllerInCharge"},
		{StatusATN, FlagAttention, "AttentionAsserted"},
		{StatusTACS, FlagTalker, "TalkerActive"},
		{StatusLACS, FlagListener, "ListenerActive"},
		{StatusDTAS, FlagDeviceTalk, "DeviceTalkActive"},
		{StatusDCAS, FlagDeviceClear, "DeviceClearActive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decode(tt.bit, 0, 0)
			require.Equal(t, []Flag{tt.flag}, d.Flags)
			require.Equal(t, tt.name, tt.flag.String())
			require.Equal(t, tt.bit, tt.flag.Bit())
		})
	}
}

func TestDecodeFlagOrder(t *testing.T) {
	var all Status
	for f := FlagError; f < FlagUnknown; f++ {
		all |= f.Bit()
	}

	d := Decode(all, EABO, 3)
	require.Len(t, d.Flags, int(FlagUnknown))
	for i, f := range d.Flags {
		require.Equal(t, Flag(i), f)
	}
	require.Equal(t, ReasonOperationAborted, d.Reason)
	require.Equal(t, 3, d.Count)
}

func TestDecodeReason(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		code   ErrorCode
		reason Reason
		name   string
	}{
		{EDVR, ReasonDriverError, "DriverError"},
		{ECIC, ReasonNotControllerInCharge, "NotControllerInCharge"},
		{ENOL, ReasonNoListener, "NoListener"},
		{EADR, ReasonAddressError, "AddressError"},
		{EARG, ReasonInvalidArgument, "InvalidArgument"},
		{ESAC, ReasonNotSystemController, "NotSystemController"},
		{EABO, ReasonOperationAborted, "OperationAborted"},
		{ENEB, ReasonNoBoard, "NoBoard"},
		{EDMA, ReasonDMAError, "DmaError"},
		{EOIP, ReasonAsyncInProgress, "AsyncInProgress"},
		{ECAP, ReasonNoCapability, "NoCapability"},
		{EFSO, ReasonFileSystemError, "FileSystemError"},
		{EBUS, ReasonCommandError, "CommandError"},
		{ESRQ, ReasonServiceRequestStuck, "ServiceRequestStuck"},
		{ETAB, ReasonTableOverflow, "TableOverflow"},
		{ELCK, ReasonInterfaceLocked, "InterfaceLocked"},
		{EARM, ReasonCallbackRearmFailed, "CallbackRearmFailed"},
		{EHDL, ReasonInvalidHandle, "InvalidHandle"},
		{EWIP, ReasonWaitInProgress, "WaitInProgress"},
		{ERST, ReasonNotificationCancelled, "NotificationCancelled"},
		{EPWR, ReasonPowerLoss, "PowerLoss"},
	}

	for _, tt := range tests {
		d := Decode(StatusERR, tt.code, 0)
		require.Equal(tt.reason, d.Reason, "code %d", tt.code)
		require.Equal(tt.name, d.Reason.String())
	}
}

func TestDecodeEdgeCases(t *testing.T) {
	require := require.New(t)

	t.Run("Zero", func(t *testing.T) {
		d := Decode(0, 0, 0)
		require.Empty(d.Flags)
		require.Equal(ReasonNone, d.Reason)
		require.Equal("flags=[] reason=None count=0", d.String())
	})

	t.Run("Error code ignored without ERR", func(t *testing.T) {
		d := Decode(StatusCMPL, ENOL, 0)
		require.Equal([]Flag{FlagComplete}, d.Flags)
		require.Equal(ReasonNone, d.Reason)
	})

	t.Run("Unknown bits reported once", func(t *testing.T) {
		d := Decode(StatusCMPL|1<<9|1<<10|1<<20, 0, 0)
		require.Equal([]Flag{FlagComplete, FlagUnknown}, d.Flags)
		require.Equal("Unknown", FlagUnknown.String())
		require.Equal(Status(0), FlagUnknown.Bit())
	})

	t.Run("Unknown error code", func(t *testing.T) {
		for _, code := range []ErrorCode{9, 13, 15, 29, -1, 1000} {
			require.Equal(ReasonUnknown, Decode(StatusERR, code, 0).Reason)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		d := Decode(StatusERR|StatusTIMO|StatusCMPL, EABO, 0)
		require.Equal([]Flag{FlagError, FlagTimeout, FlagComplete}, d.Flags)
		require.Equal(ReasonOperationAborted, d.Reason)
		require.Equal("flags=[Error Timeout Complete] reason=OperationAborted count=0", d.String())
	})
}

func TestDiagnosticRetryable(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		code      ErrorCode
		retryable bool
	}{
		{"read timeout", StatusERR | StatusTIMO, EABO, true},
		{"no listener", StatusERR, ENOL, false},
		{"no listener with timeout", StatusERR | StatusTIMO, ENOL, false},
		{"no board", StatusERR | StatusTIMO, ENEB, false},
		{"driver error", StatusERR, EDVR, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.retryable, Decode(tt.status, tt.code, 0).Retryable())
		})
	}
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "&H8100 <ERR CMPL>", (StatusERR | StatusCMPL).String())
	require.Equal(t, "&H0 <>", Status(0).String())
	require.True(t, (StatusERR | StatusTIMO).TimedOut())
	require.False(t, StatusCMPL.Failed())
}

func TestResult(t *testing.T) {
	res := Result{Status: StatusERR | StatusCMPL, Error: ENOL, Count: 0}
	require.True(t, res.Failed())

	d := res.Diagnostic()
	require.True(t, d.Has(FlagError))
	require.False(t, d.Has(FlagTimeout))
	require.Equal(t, ReasonNoListener, d.Reason)
}
