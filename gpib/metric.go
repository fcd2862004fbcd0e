package gpib

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// OpenErrCount indicates the number of failed open calls.
	OpenErrCount atomic.Uint64

	// QueryCount indicates the number of completed queries.
	QueryCount atomic.Uint64
	// QueryErrCount indicates the number of failed queries.
	QueryErrCount atomic.Uint64

	// BytesSent indicates the number of bytes written to the device.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read from the device.
	BytesRecv atomic.Uint64

	// ForcedOfflineCount indicates the number of times the device was forced offline after a failure.
	ForcedOfflineCount atomic.Uint64
	// CloseErrCount indicates the number of close calls the driver reported as failed.
	CloseErrCount atomic.Uint64
}

func (m *SessionMetrics) incOpenErrCount() {
	m.OpenErrCount.Add(1)
}

func (m *SessionMetrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *SessionMetrics) incQueryErrCount() {
	m.QueryErrCount.Add(1)
}

func (m *SessionMetrics) addBytesSent(n int) {
	if n > 0 {
		m.BytesSent.Add(uint64(n))
	}
}

func (m *SessionMetrics) addBytesRecv(n int) {
	if n > 0 {
		m.BytesRecv.Add(uint64(n))
	}
}

func (m *SessionMetrics) incForcedOfflineCount() {
	m.ForcedOfflineCount.Add(1)
}

func (m *SessionMetrics) incCloseErrCount() {
	m.CloseErrCount.Add(1)
}
