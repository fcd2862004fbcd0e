// Package gpib implements device sessions for instruments on an IEEE-488 (GPIB) bus.
//
// A Session owns one device descriptor obtained from a Driver and runs the
// device through a fixed lifecycle:
//
//	unopened -> open -> ready -> (busy -> ready)* -> offline
//
// Open acquires the descriptor, Clear sends the selected device clear, and
// Query performs a write followed by a bounded read. Any failed clear or
// query takes the device offline at once; offline is terminal and Close on
// an offline session is a no-op. Run wraps the whole sequence and guarantees
// the device is released on every exit path.
//
// # Drivers
//
// The Driver interface abstracts the five bus primitives (open, clear,
// write, read, take offline). Each primitive returns a Result holding the
// status word, error code and byte count of that call, so no "last call"
// state is shared between sessions. The gpib/sim package provides an
// in-memory driver, and the prologix package drives Prologix GPIB-ETHERNET
// and GPIB-USB adapters.
//
// # Diagnostics
//
// Decode translates a status word and error code into a Diagnostic listing
// the named status flags and error reason. Every session error of a driver
// call carries its Diagnostic:
//
//	resp, err := s.Query([]byte("*IDN?"), 100)
//	if diag, ok := gpib.DiagnosticOf(err); ok && diag.Retryable() {
//		// reopen a new session and retry
//	}
//
// Sessions never retry on their own.
package gpib
