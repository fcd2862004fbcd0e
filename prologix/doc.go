// Package prologix implements a gpib.Driver for Prologix GPIB-ETHERNET and
// GPIB-USB adapters.
//
// The adapter is put in controller mode with read-after-write disabled, so
// every read is requested explicitly with "++read eoi". The adapter appends
// an end-of-transmission character (LF by default, see WithEOTChar) when
// the device asserts EOI; responses containing that character are cut short.
//
// Use Dial for the Ethernet adapter, DialSerial for the USB adapter, or New
// with any io.ReadWriteCloser:
//
//	drv, err := prologix.Dial(ctx, "192.168.1.50")
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//
//	addr := gpib.Address{Board: 0, Primary: 2}
//	err = gpib.Run(drv, addr, gpib.T3s, func(s *gpib.Session) error {
//		id, err := s.Identify()
//		...
//	})
package prologix
