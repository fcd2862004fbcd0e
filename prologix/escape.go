package prologix

const esc = 0x1b

// escape prefixes CR, LF, ESC and '+' with ESC so the adapter passes them to
// the device instead of interpreting them.
func escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+8)
	for _, c := range data {
		switch c {
		case '\r', '\n', esc, '+':
			out = append(out, esc)
		}
		out = append(out, c)
	}

	return out
}
