package gpib

import "fmt"

// Address limits.
const (
	MaxPrimaryAddress   = 30
	MinSecondaryAddress = 96
	MaxSecondaryAddress = 126
	NoSecondaryAddress  = 0
)

// Address identifies a device on the bus.
type Address struct {
	// Board is the index of the bus adapter (GPIB0 = 0, GPIB1 = 1, ...).
	Board int
	// Primary is the primary address, 0 to 30.
	Primary int
	// Secondary is the secondary address, 96 to 126, or 0 for none.
	Secondary int
}

// NewAddress returns a validated Address.
func NewAddress(board, primary, secondary int) (Address, error) {
	addr := Address{Board: board, Primary: primary, Secondary: secondary}
	if err := addr.Validate(); err != nil {
		return Address{}, err
	}

	return addr, nil
}

// Validate checks the address ranges.
func (a Address) Validate() error {
	if a.Board < 0 {
		return fmt.Errorf("gpib: board index %d is negative", a.Board)
	}
	if a.Primary < 0 || a.Primary > MaxPrimaryAddress {
		return fmt.Errorf("gpib: primary address %d out of range [0, %d]", a.Primary, MaxPrimaryAddress)
	}
	if a.Secondary != NoSecondaryAddress &&
		(a.Secondary < MinSecondaryAddress || a.Secondary > MaxSecondaryAddress) {
		return fmt.Errorf("gpib: secondary address %d must be 0 or in range [%d, %d]",
			a.Secondary, MinSecondaryAddress, MaxSecondaryAddress)
	}

	return nil
}

// HasSecondary reports whether secondary addressing is used.
func (a Address) HasSecondary() bool { return a.Secondary != NoSecondaryAddress }

// String returns the VISA-like resource form, e.g. "GPIB0::2::INSTR" or "GPIB0::2::96::INSTR".
func (a Address) String() string {
	if a.HasSecondary() {
		return fmt.Sprintf("GPIB%d::%d::%d::INSTR", a.Board, a.Primary, a.Secondary)
	}

	return fmt.Sprintf("GPIB%d::%d::INSTR", a.Board, a.Primary)
}
