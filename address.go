package twi

import (
	"fmt"
	"strconv"
)

// Address is a 7-bit bus address.
type Address uint8

const MaxAddress Address = 0x7F

func (a Address) Valid() bool {
	return a <= MaxAddress
}

// Write returns the SLA+W byte framed after START.
func (a Address) Write() byte {
	return byte(a) << 1
}

// Read returns the SLA+R byte framed after START.
func (a Address) Read() byte {
	return byte(a)<<1 | 1
}

func (a Address) String() string {
	return fmt.Sprintf("%#02x", uint8(a))
}

// ParseAddress accepts decimal, 0x hex, 0o octal and 0b binary notation.
func ParseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("could not parse address %q: %w", s, err)
	}
	a := Address(v)
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrAddress, s)
	}
	return a, nil
}
