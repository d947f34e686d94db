package twi

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

var prescalers = []int64{1, 4, 16, 64}

// BitRate is the bit rate generator setting of an SCL frequency:
//
//	scl = cpu / (16 + 2*Divider*Prescaler)
type BitRate struct {
	Divider   uint8
	Prescaler int64
}

// Frequency returns the SCL frequency the setting produces on cpu.
func (r BitRate) Frequency(cpu physic.Frequency) physic.Frequency {
	return cpu / physic.Frequency(16+2*int64(r.Divider)*r.Prescaler)
}

// ComputeBitRate finds the smallest prescaler whose divider produces scl
// from cpu. cpu must be at least 16 times scl.
func ComputeBitRate(cpu, scl physic.Frequency) (BitRate, error) {
	if scl <= 0 {
		return BitRate{}, fmt.Errorf("%w: %s", ErrClockRate, scl)
	}
	if cpu < 16*scl {
		return BitRate{}, fmt.Errorf("%w: %s needs a clock of at least %s", ErrClockRate, scl, 16*scl)
	}
	tp := int64(cpu/(2*scl)) - 8
	for _, p := range prescalers {
		if tp/p < 256 {
			return BitRate{Divider: uint8(tp / p), Prescaler: p}, nil
		}
	}
	return BitRate{}, fmt.Errorf("%w: %s too slow for %s clock", ErrClockRate, scl, cpu)
}
