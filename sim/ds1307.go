package sim

import (
	"time"

	"github.com/mklimuk/twi"
)

const (
	DS1307Address twi.Address = 0x68
	ds1307Size                = 0x40
	ds1307TimeRegs            = 7
	ds1307Halt                = 0x80
)

// DS1307 models the real time clock: seven BCD time registers followed by
// control and battery backed RAM. Time advances with the host clock unless
// the clock halt bit is set.
type DS1307 struct {
	*Memory
	now   func() time.Time
	base  time.Time
	setAt time.Time
	dirty bool
}

func NewDS1307(now func() time.Time) *DS1307 {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &DS1307{
		Memory: NewMemory(DS1307Address, ds1307Size),
		now:    now,
		base:   t.UTC().Truncate(time.Second),
		setAt:  t,
	}
}

func (d *DS1307) Begin(read bool) bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	if read {
		d.refresh()
	}
	d.begin(read)
	return true
}

func (d *DS1307) Receive(b byte) bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.received == d.config.AddressWidth && d.ptr < ds1307TimeRegs {
		d.dirty = true
	}
	d.receive(b)
	return true
}

func (d *DS1307) End() {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.dirty {
		return
	}
	d.dirty = false
	r := d.mem
	hour := bcdToDec(r[2] & 0x3F)
	if r[2]&0x40 != 0 {
		hour = bcdToDec(r[2] & 0x1F)
		if r[2]&0x20 != 0 {
			hour += 12
		}
	}
	d.base = time.Date(2000+bcdToDec(r[6]), time.Month(bcdToDec(r[5])), bcdToDec(r[4]),
		hour, bcdToDec(r[1]), bcdToDec(r[0]&0x7F), 0, time.UTC)
	d.setAt = d.now()
}

// Time returns the current clock value.
func (d *DS1307) Time() time.Time {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.refresh()
	return d.base.Add(d.now().Sub(d.setAt)).Truncate(time.Second)
}

func (d *DS1307) halted() bool {
	return d.mem[0]&ds1307Halt != 0
}

func (d *DS1307) refresh() {
	if d.halted() {
		d.setAt = d.now()
		return
	}
	t := d.base.Add(d.now().Sub(d.setAt))
	d.mem[0] = decToBcd(t.Second())
	d.mem[1] = decToBcd(t.Minute())
	d.mem[2] = decToBcd(t.Hour())
	d.mem[3] = decToBcd(int(t.Weekday()) + 1)
	d.mem[4] = decToBcd(t.Day())
	d.mem[5] = decToBcd(int(t.Month()))
	d.mem[6] = decToBcd(t.Year() - 2000)
}

func decToBcd(v int) byte {
	return byte(v/10<<4 | v%10)
}

func bcdToDec(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
