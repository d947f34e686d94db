package i2c

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers/at24cx"
	"tinygo.org/x/drivers/ds1307"
)

func newEngineBus(t *testing.T) (*EngineBus, *sim.Bus) {
	t.Helper()
	bus := sim.NewBus(sim.WithLogger(quiet))
	m := master.New(bus.Master(), master.WithLogger(quiet), master.WithSleep(bus.Sleep))
	bus.Master().OnInterrupt(m.HandleBusEvent)
	require.NoError(t, m.TurnOn(100*physic.KiloHertz))
	return NewEngineBus(m), bus
}

func TestEngineBus_Transfers(t *testing.T) {
	b, bus := newEngineBus(t)
	mem := sim.NewMemory(0x50, 256)
	require.NoError(t, bus.Attach(mem))
	rec := &i2ctest.Record{Bus: b}

	long := make([]byte, 80)
	for i := range long {
		long[i] = byte(i)
	}
	require.NoError(t, rec.Tx(0x50, append([]byte{0x10}, long...), nil))
	assert.Equal(t, 1, mem.Writes(), "a long write is a single transfer")

	got := make([]byte, 80)
	require.NoError(t, rec.Tx(0x50, []byte{0x10}, got))
	assert.Equal(t, long, got)
	require.Len(t, rec.Ops, 2)
	assert.Equal(t, long, rec.Ops[1].R)

	assert.ErrorIs(t, b.Tx(0x51, nil, nil), twi.ErrNoResponse)
	assert.NoError(t, b.Tx(0x50, nil, nil))
	assert.ErrorIs(t, b.Tx(0x80, []byte{0}, nil), twi.ErrAddress)
	assert.True(t, b.Engine().IsIdle())
}

func TestEngineBus_Addressable(t *testing.T) {
	b, bus := newEngineBus(t)
	require.NoError(t, bus.Attach(sim.NewLoopback(0x22)))
	ctx := context.Background()

	require.NoError(t, b.WriteToAddr(ctx, 0x22, []byte{1, 2, 3}))
	got := make([]byte, 3)
	require.NoError(t, b.ReadFromAddr(ctx, 0x22, got))
	assert.Equal(t, []byte{1, 2, 3}, got)
	require.NoError(t, b.Release(ctx))

	found, err := b.Probe(ctx, 0x22)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = b.Probe(ctx, 0x23)
	require.NoError(t, err)
	assert.False(t, found)

	err = b.WriteToAddr(ctx, 0x23, []byte{1})
	assert.ErrorIs(t, err, twi.ErrNoResponse)
}

func TestEngineBus_SetSpeed(t *testing.T) {
	b, bus := newEngineBus(t)
	require.NoError(t, b.SetSpeed(400*physic.KiloHertz))
	f, rate := bus.Master().Clock()
	assert.Equal(t, 400*physic.KiloHertz, f)
	assert.Equal(t, twi.BitRate{Divider: 12, Prescaler: 1}, rate)
}

func TestEngineBus_DS1307(t *testing.T) {
	b, bus := newEngineBus(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := sim.NewDS1307(func() time.Time { return now })
	require.NoError(t, bus.Attach(clock))

	rtc := ds1307.New(b)
	set := time.Date(2024, 10, 18, 21, 45, 30, 0, time.UTC)
	require.NoError(t, rtc.SetTime(set))
	bus.Pump()
	assert.Equal(t, set, clock.Time())

	now = now.Add(90 * time.Second)
	got, err := rtc.ReadTime()
	require.NoError(t, err)
	assert.Equal(t, set.Add(90*time.Second), got)
	assert.True(t, rtc.IsOscillatorRunning())

	_, err = rtc.Seek(0, 0)
	require.NoError(t, err)
	n, err := rtc.Write([]byte("twi"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = rtc.Seek(0, 0)
	require.NoError(t, err)
	ram := make([]byte, 3)
	_, err = rtc.Read(ram)
	require.NoError(t, err)
	assert.Equal(t, "twi", string(ram))
}

func TestEngineBus_AT24C32(t *testing.T) {
	b, bus := newEngineBus(t)
	chip := sim.NewMemory(at24cx.Address, 4096, sim.WithAddressWidth(2), sim.WithPageSize(32))
	require.NoError(t, bus.Attach(chip))

	eeprom := at24cx.New(b)
	eeprom.Configure(at24cx.Config{})

	require.NoError(t, eeprom.WriteByte(0x0100, 0xAB))
	v, err := eeprom.ReadByte(0x0100)
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), v)

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(0xF0 - i)
	}
	_, err = eeprom.WriteAt(data, 0x20)
	require.NoError(t, err)
	assert.Equal(t, data, chip.Bytes()[0x20:0x48])

	got := make([]byte, 40)
	_, err = eeprom.ReadAt(got, 0x20)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestEngineBus_Concurrent(t *testing.T) {
	b, bus := newEngineBus(t)
	mem := sim.NewMemory(0x50, 256)
	require.NoError(t, bus.Attach(mem))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg := byte(i * 16)
			data := []byte{byte(i), byte(i), byte(i), byte(i)}
			err := b.Tx(0x50, append([]byte{reg}, data...), nil)
			if err != nil {
				errs <- err
				return
			}
			got := make([]byte, 4)
			err = b.Tx(0x50, []byte{reg}, got)
			if err == nil && !bytes.Equal(data, got) {
				err = fmt.Errorf("register %#x: got % x", reg, got)
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 16, mem.Writes(), "one write and one register select each")
}
