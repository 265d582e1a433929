package imu

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover.bridge/internal/telemetry"
)

// fakeBus serves register reads from per-address maps and records writes.
type fakeBus struct {
	regs    map[uint16]map[byte]byte
	writes  []string
	readErr error
	closed  int
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: map[uint16]map[byte]byte{
		AddressMPU:    {},
		AddressAK8963: {},
	}}
}

func (f *fakeBus) WriteReg(addr uint16, reg byte, value byte) error {
	f.writes = append(f.writes, fmt.Sprintf("%02x:%02x=%02x", addr, reg, value))
	f.regs[addr][reg] = value
	return nil
}

func (f *fakeBus) ReadRegs(addr uint16, reg byte, buf []byte) error {
	if f.readErr != nil {
		return f.readErr
	}
	for i := range buf {
		buf[i] = f.regs[addr][reg+byte(i)]
	}
	return nil
}

func (f *fakeBus) Close() error {
	f.closed++
	return nil
}

func (f *fakeBus) setBE(addr uint16, reg byte, v int16) {
	f.regs[addr][reg] = byte(uint16(v) >> 8)
	f.regs[addr][reg+1] = byte(v)
}

func (f *fakeBus) setLE(addr uint16, reg byte, v int16) {
	f.regs[addr][reg] = byte(v)
	f.regs[addr][reg+1] = byte(uint16(v) >> 8)
}

func TestConfigure(t *testing.T) {
	bus := newFakeBus()
	m := New(bus, 0)
	require.NoError(t, m.Configure())

	assert.Len(t, bus.writes, 8)
	assert.Equal(t, byte(0x02), bus.regs[AddressMPU][regIntPinCfg])
	assert.Equal(t, byte(akMode16Bit100Hz), bus.regs[AddressAK8963][regAKCntl1])
}

func TestRead_Scales(t *testing.T) {
	bus := newFakeBus()
	bus.setBE(AddressMPU, regAccelXOutH, 16384)   // 1 g
	bus.setBE(AddressMPU, regAccelXOutH+2, -8192) // -0.5 g
	bus.setBE(AddressMPU, regAccelXOutH+4, 0)
	bus.setBE(AddressMPU, regAccelXOutH+6, 0) // temp raw 0 → 21 °C
	bus.setBE(AddressMPU, regAccelXOutH+8, 131)
	bus.setBE(AddressMPU, regAccelXOutH+10, -262)
	bus.setBE(AddressMPU, regAccelXOutH+12, 0)

	bus.regs[AddressAK8963][regAKStatus1] = 0x01
	bus.setLE(AddressAK8963, regAKXOutL, 100)
	bus.setLE(AddressAK8963, regAKXOutL+2, -100)
	bus.setLE(AddressAK8963, regAKXOutL+4, 0)

	m := New(bus, AddressMPU)
	s, err := m.Read()
	require.NoError(t, err)

	assert.InDelta(t, 1.0, s.Accel[0], 1e-9)
	assert.InDelta(t, -0.5, s.Accel[1], 1e-9)
	assert.InDelta(t, 1.0, s.Gyro[0], 1e-9)
	assert.InDelta(t, -2.0, s.Gyro[1], 1e-9)
	assert.InDelta(t, 21.0, s.Temp, 1e-9)
	assert.InDelta(t, 100*magMicroTPerLSB, s.Mag[0], 1e-9)
	assert.InDelta(t, -100*magMicroTPerLSB, s.Mag[1], 1e-9)
}

func TestRead_MagNotReadyKeepsLastValue(t *testing.T) {
	bus := newFakeBus()
	bus.regs[AddressAK8963][regAKStatus1] = 0x01
	bus.setLE(AddressAK8963, regAKXOutL, 50)

	m := New(bus, AddressMPU)
	first, err := m.Read()
	require.NoError(t, err)

	bus.regs[AddressAK8963][regAKStatus1] = 0x00
	bus.setLE(AddressAK8963, regAKXOutL, 999)
	second, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, first.Mag, second.Mag)

	// overflow flag in ST2 also discards the reading
	bus.regs[AddressAK8963][regAKStatus1] = 0x01
	bus.regs[AddressAK8963][regAKXOutL+6] = akOverflow
	third, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, first.Mag, third.Mag)
}

func TestRead_ErrorsAndClose(t *testing.T) {
	bus := newFakeBus()
	bus.readErr = errors.New("nack")
	m := New(bus, AddressMPU)

	_, err := m.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, bus.closed)

	_, err = m.Read()
	assert.ErrorIs(t, err, telemetry.ErrSourceClosed)
}
