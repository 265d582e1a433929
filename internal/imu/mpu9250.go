// Package imu reads inertial samples from an MPU-9250 (accelerometer,
// gyroscope and temperature) with its AK8963 magnetometer reached through the
// MPU's I2C bypass.
package imu

import (
	"fmt"
	"sync"

	"github.com/banshee-data/rover.bridge/internal/telemetry"
)

// Bus is a register-level I2C bus shared by both chips.
type Bus interface {
	WriteReg(addr uint16, reg byte, value byte) error
	ReadRegs(addr uint16, reg byte, buf []byte) error
	Close() error
}

// Addresses and registers used by the driver.
const (
	AddressMPU    = 0x68
	AddressAK8963 = 0x0C

	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regIntPinCfg   = 0x37
	regAccelXOutH  = 0x3B
	regPwrMgmt1    = 0x6B

	regAKStatus1 = 0x02
	regAKXOutL   = 0x03
	regAKCntl1   = 0x0A

	// 16-bit output, continuous measurement mode 2 (100 Hz)
	akMode16Bit100Hz = 0x16
	// ST2 HOFL: magnetic sensor overflow
	akOverflow = 0x08
)

// Full-scale conversion factors for the ±2 g, ±250 °/s and 16-bit settings.
const (
	accelLSBPerG     = 16384.0
	gyroLSBPerDegSec = 131.0
	magMicroTPerLSB  = 0.15
	tempLSBPerDegC   = 333.87
	tempOffsetDegC   = 21.0
)

// MPU9250 is an inertial sample source. Read is the only blocking call and is
// issued from the inertial stream alone.
type MPU9250 struct {
	bus  Bus
	addr uint16

	mu     sync.Mutex
	closed bool
	// last good magnetometer reading, reused when the AK8963 has no new data
	mag [3]float64
}

// New returns a driver on bus for the MPU at addr. Call Configure before Read.
func New(bus Bus, addr uint16) *MPU9250 {
	if addr == 0 {
		addr = AddressMPU
	}
	return &MPU9250{bus: bus, addr: addr}
}

// Configure wakes the MPU, selects ±250 °/s and ±2 g ranges, enables the
// I2C bypass and starts the magnetometer in 16-bit 100 Hz mode.
func (m *MPU9250) Configure() error {
	steps := []struct {
		addr  uint16
		reg   byte
		value byte
		what  string
	}{
		{m.addr, regPwrMgmt1, 0x00, "wake"},
		{m.addr, regPwrMgmt1, 0x01, "select PLL clock"},
		{m.addr, regConfig, 0x03, "set DLPF"},
		{m.addr, regSmplrtDiv, 0x04, "set sample rate"},
		{m.addr, regGyroConfig, 0x00, "set gyro range"},
		{m.addr, regAccelConfig, 0x00, "set accel range"},
		{m.addr, regIntPinCfg, 0x02, "enable bypass"},
		{AddressAK8963, regAKCntl1, akMode16Bit100Hz, "start magnetometer"},
	}
	for _, s := range steps {
		if err := m.bus.WriteReg(s.addr, s.reg, s.value); err != nil {
			return fmt.Errorf("failed to %s: %w", s.what, err)
		}
	}
	return nil
}

// Read takes one sample.
func (m *MPU9250) Read() (telemetry.InertialSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return telemetry.InertialSample{}, telemetry.ErrSourceClosed
	}

	var s telemetry.InertialSample

	// accel(6) temp(2) gyro(6), big-endian
	raw := make([]byte, 14)
	if err := m.bus.ReadRegs(m.addr, regAccelXOutH, raw); err != nil {
		return s, fmt.Errorf("failed to read accel/gyro: %w", err)
	}
	for i := 0; i < 3; i++ {
		s.Accel[i] = float64(be16(raw[2*i:])) / accelLSBPerG
		s.Gyro[i] = float64(be16(raw[8+2*i:])) / gyroLSBPerDegSec
	}
	s.Temp = float64(be16(raw[6:]))/tempLSBPerDegC + tempOffsetDegC

	mag, err := m.readMag()
	if err != nil {
		return s, err
	}
	s.Mag = mag
	return s, nil
}

func (m *MPU9250) readMag() ([3]float64, error) {
	st1 := make([]byte, 1)
	if err := m.bus.ReadRegs(AddressAK8963, regAKStatus1, st1); err != nil {
		return m.mag, fmt.Errorf("failed to read magnetometer status: %w", err)
	}
	if st1[0]&0x01 == 0 {
		return m.mag, nil
	}

	// X/Y/Z little-endian then ST2; ST2 must be read to release the data
	raw := make([]byte, 7)
	if err := m.bus.ReadRegs(AddressAK8963, regAKXOutL, raw); err != nil {
		return m.mag, fmt.Errorf("failed to read magnetometer: %w", err)
	}
	if raw[6]&akOverflow != 0 {
		return m.mag, nil
	}
	for i := 0; i < 3; i++ {
		m.mag[i] = float64(le16(raw[2*i:])) * magMicroTPerLSB
	}
	return m.mag, nil
}

// Close releases the bus. Subsequent reads return telemetry.ErrSourceClosed.
func (m *MPU9250) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.bus.Close()
}

func be16(b []byte) int16 { return int16(uint16(b[0])<<8 | uint16(b[1])) }
func le16(b []byte) int16 { return int16(uint16(b[1])<<8 | uint16(b[0])) }
