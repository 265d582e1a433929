package imu

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl request from <linux/i2c-dev.h>.
const i2cSlave = 0x0703

// I2CBus is a Linux i2c-dev bus. The slave address is switched per transfer.
type I2CBus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
}

// OpenI2C opens an i2c-dev character device such as /dev/i2c-1.
func OpenI2C(path string) (*I2CBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %s: %w", path, err)
	}
	return &I2CBus{f: f}, nil
}

func (b *I2CBus) selectAddr(addr uint16) error {
	if b.addr == addr {
		return nil
	}
	if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("failed to select i2c address 0x%02x: %w", addr, err)
	}
	b.addr = addr
	return nil
}

func (b *I2CBus) WriteReg(addr uint16, reg byte, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selectAddr(addr); err != nil {
		return err
	}
	_, err := b.f.Write([]byte{reg, value})
	return err
}

func (b *I2CBus) ReadRegs(addr uint16, reg byte, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.selectAddr(addr); err != nil {
		return err
	}
	if _, err := b.f.Write([]byte{reg}); err != nil {
		return err
	}
	_, err := b.f.Read(buf)
	return err
}

func (b *I2CBus) Close() error {
	return b.f.Close()
}
