// Package gpio reads encoder channel lines through the Linux sysfs GPIO
// interface. Edge notifications come from poll(2) on the line's value file.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultRoot is the sysfs GPIO class directory.
const DefaultRoot = "/sys/class/gpio"

// pollSlice bounds each poll(2) wait so a cancelled context is noticed.
const pollSlice = 50 * time.Millisecond

// Edge selects which transitions raise a notification.
type Edge string

const (
	EdgeNone Edge = "none"
	EdgeBoth Edge = "both"
)

// SysfsLine is one exported input line.
type SysfsLine struct {
	pin   int
	dir   string
	value *os.File
}

// Open exports pin under root (if not already exported), configures it as an
// input with the given edge mode and opens its value file.
func Open(root string, pin int, edge Edge) (*SysfsLine, error) {
	dir := filepath.Join(root, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(filepath.Join(root, "export"), strconv.Itoa(pin)); err != nil {
			return nil, fmt.Errorf("failed to export gpio %d: %w", pin, err)
		}
	}
	if err := writeFile(filepath.Join(dir, "direction"), "in"); err != nil {
		return nil, fmt.Errorf("failed to set gpio %d direction: %w", pin, err)
	}
	if err := writeFile(filepath.Join(dir, "edge"), string(edge)); err != nil {
		return nil, fmt.Errorf("failed to set gpio %d edge: %w", pin, err)
	}

	f, err := os.Open(filepath.Join(dir, "value"))
	if err != nil {
		return nil, fmt.Errorf("failed to open gpio %d value: %w", pin, err)
	}
	return &SysfsLine{pin: pin, dir: dir, value: f}, nil
}

func writeFile(path, v string) error {
	return os.WriteFile(path, []byte(v), 0o644)
}

// Pin returns the line's GPIO number.
func (l *SysfsLine) Pin() int { return l.pin }

// Level returns the current level, 0 or 1.
func (l *SysfsLine) Level() (int, error) {
	buf := make([]byte, 2)
	n, err := l.value.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return 0, fmt.Errorf("failed to read gpio %d: %w", l.pin, err)
	}
	return parseLevel(buf[:n])
}

func parseLevel(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, fmt.Errorf("empty gpio value")
	}
	switch b[0] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("unexpected gpio value %q", b)
}

// WaitEdge blocks until the kernel flags a level change on the line and
// returns the new level. The line must have been opened with an edge mode
// other than EdgeNone.
func (l *SysfsLine) WaitEdge(ctx context.Context) (int, error) {
	fds := []unix.PollFd{{Fd: int32(l.value.Fd()), Events: unix.POLLPRI | unix.POLLERR}}
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := unix.Poll(fds, int(pollSlice/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("failed to poll gpio %d: %w", l.pin, err)
		}
		if n > 0 && fds[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0 {
			// reading the value clears the pending notification
			return l.Level()
		}
	}
}

// Close closes the value file. The pin stays exported.
func (l *SysfsLine) Close() error {
	return l.value.Close()
}
