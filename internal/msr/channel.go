package msr

import (
	"encoding/binary"
	"fmt"

	"codeberg.org/mutker/cpufreqctl/internal/errors"
	"golang.org/x/sys/unix"
)

const registerWidth = 8

// RegisterSource provides fixed-width reads from one core's register space.
// The production implementation is Channel; tests inject fakes.
type RegisterSource interface {
	Read(address uint32) (uint64, error)
	Close() error
}

// Channel owns the privileged handle to one core's MSR device. Exactly one
// live handle exists per core; Close releases it on every exit path.
type Channel struct {
	core int
	fd   int
}

// OpenChannel acquires read access to /dev/cpu/<core>/msr. Requires the msr
// kernel module and root privileges.
func OpenChannel(core int) (*Channel, error) {
	errFactory := errors.New()

	if core < 0 {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "negative core id")
	}

	path := DevicePath(core)
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, errFactory.WithData(ErrChannelOpen, struct {
			Core  int
			Path  string
			Error string
		}{
			Core:  core,
			Path:  path,
			Error: err.Error(),
		})
	}

	return &Channel{core: core, fd: fd}, nil
}

func (c *Channel) Core() int {
	return c.core
}

// Read performs a 64-bit read at the given register address. Any failure,
// including a short read, is surfaced immediately; no retries, no
// interpretation of register contents.
func (c *Channel) Read(address uint32) (uint64, error) {
	errFactory := errors.New()

	buf := make([]byte, registerWidth)
	n, err := unix.Pread(c.fd, buf, int64(address))
	if err != nil {
		return 0, errFactory.WithData(ErrRegisterRead, struct {
			Core    int
			Address string
			Error   string
		}{
			Core:    c.core,
			Address: fmt.Sprintf("%#x", address),
			Error:   err.Error(),
		})
	}
	if n != registerWidth {
		return 0, errFactory.WithData(ErrRegisterRead, struct {
			Core    int
			Address string
			Read    int
		}{
			Core:    c.core,
			Address: fmt.Sprintf("%#x", address),
			Read:    n,
		})
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// Close releases the handle. Safe to call more than once.
func (c *Channel) Close() error {
	if c.fd < 0 {
		return nil
	}

	fd := c.fd
	c.fd = -1
	if err := unix.Close(fd); err != nil {
		return errors.New().Wrap(ErrChannelClose, err)
	}

	return nil
}
