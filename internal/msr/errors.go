package msr

import "codeberg.org/mutker/cpufreqctl/internal/errors"

const (
	// Access Errors
	ErrUnavailable  = errors.ErrorCode("msr_interface_unavailable")
	ErrChannelOpen  = errors.ErrorCode("msr_channel_open_failed")
	ErrChannelClose = errors.ErrorCode("msr_channel_close_failed")
	ErrRegisterRead = errors.ErrorCode("msr_register_read_failed")
	ErrModuleLoad   = errors.ErrorCode("msr_module_load_failed")
)

// IsAccessError reports whether err is a privileged-access failure: the msr
// interface is unavailable, a channel could not be opened, or a register
// read could not be satisfied.
func IsAccessError(err error) bool {
	switch errors.CodeOf(err) {
	case ErrUnavailable, ErrChannelOpen, ErrChannelClose, ErrRegisterRead, ErrModuleLoad:
		return true
	}

	return false
}
