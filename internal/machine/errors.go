package machine

import "codeberg.org/mutker/cpufreqctl/internal/errors"

const (
	// Access Errors
	ErrInterfaceUnavailable = errors.ErrorCode("machine_msr_unavailable")
	ErrNoCores              = errors.ErrorCode("machine_no_readable_cores")

	// Discovery Errors
	ErrCoreDetection = errors.ErrorCode("machine_core_detection_failed")
)
