package dvfs

import "codeberg.org/mutker/cpufreqctl/internal/errors"

const (
	ErrInvalidPolicy = errors.ErrorCode("dvfs_invalid_policy")
	ErrSetFrequency  = errors.ErrorCode("dvfs_set_frequency_failed")
)
