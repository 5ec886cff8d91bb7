package dvfs

import (
	"fmt"
	"os"
	"strconv"

	"codeberg.org/mutker/cpufreqctl/internal/errors"
)

const (
	scalingSetSpeedFormat = "/sys/devices/system/cpu/cpu%d/cpufreq/scaling_setspeed"
	kHzPerMHz             = 1000
	sysfsFilePerm         = 0o644
)

// SetCoreFrequency writes the target frequency to the core's cpufreq
// scaling_setspeed node. Requires root and the userspace scaling governor.
func SetCoreFrequency(core int, frequencyMHz uint64) error {
	path := fmt.Sprintf(scalingSetSpeedFormat, core)
	value := strconv.FormatUint(frequencyMHz*kHzPerMHz, 10)

	if err := os.WriteFile(path, []byte(value), sysfsFilePerm); err != nil {
		return errors.New().WithData(ErrSetFrequency, struct {
			Core  int
			Path  string
			Error string
		}{
			Core:  core,
			Path:  path,
			Error: err.Error(),
		})
	}

	return nil
}
