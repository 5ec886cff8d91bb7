package msr

import (
	"fmt"
	"os"
	"os/exec"

	"codeberg.org/mutker/cpufreqctl/internal/errors"
)

const devicePathFormat = "/dev/cpu/%d/msr"

// DevicePath returns the msr device node for a core.
func DevicePath(core int) string {
	return fmt.Sprintf(devicePathFormat, core)
}

// Available reports whether the privileged register interface is present on
// this host. Probing core 0 is sufficient: the msr module exposes all cores
// or none.
func Available() bool {
	_, err := os.Stat(DevicePath(0))
	return err == nil
}

// LoadModule attempts to load the msr kernel module. Idempotent; callers
// re-probe with Available afterwards.
func LoadModule() error {
	if err := exec.Command("modprobe", "msr").Run(); err != nil {
		return errors.New().Wrap(ErrModuleLoad, err)
	}

	return nil
}
