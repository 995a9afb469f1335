package recovery

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// overridable for testing
var (
	syncAll = func() error {
		for _, f := range []*os.File{os.Stdout, os.Stderr} {
			// consoles do not support fsync
			if err := f.Sync(); err != nil && !errors.Is(err, unix.EINVAL) && !errors.Is(err, unix.ENOTTY) {
				return err
			}
		}
		unix.Sync()
		return nil
	}
	powerCycle = func(reboot bool) error {
		if reboot {
			return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
		}
		return unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
	}
)
