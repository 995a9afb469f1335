package recovery

import (
	"log/slog"
	"time"
)

// DebugDelay is how long a debugging SecureRecoverer waits before power
// cycling, so the failure can be read off the console.
const DebugDelay = 10 * time.Second

// overridable for testing
var sleep = time.Sleep

// SecureRecoverer never hands the machine to a user: it reboots, or powers
// off when Reboot is false.
type SecureRecoverer struct {
	Reboot bool
	// Sync flushes the console and filesystems first.
	Sync   bool
	Debug  bool
	Logger *slog.Logger
}

func (sr SecureRecoverer) logger() *slog.Logger {
	if sr.Logger == nil {
		return slog.Default()
	}
	return sr.Logger
}

// Recover power cycles the machine. It returns only if that fails.
func (sr SecureRecoverer) Recover(message string) error {
	if sr.Sync {
		if err := syncAll(); err != nil {
			return err
		}
	}

	if sr.Debug {
		if message != "" {
			sr.logger().Error(message)
		}
		sleep(DebugDelay)
	}

	action := "power off"
	if sr.Reboot {
		action = "reboot"
	}
	sr.logger().Warn("recovering from boot failure", "action", action)
	return powerCycle(sr.Reboot)
}
