package recovery

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
)

// DefaultShell is the u-root shell.
const DefaultShell = "gosh"

// overridable for testing
var lookPath = exec.LookPath

// PermissiveRecoverer reports the failure and, when Debug is set, drops to
// an interactive shell.
type PermissiveRecoverer struct {
	Debug bool
	// Shell defaults to DefaultShell.
	Shell  string
	Logger *slog.Logger
}

func (pr PermissiveRecoverer) logger() *slog.Logger {
	if pr.Logger == nil {
		return slog.Default()
	}
	return pr.Logger
}

// Recover logs message, then runs the shell if debugging.
func (pr PermissiveRecoverer) Recover(message string) error {
	if message != "" {
		pr.logger().Error(message)
	}
	if !pr.Debug {
		return nil
	}

	shell := pr.Shell
	if shell == "" {
		shell = DefaultShell
	}
	path, err := lookPath(shell)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			pr.logger().Warn("no recovery shell", "shell", shell)
			return nil
		}
		return err
	}
	cmd := exec.Command(path)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}
