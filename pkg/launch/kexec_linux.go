//go:build amd64 || arm64

package launch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/u-root/u-root/pkg/boot/kexec"
	"golang.org/x/sys/unix"
)

// overridable for testing
var (
	kexecFileLoad = kexec.FileLoad
	kexecReboot   = kexec.Reboot
	kexecUnload   = func() error {
		return unix.KexecFileLoad(-1, -1, "", unix.KEXEC_FILE_UNLOAD)
	}
)

func loadKernel(t *Target, kernel *os.File, cmdline string, log *slog.Logger) (Image, error) {
	var initrd *os.File
	if paths := initrdPaths(cmdline); len(paths) > 0 {
		if len(paths) > 1 {
			log.Warn("only the first initrd is loaded", "initrds", paths)
		}
		path, err := lookupFile(t.Root, paths[0])
		if err != nil {
			return nil, fmt.Errorf("initrd: %w", err)
		}
		initrd, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("initrd: %w", err)
		}
		defer func() {
			if err := initrd.Close(); err != nil {
				log.Warn("Error closing initramfs file descriptor", "err", err)
			}
		}()
	}
	log.Debug("kexec load", "kernel", kernel.Name(), "cmdline", cmdline)
	if err := kexecFileLoad(kernel, initrd, cmdline); err != nil {
		return nil, fmt.Errorf("kexec load: %w", err)
	}
	return &kernelImage{}, nil
}

type kernelImage struct{}

// Start reboots into the loaded kernel. It only returns if that fails.
func (k *kernelImage) Start() (Exit, error) {
	err := kexecReboot()
	if err == nil {
		err = errors.New("unexpectedly returned from kexec reboot without error, the system did not reboot")
	}
	return Exit{}, err
}

func (k *kernelImage) Unload() error {
	return kexecUnload()
}
