//go:build !linux

package storage

import (
	"errors"
	"fmt"
	"runtime"
)

// Mount is only supported on Linux.
func Mount(devicePath, mountPath string, filesystems []string) (*Mountpoint, error) {
	return nil, fmt.Errorf("mounting %s on %s: %w", devicePath, runtime.GOOS, errors.ErrUnsupported)
}

// Unmount is only supported on Linux.
func (m *Mountpoint) Unmount() error {
	return fmt.Errorf("unmounting %s on %s: %w", m.Path, runtime.GOOS, errors.ErrUnsupported)
}
