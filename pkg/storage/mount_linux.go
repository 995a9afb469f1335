package storage

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mount mounts devicePath read-only on mountPath, trying each filesystem in
// turn until one succeeds.
func Mount(devicePath, mountPath string, filesystems []string) (*Mountpoint, error) {
	if len(filesystems) == 0 {
		return nil, fmt.Errorf("no filesystems to try for %s", devicePath)
	}
	if err := os.MkdirAll(mountPath, 0755); err != nil {
		return nil, err
	}
	var errs []error
	for _, fs := range filesystems {
		err := unix.Mount(devicePath, mountPath, fs, unix.MS_RDONLY, "")
		if err == nil {
			return &Mountpoint{Device: devicePath, Path: mountPath, FsType: fs}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", fs, err))
	}
	// leave nothing behind
	os.Remove(mountPath)
	return nil, fmt.Errorf("no suitable filesystem for %s: %w", devicePath, errors.Join(errs...))
}

// Unmount lazily detaches the mountpoint and removes its directory.
func (m *Mountpoint) Unmount() error {
	if err := unix.Unmount(m.Path, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("unmounting %s: %w", m.Path, err)
	}
	os.Remove(m.Path)
	return nil
}
