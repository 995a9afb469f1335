package launch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/systemboot/bootmgr/pkg/devicepath"
	"github.com/systemboot/bootmgr/pkg/storage"
)

const (
	// DefaultDiskByPartUUID is where udev links partitions by their UUID.
	DefaultDiskByPartUUID = "/dev/disk/by-partuuid"
	// DefaultMountBase is where partitions that are not mounted yet get
	// mounted.
	DefaultMountBase = "/tmp/bootmgr"
)

// overridable for testing
var (
	lookupMountpoint = storage.GetMountpointByDevice
	mountDevice      = func(device, dir string) (string, func() error, error) {
		filesystems, err := storage.GetSupportedFilesystems()
		if err != nil {
			return "", nil, err
		}
		mp, err := storage.Mount(device, dir, filesystems)
		if err != nil {
			return "", nil, err
		}
		return mp.Path, mp.Unmount, nil
	}
)

// DevicePathResolver resolves hard drive device paths: the partition is
// found by its UUID, mounted if it is not already, and the file path node
// is looked up on it.
type DevicePathResolver struct {
	DiskByPartUUID string
	MountBase      string
	Logger         *slog.Logger
}

// NewDevicePathResolver returns a resolver using the default locations.
func NewDevicePathResolver() *DevicePathResolver {
	return &DevicePathResolver{
		DiskByPartUUID: DefaultDiskByPartUUID,
		MountBase:      DefaultMountBase,
	}
}

func (r *DevicePathResolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Resolve implements Resolver.
func (r *DevicePathResolver) Resolve(b []byte) (*Target, error) {
	p, err := devicepath.Parse(b)
	if err != nil {
		return nil, err
	}
	hd, ok := p.HardDrive()
	if !ok {
		return nil, fmt.Errorf("%s: no hard drive node", p)
	}
	id, ok := hd.PartUUID()
	if !ok {
		return nil, fmt.Errorf("%s: partition has no signature", p)
	}
	file, ok := p.FilePath()
	if !ok {
		// a bare partition boots the removable media default
		file = DefaultBootFile()
	}

	device, err := filepath.EvalSymlinks(filepath.Join(r.DiskByPartUUID, id))
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", id, err)
	}

	root, release, err := r.mountpoint(device, id)
	if err != nil {
		return nil, err
	}
	path, err := lookupFile(root, file)
	if err != nil {
		if release != nil {
			if rerr := release(); rerr != nil {
				r.logger().Warn("releasing mount", "device", device, "err", rerr)
			}
		}
		return nil, err
	}
	return NewTarget(root, path, release), nil
}

func (r *DevicePathResolver) mountpoint(device, id string) (string, func() error, error) {
	if mp, err := lookupMountpoint(device); err == nil && mp != nil {
		r.logger().Debug("partition already mounted", "device", device, "mountpoint", *mp)
		return *mp, nil, nil
	}
	dir := filepath.Join(r.MountBase, id)
	root, unmount, err := mountDevice(device, dir)
	if err != nil {
		return "", nil, fmt.Errorf("mounting %s: %w", device, err)
	}
	r.logger().Debug("mounted partition", "device", device, "mountpoint", root)
	return root, unmount, nil
}

// lookupFile maps an EFI path onto root, refusing paths that escape it.
func lookupFile(root, efiPath string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(efiPath, `\`, "/"))
	path := filepath.Join(root, rel)
	if !within(root, path) {
		return "", fmt.Errorf("%s escapes %s", efiPath, root)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%s: not a regular file", path)
	}
	// symlinks on the volume must not lead off it either
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	if !within(realRoot, realPath) {
		return "", fmt.Errorf("%s escapes %s through a symlink", efiPath, root)
	}
	return path, nil
}

// within reports whether the clean path lies at or under root.
func within(root, path string) bool {
	root = filepath.Clean(root)
	if path == root || root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// DefaultBootFile is the removable media boot path for this architecture.
func DefaultBootFile() string {
	arch := map[string]string{
		"amd64":   "X64",
		"386":     "IA32",
		"arm64":   "AA64",
		"arm":     "ARM",
		"riscv64": "RISCV64",
	}[runtime.GOARCH]
	if arch == "" {
		arch = strings.ToUpper(runtime.GOARCH)
	}
	return `\EFI\BOOT\BOOT` + arch + `.EFI`
}
