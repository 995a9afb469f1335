package storage

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

var (
	// LinuxMountsPath is the mount table to consult.
	LinuxMountsPath = "/proc/mounts"
	// LinuxFilesystemsPath lists the filesystems the kernel supports.
	LinuxFilesystemsPath = "/proc/filesystems"
)

// Mountpoint is a mounted filesystem.
type Mountpoint struct {
	Device string
	Path   string
	FsType string
}

// GetMountpointByDevice looks up the mount table for the given device and
// returns the directory it is mounted on, or nil if it is not mounted.
func GetMountpointByDevice(devicePath string) (*string, error) {
	file, err := os.Open(LinuxMountsPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		deviceInfo := strings.Fields(scanner.Text())
		if len(deviceInfo) < 2 {
			continue
		}
		if deviceInfo[0] == devicePath {
			mountpoint := unescapeMountField(deviceInfo[1])
			return &mountpoint, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("Mountpoint not found")
}

// /proc/mounts escapes space, tab, newline and backslash as octal.
func unescapeMountField(s string) string {
	r := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return r.Replace(s)
}

// GetSupportedFilesystems returns the block device backed filesystems the
// running kernel can mount.
func GetSupportedFilesystems() ([]string, error) {
	file, err := os.Open(LinuxFilesystemsPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var filesystems []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// "nodev  proc" vs "       ext4"
		if len(fields) != 1 {
			continue
		}
		filesystems = append(filesystems, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return filesystems, nil
}
