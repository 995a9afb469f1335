// Package vpd reads the Vital Product Data key/value pairs the kernel exposes
// under /sys/firmware/vpd. Coreboot machines keep their boot entries there
// instead of in EFI variables.
package vpd

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

var (
	// VpdDir is the sysfs directory holding the ro and rw partitions.
	VpdDir = "/sys/firmware/vpd"
)

// Reader reads one VPD tree.
type Reader struct {
	Dir string
}

// NewReader returns a Reader for VpdDir.
func NewReader() *Reader {
	return &Reader{Dir: VpdDir}
}

func (r *Reader) baseDir(readOnly bool) string {
	if readOnly {
		return filepath.Join(r.Dir, "ro")
	}
	return filepath.Join(r.Dir, "rw")
}

// Get returns the value of key from the read-only or the read-write
// partition. A missing key yields an error satisfying errors.Is(err,
// fs.ErrNotExist).
func (r *Reader) Get(key string, readOnly bool) ([]byte, error) {
	if key == "" || key != filepath.Base(key) {
		return nil, &fs.PathError{Op: "get", Path: key, Err: fs.ErrNotExist}
	}
	return os.ReadFile(filepath.Join(r.baseDir(readOnly), key))
}

// Keys lists the keys of one partition, sorted. A partition that does not
// exist has no keys.
func (r *Reader) Keys(readOnly bool) ([]string, error) {
	entries, err := os.ReadDir(r.baseDir(readOnly))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}
