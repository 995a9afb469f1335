package varstore

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/systemboot/bootmgr/pkg/loadoption"
	"github.com/systemboot/bootmgr/pkg/vpd"
)

// VPD reads boot variables from coreboot VPD. A key present in the
// read-write partition shadows the same key in the read-only one.
type VPD struct {
	Reader *vpd.Reader
}

// NewVPD returns a VPD store rooted at dir, or vpd.VpdDir if dir is empty.
func NewVPD(dir string) *VPD {
	r := vpd.NewReader()
	if dir != "" {
		r.Dir = dir
	}
	return &VPD{Reader: r}
}

// Read implements Store.
func (s *VPD) Read(name string) ([]byte, error) {
	// try the RW entries first
	for _, readOnly := range []bool{false, true} {
		value, err := s.Reader.Get(name, readOnly)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// BootEntryNames implements Store.
func (s *VPD) BootEntryNames() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, readOnly := range []bool{false, true} {
		keys, err := s.Reader.Keys(readOnly)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if _, ok := loadoption.ParseBootName(key); !ok || seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, key)
		}
	}
	return names, nil
}
