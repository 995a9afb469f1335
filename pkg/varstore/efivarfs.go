package varstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/systemboot/bootmgr/pkg/loadoption"
)

// DefaultEFIVarsDir is where Linux mounts efivarfs.
const DefaultEFIVarsDir = "/sys/firmware/efi/efivars"

// GlobalVariable is EFI_GLOBAL_VARIABLE, the vendor GUID of the Boot####,
// BootOrder and BootNext variables.
var GlobalVariable = uuid.MustParse("8be4df61-93ca-11d2-aa0d-00e098032b8c")

// efivarfs prefixes every file with the variable's 32-bit attributes.
const efivarfsAttrSize = 4

// EFIVarFS reads EFI variables through the efivarfs filesystem, where each
// variable is a file named <Name>-<VendorGUID>.
type EFIVarFS struct {
	Dir    string
	Vendor uuid.UUID
}

// NewEFIVarFS returns a store reading global variables from dir.
func NewEFIVarFS(dir string) *EFIVarFS {
	if dir == "" {
		dir = DefaultEFIVarsDir
	}
	return &EFIVarFS{Dir: dir, Vendor: GlobalVariable}
}

func (s *EFIVarFS) suffix() string {
	return "-" + s.Vendor.String()
}

// Read implements Store. The attribute header is stripped.
func (s *EFIVarFS) Read(name string) ([]byte, error) {
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name+s.suffix()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	if len(data) < efivarfsAttrSize {
		return nil, fmt.Errorf("%s: efivarfs file is %d bytes, shorter than its attribute header", name, len(data))
	}
	return data[efivarfsAttrSize:], nil
}

// BootEntryNames implements Store.
func (s *EFIVarFS) BootEntryNames() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	suffix := s.suffix()
	var names []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), suffix)
		if !ok {
			continue
		}
		if _, ok := loadoption.ParseBootName(name); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
