// Package measure extends a TPM PCR with the boot option about to be
// started, so that what was booted can be attested later.
package measure

import (
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tspi "github.com/google/go-tpm/tpm"
	"github.com/google/go-tpm/legacy/tpm2"
	"github.com/google/go-tpm/tpmutil"
	"github.com/systemboot/bootmgr/pkg/bootmgr"
	"github.com/systemboot/bootmgr/pkg/loadoption"
)

const (
	// DefaultDevice is the main TPM character device.
	DefaultDevice = "/dev/tpm0"
	// DefaultSysfsDir holds the TPM's class attributes.
	DefaultSysfsDir = "/sys/class/tpm/tpm0"
	// BootOptionPCR is where boot options are measured, next to the boot
	// configuration measurements of other Linux boot loaders.
	BootOptionPCR uint32 = 8
)

// ErrNoTPM is returned when no usable TPM is present.
var ErrNoTPM = errors.New("no TPM")

// Version is a TPM specification family.
type Version int

const (
	VersionUnknown Version = iota
	Version12
	Version20
)

func (v Version) String() string {
	switch v {
	case Version12:
		return "1.2"
	case Version20:
		return "2.0"
	}
	return "unknown"
}

// overridable for testing
var (
	openTPM = func(device string, v Version) (io.ReadWriteCloser, error) {
		if v == Version12 {
			return tspi.OpenTPM(device)
		}
		return tpm2.OpenTPM(device)
	}
	extendTPM12 = func(rw io.ReadWriter, pcr uint32, data []byte) error {
		_, err := tspi.PcrExtend(rw, pcr, sha1.Sum(data))
		return err
	}
	extendTPM20 = func(rw io.ReadWriter, pcr uint32, data []byte) error {
		digest := sha256.Sum256(data)
		return tpm2.PCRExtend(rw, tpmutil.Handle(pcr), tpm2.AlgSHA256, digest[:], "")
	}
)

// Event is the data measured for a boot option: its variable name followed
// by its encoded load option.
func Event(opt *bootmgr.BootOption) ([]byte, error) {
	raw, err := loadoption.Encode(&opt.LoadOption)
	if err != nil {
		return nil, err
	}
	return append([]byte(opt.Name), raw...), nil
}

// Digest is the SHA-256 of Event, the value a TPM 2.0 PCR is extended with.
func Digest(opt *bootmgr.BootOption) ([sha256.Size]byte, error) {
	ev, err := Event(opt)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(ev), nil
}

// DetectVersion reads the specification family from the TPM's sysfs
// attributes.
func DetectVersion(sysfsDir string) (Version, error) {
	if b, err := os.ReadFile(filepath.Join(sysfsDir, "tpm_version_major")); err == nil {
		switch strings.TrimSpace(string(b)) {
		case "2":
			return Version20, nil
		case "1":
			return Version12, nil
		}
	}
	// older kernels only expose the TPM 1.2 capabilities
	b, err := os.ReadFile(filepath.Join(sysfsDir, "caps"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return VersionUnknown, ErrNoTPM
		}
		return VersionUnknown, err
	}
	for _, line := range strings.Split(string(b), "\n") {
		if v, ok := strings.CutPrefix(line, "TCG version: "); ok && strings.TrimSpace(v) == "1.2" {
			return Version12, nil
		}
	}
	return VersionUnknown, fmt.Errorf("%s: %w: unrecognized capabilities", sysfsDir, ErrNoTPM)
}

// TPMMeasurer measures boot options into a TPM PCR.
type TPMMeasurer struct {
	Device   string
	SysfsDir string
	PCR      uint32
	Logger   *slog.Logger
}

// NewTPMMeasurer returns a measurer for the default TPM and PCR.
func NewTPMMeasurer() *TPMMeasurer {
	return &TPMMeasurer{Device: DefaultDevice, SysfsDir: DefaultSysfsDir, PCR: BootOptionPCR}
}

func (m *TPMMeasurer) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// Measure extends the PCR with opt's event.
func (m *TPMMeasurer) Measure(opt *bootmgr.BootOption) error {
	ev, err := Event(opt)
	if err != nil {
		return err
	}
	v, err := DetectVersion(m.SysfsDir)
	if err != nil {
		return err
	}
	rw, err := openTPM(m.Device, v)
	if err != nil {
		return fmt.Errorf("cannot open TPM: %w", err)
	}
	defer rw.Close()

	m.logger().Info("measuring boot option", "name", opt.Name, "pcr", m.PCR, "tpm", v)
	if v == Version12 {
		err = extendTPM12(rw, m.PCR, ev)
	} else {
		err = extendTPM20(rw, m.PCR, ev)
	}
	if err != nil {
		return fmt.Errorf("extending PCR %d: %w", m.PCR, err)
	}
	return nil
}
