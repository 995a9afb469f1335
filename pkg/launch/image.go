package launch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Kind is the format of a boot target file.
type Kind int

const (
	KindUnknown Kind = iota
	// KindLinuxKernel is an x86 boot protocol kernel (bzImage), which
	// includes EFI stub kernels, or an arm64 Image.
	KindLinuxKernel
	// KindExecutable is an ELF program. It plays the role of an EFI
	// application: it runs, then returns control.
	KindExecutable
)

func (k Kind) String() string {
	switch k {
	case KindLinuxKernel:
		return "linux kernel"
	case KindExecutable:
		return "executable"
	}
	return "unknown"
}

// OptionalDataFD is the file descriptor on which an executable started by
// ImageLoader finds its boot option's optional data, byte for byte.
const OptionalDataFD = 3

var (
	elfMagic        = []byte("\x7fELF")
	bzImageMagic    = []byte("HdrS")
	arm64ImageMagic = []byte("ARM\x64")
)

const (
	bzImageMagicOffset    = 0x202
	arm64ImageMagicOffset = 0x38
	sniffSize             = bzImageMagicOffset + 4
)

// Sniff identifies the format of an image from its first bytes.
func Sniff(r io.ReaderAt) (Kind, error) {
	head := make([]byte, sniffSize)
	n, err := r.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return KindUnknown, err
	}
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, elfMagic):
		return KindExecutable, nil
	case len(head) >= bzImageMagicOffset+4 && bytes.Equal(head[bzImageMagicOffset:bzImageMagicOffset+4], bzImageMagic):
		return KindLinuxKernel, nil
	case len(head) >= arm64ImageMagicOffset+4 && bytes.Equal(head[arm64ImageMagicOffset:arm64ImageMagicOffset+4], arm64ImageMagic):
		return KindLinuxKernel, nil
	}
	return KindUnknown, nil
}

// ImageLoader loads kernels with kexec and executables into anonymous
// memory, so neither depends on the target's filesystem once loaded.
type ImageLoader struct {
	Logger *slog.Logger
}

func (l *ImageLoader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Load implements Loader.
func (l *ImageLoader) Load(t *Target, optionalData []byte) (Image, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	kind, err := Sniff(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", t.Path, err)
	}
	l.logger().Info("loading image", "path", t.Path, "kind", kind, "size", humanize.IBytes(uint64(fi.Size())))

	switch kind {
	case KindLinuxKernel:
		return loadKernel(t, f, CommandLine(optionalData), l.logger())
	case KindExecutable:
		return loadExecutable(t, f, optionalData)
	}
	return nil, fmt.Errorf("%s: %w", t.Path, ErrUnsupportedImage)
}
