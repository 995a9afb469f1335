//go:build !linux

package launch

import (
	"fmt"
	"os"
	"runtime"
)

func loadExecutable(t *Target, _ *os.File, _ []byte) (Image, error) {
	return nil, fmt.Errorf("%s: executables on %s: %w", t.Path, runtime.GOOS, ErrUnsupportedImage)
}
