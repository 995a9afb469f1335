//go:build !linux || !(amd64 || arm64)

package launch

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

func loadKernel(t *Target, _ *os.File, _ string, _ *slog.Logger) (Image, error) {
	return nil, fmt.Errorf("%s: kexec on %s/%s: %w", t.Path, runtime.GOOS, runtime.GOARCH, ErrUnsupportedImage)
}
