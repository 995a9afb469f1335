//go:build amd64 || arm64

package launch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func withKexec(t *testing.T, load func(kernel, ramfs *os.File, cmdline string) error, reboot func() error) *int {
	oldLoad, oldReboot, oldUnload := kexecFileLoad, kexecReboot, kexecUnload
	t.Cleanup(func() { kexecFileLoad, kexecReboot, kexecUnload = oldLoad, oldReboot, oldUnload })
	unloads := 0
	kexecFileLoad, kexecReboot = load, reboot
	kexecUnload = func() error { unloads++; return nil }
	return &unloads
}

func TestLoadKernelWithInitrd(t *testing.T) {
	root := t.TempDir()
	kernelPath := filepath.Join(root, "vmlinuz")
	require.NoError(t, os.WriteFile(kernelPath, bzImage(), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "EFI", "linux"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "EFI", "linux", "initrd.img"), []byte("cpio"), 0o644))

	var gotCmdline, gotInitrd string
	unloads := withKexec(t, func(kernel, ramfs *os.File, cmdline string) error {
		gotCmdline = cmdline
		require.NotNil(t, ramfs)
		gotInitrd = ramfs.Name()
		return nil
	}, func() error { return errors.New("reboot denied") })

	l := &ImageLoader{Logger: quietLogger}
	img, err := l.Load(NewTarget(root, kernelPath, nil), ucs2z(`ro initrd=\EFI\linux\initrd.img`))
	require.NoError(t, err)
	require.Equal(t, `ro initrd=\EFI\linux\initrd.img`, gotCmdline)
	require.Equal(t, filepath.Join(root, "EFI", "linux", "initrd.img"), gotInitrd)

	_, err = img.Start()
	require.ErrorContains(t, err, "reboot denied")
	require.NoError(t, img.Unload())
	require.Equal(t, 1, *unloads)
}

func TestLoadKernelMissingInitrd(t *testing.T) {
	root := t.TempDir()
	kernelPath := filepath.Join(root, "vmlinuz")
	require.NoError(t, os.WriteFile(kernelPath, bzImage(), 0o644))
	withKexec(t, func(*os.File, *os.File, string) error {
		t.Fatal("loaded without the initrd")
		return nil
	}, nil)

	l := &ImageLoader{Logger: quietLogger}
	_, err := l.Load(NewTarget(root, kernelPath, nil), []byte("initrd=/nope.img"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestKernelStartReportsMissingReboot(t *testing.T) {
	withKexec(t, nil, func() error { return nil })
	_, err := (&kernelImage{}).Start()
	require.ErrorContains(t, err, "did not reboot")
}
