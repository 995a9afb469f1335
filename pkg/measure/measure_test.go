package measure

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/systemboot/bootmgr/pkg/bootmgr"
	"github.com/systemboot/bootmgr/pkg/loadoption"
)

func testOption() *bootmgr.BootOption {
	return &bootmgr.BootOption{
		Number: 3,
		Name:   "Boot0003",
		LoadOption: loadoption.LoadOption{
			Attributes:   loadoption.Active,
			Description:  "Linux",
			FilePathList: []byte{0x7f, 0xff, 0x04, 0x00},
		},
	}
}

func sysfs(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

type nopCloser struct{ bytes.Buffer }

func (*nopCloser) Close() error { return nil }

func withFakeTPM(t *testing.T) (*Version, *[]byte) {
	oldOpen, old12, old20 := openTPM, extendTPM12, extendTPM20
	t.Cleanup(func() { openTPM, extendTPM12, extendTPM20 = oldOpen, old12, old20 })
	var used Version
	var got []byte
	openTPM = func(string, Version) (io.ReadWriteCloser, error) { return &nopCloser{}, nil }
	extendTPM12 = func(_ io.ReadWriter, pcr uint32, data []byte) error {
		used, got = Version12, data
		return nil
	}
	extendTPM20 = func(_ io.ReadWriter, pcr uint32, data []byte) error {
		used, got = Version20, data
		return nil
	}
	return &used, &got
}

func TestDigestCoversNameAndOption(t *testing.T) {
	opt := testOption()
	d1, err := Digest(opt)
	require.NoError(t, err)

	ev, err := Event(opt)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(ev, []byte("Boot0003")))
	require.Equal(t, sha256.Sum256(ev), d1)

	opt.Description = "Linux (rescue)"
	d2, err := Digest(opt)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
}

func TestDetectVersion(t *testing.T) {
	for _, tt := range []struct {
		name  string
		files map[string]string
		want  Version
		err   error
	}{
		{"tpm2", map[string]string{"tpm_version_major": "2\n"}, Version20, nil},
		{"tpm12", map[string]string{"tpm_version_major": "1\n"}, Version12, nil},
		{"caps", map[string]string{"caps": "Manufacturer: 0x49465800\nTCG version: 1.2\n"}, Version12, nil},
		{"none", nil, VersionUnknown, ErrNoTPM},
		{"garbage", map[string]string{"caps": "nothing useful"}, VersionUnknown, ErrNoTPM},
	} {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DetectVersion(sysfs(t, tt.files))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, v)
		})
	}
}

func TestMeasurePicksTPMFamily(t *testing.T) {
	used, got := withFakeTPM(t)
	m := &TPMMeasurer{
		SysfsDir: sysfs(t, map[string]string{"tpm_version_major": "2"}),
		PCR:      BootOptionPCR,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	require.NoError(t, m.Measure(testOption()))
	require.Equal(t, Version20, *used)
	ev, _ := Event(testOption())
	require.Equal(t, ev, *got)

	m.SysfsDir = sysfs(t, map[string]string{"caps": "TCG version: 1.2"})
	require.NoError(t, m.Measure(testOption()))
	require.Equal(t, Version12, *used)
}

func TestMeasureWithoutTPM(t *testing.T) {
	withFakeTPM(t)
	m := &TPMMeasurer{SysfsDir: filepath.Join(t.TempDir(), "missing")}
	require.ErrorIs(t, m.Measure(testOption()), ErrNoTPM)
}

func TestMeasureExtendFailure(t *testing.T) {
	withFakeTPM(t)
	boom := errors.New("locality denied")
	extendTPM20 = func(io.ReadWriter, uint32, []byte) error { return boom }
	m := &TPMMeasurer{
		SysfsDir: sysfs(t, map[string]string{"tpm_version_major": "2"}),
		PCR:      BootOptionPCR,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	require.ErrorIs(t, m.Measure(testOption()), boom)
}
