package launch

import (
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

func ucs2z(s string) []byte {
	var b []byte
	for _, u := range append(utf16.Encode([]rune(s)), 0) {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

func TestCommandLine(t *testing.T) {
	for _, tt := range []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, ""},
		{"ucs2", ucs2z("root=/dev/sda2 ro initrd=\\initrd.img"), "root=/dev/sda2 ro initrd=\\initrd.img"},
		{"ascii", []byte("console=ttyS0 quiet\x00"), "console=ttyS0 quiet"},
		// even length ASCII pairs up into code units above 0xFF
		{"even ascii", []byte("ro"), "ro"},
		{"binary", []byte{0xff, 0xfe, 0xfd, 0xd8}, ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CommandLine(tt.data))
		})
	}
}

func TestInitrdPaths(t *testing.T) {
	require.Nil(t, initrdPaths("root=/dev/sda2 ro"))
	require.Equal(t,
		[]string{`\EFI\fedora\initrd.img`, `\extra.img`},
		initrdPaths(`initrd=\EFI\fedora\initrd.img quiet initrd=\extra.img initrd=`))
}
