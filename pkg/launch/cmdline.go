package launch

import (
	"encoding/binary"
	"strings"
	"unicode"
)

// CommandLine interprets a boot option's optional data as a command line.
// Firmware tools store it as NUL terminated UCS-2, which is what an EFI stub
// kernel expects; anything that does not look like that is taken as 8-bit
// text.
func CommandLine(optionalData []byte) string {
	if len(optionalData) == 0 {
		return ""
	}
	if s, ok := ucs2Text(optionalData); ok {
		return s
	}
	return strings.ToValidUTF8(strings.TrimRight(string(optionalData), "\x00"), "")
}

// ucs2Text accepts only printable Latin-1 code units, which rules out plain
// ASCII being mistaken for UTF-16.
func ucs2Text(b []byte) (string, bool) {
	if len(b)%2 != 0 {
		return "", false
	}
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		if u > 0xFF || !(unicode.IsPrint(rune(u)) || u == '\t') {
			return "", false
		}
		sb.WriteRune(rune(u))
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}

// initrdPaths returns the values of initrd= arguments, which EFI stub
// kernels load from the volume the kernel came from.
func initrdPaths(cmdline string) []string {
	var paths []string
	for _, arg := range strings.Fields(cmdline) {
		if p, ok := strings.CutPrefix(arg, "initrd="); ok && p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
