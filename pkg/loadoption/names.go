package loadoption

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

const (
	// BootOrderName is the variable holding the ordered list of option numbers.
	BootOrderName = "BootOrder"
	// BootNextName is the variable holding a one-shot option number.
	BootNextName = "BootNext"

	bootPrefix = "Boot"
)

// BootName returns the variable name for option number n, e.g. Boot000A.
func BootName(n uint16) string {
	return fmt.Sprintf("%s%04X", bootPrefix, n)
}

// ParseBootName returns the option number encoded in a BootXXXX variable
// name. Hex digits of either case are accepted; anything else, including
// BootOrder and BootNext, is rejected.
func ParseBootName(name string) (uint16, bool) {
	if len(name) != len(bootPrefix)+4 || name[:len(bootPrefix)] != bootPrefix {
		return 0, false
	}
	for _, r := range name[len(bootPrefix):] {
		if !isHex(r) {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(name[len(bootPrefix):], 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// DecodeBootOrder unpacks little-endian u16 option numbers. A trailing odd
// byte cannot form a number; it is dropped and reported through the second
// return value.
func DecodeBootOrder(buf []byte) (order []uint16, trailing bool) {
	order = make([]uint16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		order = append(order, binary.LittleEndian.Uint16(buf[i:]))
	}
	return order, len(buf)%2 != 0
}

// EncodeBootOrder packs option numbers as little-endian u16 values.
func EncodeBootOrder(order []uint16) []byte {
	buf := make([]byte, 0, 2*len(order))
	for _, n := range order {
		buf = binary.LittleEndian.AppendUint16(buf, n)
	}
	return buf
}

// DecodeBootNext parses the BootNext variable, which must be exactly one u16.
func DecodeBootNext(buf []byte) (uint16, error) {
	if len(buf) != 2 {
		return 0, fmt.Errorf("%w: BootNext is %d bytes, want 2", ErrTruncated, len(buf))
	}
	return binary.LittleEndian.Uint16(buf), nil
}
