// Package loadoption encodes and decodes EFI_LOAD_OPTION records, the binary
// format firmware uses for each BootXXXX variable, along with the BootOrder
// and BootNext variables that reference them.
package loadoption

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrTruncated is returned when a field's declared length runs past the
	// end of the record.
	ErrTruncated = errors.New("load option truncated")
	// ErrMalformedText is returned when the description is not a NUL
	// terminated, well-formed UTF-16LE string.
	ErrMalformedText = errors.New("load option description malformed")
	// ErrInvalidOption is returned by Encode for values that cannot be
	// represented on the wire.
	ErrInvalidOption = errors.New("load option cannot be encoded")
)

// headerSize is the attributes field plus the file path list length field.
const headerSize = 4 + 2

// Attributes are the LOAD_OPTION_* bit flags.
type Attributes uint32

const (
	// Active options are eligible to be launched and displayed.
	Active Attributes = 0x00000001
	// ForceReconnect asks firmware to reconnect all drivers after the
	// option's driver is loaded. Only meaningful for DriverXXXX options.
	ForceReconnect Attributes = 0x00000002
	// Hidden options are left out of interactive listings but can still be
	// launched by number.
	Hidden Attributes = 0x00000008

	// CategoryMask selects the LOAD_OPTION_CATEGORY bits.
	CategoryMask Attributes = 0x00001F00
	// CategoryBoot marks an option as a normal boot target.
	CategoryBoot Attributes = 0x00000000
	// CategoryApp marks an option as an application, e.g. a diagnostic
	// utility that is expected to return.
	CategoryApp Attributes = 0x00000100
)

// Has reports whether all bits of flag are set.
func (a Attributes) Has(flag Attributes) bool {
	return a&flag == flag
}

// Category returns the category bits.
func (a Attributes) Category() Attributes {
	return a & CategoryMask
}

func (a Attributes) String() string {
	var parts []string
	rest := a
	for _, f := range []struct {
		bit  Attributes
		name string
	}{
		{Active, "ACTIVE"},
		{ForceReconnect, "FORCE_RECONNECT"},
		{Hidden, "HIDDEN"},
		{CategoryApp, "CATEGORY_APP"},
	} {
		if a.Has(f.bit) {
			parts = append(parts, f.name)
			rest &^= f.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// LoadOption is a decoded EFI_LOAD_OPTION.
type LoadOption struct {
	Attributes  Attributes
	Description string
	// FilePathList is the packed device path the option boots. It is kept
	// as raw bytes; see package devicepath to walk it. Decode returns nil,
	// never an empty slice, when the option has none.
	FilePathList []byte
	// OptionalData is handed unmodified to the launched image. As with
	// FilePathList, nil is the only empty form Decode produces.
	OptionalData []byte
}

// IsActive reports whether the ACTIVE attribute is set.
func (o *LoadOption) IsActive() bool {
	return o.Attributes.Has(Active)
}

// IsHidden reports whether the HIDDEN attribute is set.
func (o *LoadOption) IsHidden() bool {
	return o.Attributes.Has(Hidden)
}

// Decode parses a load option record. It never reads past the end of buf
// and the returned option does not alias buf.
func Decode(buf []byte) (*LoadOption, error) {
	c := &cursor{buf: buf}
	attrs, err := c.uint32("attributes")
	if err != nil {
		return nil, err
	}
	pathLen, err := c.uint16("file path list length")
	if err != nil {
		return nil, err
	}
	units, err := c.ucs2z("description")
	if err != nil {
		return nil, err
	}
	desc, err := decodeText(units)
	if err != nil {
		return nil, err
	}
	path, err := c.take(int(pathLen), "file path list")
	if err != nil {
		return nil, err
	}
	return &LoadOption{
		Attributes:   Attributes(attrs),
		Description:  desc,
		FilePathList: clone(path),
		OptionalData: clone(c.rest()),
	}, nil
}

// Encode is the inverse of Decode.
func Encode(o *LoadOption) ([]byte, error) {
	if !utf8.ValidString(o.Description) {
		return nil, fmt.Errorf("%w: description is not valid UTF-8", ErrInvalidOption)
	}
	if strings.ContainsRune(o.Description, 0) {
		return nil, fmt.Errorf("%w: description contains NUL", ErrInvalidOption)
	}
	if len(o.FilePathList) > 0xFFFF {
		return nil, fmt.Errorf("%w: file path list is %d bytes", ErrInvalidOption, len(o.FilePathList))
	}
	units := utf16.Encode([]rune(o.Description))

	buf := make([]byte, 0, headerSize+2*(len(units)+1)+len(o.FilePathList)+len(o.OptionalData))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(o.Attributes))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(o.FilePathList)))
	for _, u := range units {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = append(buf, o.FilePathList...)
	buf = append(buf, o.OptionalData...)
	return buf, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (o *LoadOption) MarshalBinary() ([]byte, error) {
	return Encode(o)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (o *LoadOption) UnmarshalBinary(data []byte) error {
	d, err := Decode(data)
	if err != nil {
		return err
	}
	*o = *d
	return nil
}

func decodeText(units []uint16) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case !utf16.IsSurrogate(rune(u)):
			sb.WriteRune(rune(u))
		case u < 0xDC00 && i+1 < len(units) && units[i+1] >= 0xDC00 && units[i+1] < 0xE000:
			sb.WriteRune(utf16.DecodeRune(rune(u), rune(units[i+1])))
			i++
		default:
			return "", fmt.Errorf("%w: unpaired surrogate 0x%04x at unit %d", ErrMalformedText, u, i)
		}
	}
	return sb.String(), nil
}

// clone copies b so decoded options never alias the caller's buffer. Empty
// input yields nil, so nil and []byte{} encode alike and decode as nil.
func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
