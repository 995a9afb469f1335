// Package devicepath walks packed EFI device paths. The boot manager mostly
// treats a device path as an opaque blob; this package is used where it has
// to look inside, to render it for a human and to find the partition and
// file it points at.
package devicepath

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/google/uuid"
)

var (
	// ErrTruncated is returned when a node header or body runs past the end
	// of the buffer.
	ErrTruncated = errors.New("device path truncated")
	// ErrMalformed is returned for nodes declaring a length below the
	// header size, and for paths without an end node.
	ErrMalformed = errors.New("device path malformed")
)

// Node types.
const (
	TypeHardware  uint8 = 0x01
	TypeACPI      uint8 = 0x02
	TypeMessaging uint8 = 0x03
	TypeMedia     uint8 = 0x04
	TypeBBS       uint8 = 0x05
	TypeEnd       uint8 = 0x7F
)

// Sub-types this package knows how to interpret.
const (
	SubTypePCI       uint8 = 0x01 // TypeHardware
	SubTypeACPI      uint8 = 0x01 // TypeACPI
	SubTypeHardDrive uint8 = 0x01 // TypeMedia
	SubTypeFilePath  uint8 = 0x04 // TypeMedia
	SubTypeEndEntire uint8 = 0xFF // TypeEnd
	SubTypeEndInst   uint8 = 0x01 // TypeEnd
)

const nodeHeaderSize = 4

// Node is a single device path node.
type Node struct {
	Type    uint8
	SubType uint8
	Data    []byte
}

// Path is a sequence of nodes, without the terminating end node.
type Path []Node

// Parse splits a packed device path into nodes. Parsing stops at the first
// end-of-entire-path node; bytes after it are ignored.
func Parse(b []byte) (Path, error) {
	var p Path
	off := 0
	for {
		if len(b)-off < nodeHeaderSize {
			if off == len(b) {
				return nil, fmt.Errorf("%w: no end node", ErrMalformed)
			}
			return nil, fmt.Errorf("%w: node header at offset %d", ErrTruncated, off)
		}
		typ, sub := b[off], b[off+1]
		length := int(binary.LittleEndian.Uint16(b[off+2:]))
		if length < nodeHeaderSize {
			return nil, fmt.Errorf("%w: node at offset %d has length %d", ErrMalformed, off, length)
		}
		if length > len(b)-off {
			return nil, fmt.Errorf("%w: node at offset %d has length %d, %d left", ErrTruncated, off, length, len(b)-off)
		}
		if typ == TypeEnd && sub == SubTypeEndEntire {
			return p, nil
		}
		p = append(p, Node{Type: typ, SubType: sub, Data: append([]byte(nil), b[off+nodeHeaderSize:off+length]...)})
		off += length
	}
}

// Bytes packs the path, appending an end-of-entire-path node.
func (p Path) Bytes() []byte {
	var buf []byte
	for _, n := range p {
		buf = append(buf, n.Type, n.SubType)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(nodeHeaderSize+len(n.Data)))
		buf = append(buf, n.Data...)
	}
	return append(buf, TypeEnd, SubTypeEndEntire, nodeHeaderSize, 0)
}

// String renders the path in the usual text form, e.g.
// HD(1,GPT,<guid>,0x800,0x100000)/\EFI\BOOT\BOOTX64.EFI.
func (p Path) String() string {
	parts := make([]string, 0, len(p))
	for _, n := range p {
		parts = append(parts, n.String())
	}
	return strings.Join(parts, "/")
}

func (n Node) String() string {
	switch {
	case n.Type == TypeHardware && n.SubType == SubTypePCI && len(n.Data) == 2:
		return fmt.Sprintf("Pci(0x%x,0x%x)", n.Data[1], n.Data[0])
	case n.Type == TypeACPI && n.SubType == SubTypeACPI && len(n.Data) == 8:
		hid := binary.LittleEndian.Uint32(n.Data)
		uid := binary.LittleEndian.Uint32(n.Data[4:])
		if hid == 0x0A0341D0 {
			return fmt.Sprintf("PciRoot(0x%x)", uid)
		}
		return fmt.Sprintf("Acpi(0x%08x,0x%x)", hid, uid)
	case n.Type == TypeMedia && n.SubType == SubTypeHardDrive:
		if hd, err := n.HardDrive(); err == nil {
			return hd.String()
		}
	case n.Type == TypeMedia && n.SubType == SubTypeFilePath:
		if s, err := n.FilePath(); err == nil {
			return s
		}
	case n.Type == TypeEnd && n.SubType == SubTypeEndInst:
		return ","
	}
	return fmt.Sprintf("Path(%d,%d,%x)", n.Type, n.SubType, n.Data)
}

// FilePath decodes a media file path node.
func (n Node) FilePath() (string, error) {
	if n.Type != TypeMedia || n.SubType != SubTypeFilePath {
		return "", fmt.Errorf("%w: node %d/%d is not a file path", ErrMalformed, n.Type, n.SubType)
	}
	if len(n.Data)%2 != 0 {
		return "", fmt.Errorf("%w: file path has odd length %d", ErrMalformed, len(n.Data))
	}
	units := make([]uint16, 0, len(n.Data)/2)
	for i := 0; i+1 < len(n.Data); i += 2 {
		u := binary.LittleEndian.Uint16(n.Data[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// FilePathNode builds a media file path node.
func FilePathNode(path string) Node {
	var data []byte
	for _, u := range utf16.Encode([]rune(path)) {
		data = binary.LittleEndian.AppendUint16(data, u)
	}
	data = append(data, 0, 0)
	return Node{Type: TypeMedia, SubType: SubTypeFilePath, Data: data}
}

// FilePath returns the file the path names: all file path nodes joined
// together, in EFI (backslash) form. ok is false if there are none.
func (p Path) FilePath() (path string, ok bool) {
	var sb strings.Builder
	for _, n := range p {
		if n.Type != TypeMedia || n.SubType != SubTypeFilePath {
			continue
		}
		s, err := n.FilePath()
		if err != nil {
			return "", false
		}
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), `\`) && !strings.HasPrefix(s, `\`) {
			sb.WriteByte('\\')
		}
		sb.WriteString(s)
		ok = true
	}
	return sb.String(), ok
}

// HardDrive returns the first hard drive node of the path.
func (p Path) HardDrive() (*HardDrive, bool) {
	for _, n := range p {
		if n.Type == TypeMedia && n.SubType == SubTypeHardDrive {
			hd, err := n.HardDrive()
			if err != nil {
				return nil, false
			}
			return hd, true
		}
	}
	return nil, false
}

// GUIDFromBytes converts the mixed-endian on-disk GUID layout to a UUID.
func GUIDFromBytes(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.Nil, fmt.Errorf("%w: GUID is %d bytes", ErrMalformed, len(b))
	}
	var u uuid.UUID
	copy(u[:], b)
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	return u, nil
}

// GUIDBytes is the inverse of GUIDFromBytes.
func GUIDBytes(u uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, u[:])
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	return b
}
