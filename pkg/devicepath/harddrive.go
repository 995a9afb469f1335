package devicepath

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Partition signature types of a hard drive node.
const (
	SignatureNone uint8 = 0x00
	SignatureMBR  uint8 = 0x01
	SignatureGUID uint8 = 0x02
)

// Partition format of a hard drive node.
const (
	FormatMBR uint8 = 0x01
	FormatGPT uint8 = 0x02
)

const hardDriveDataSize = 4 + 8 + 8 + 16 + 1 + 1

// HardDrive is a media hard drive node: one partition of a disk.
type HardDrive struct {
	PartitionNumber uint32
	PartitionStart  uint64
	PartitionSize   uint64
	Signature       [16]byte
	Format          uint8
	SignatureType   uint8
}

// HardDrive decodes a media hard drive node.
func (n Node) HardDrive() (*HardDrive, error) {
	if n.Type != TypeMedia || n.SubType != SubTypeHardDrive {
		return nil, fmt.Errorf("%w: node %d/%d is not a hard drive", ErrMalformed, n.Type, n.SubType)
	}
	if len(n.Data) != hardDriveDataSize {
		return nil, fmt.Errorf("%w: hard drive node is %d bytes, want %d", ErrMalformed, len(n.Data), hardDriveDataSize)
	}
	hd := &HardDrive{
		PartitionNumber: binary.LittleEndian.Uint32(n.Data[0:]),
		PartitionStart:  binary.LittleEndian.Uint64(n.Data[4:]),
		PartitionSize:   binary.LittleEndian.Uint64(n.Data[12:]),
		Format:          n.Data[36],
		SignatureType:   n.Data[37],
	}
	copy(hd.Signature[:], n.Data[20:36])
	return hd, nil
}

// Node packs the hard drive back into a device path node.
func (hd *HardDrive) Node() Node {
	data := make([]byte, 0, hardDriveDataSize)
	data = binary.LittleEndian.AppendUint32(data, hd.PartitionNumber)
	data = binary.LittleEndian.AppendUint64(data, hd.PartitionStart)
	data = binary.LittleEndian.AppendUint64(data, hd.PartitionSize)
	data = append(data, hd.Signature[:]...)
	data = append(data, hd.Format, hd.SignatureType)
	return Node{Type: TypeMedia, SubType: SubTypeHardDrive, Data: data}
}

// PartUUID returns the identifier Linux exposes for the partition under
// /dev/disk/by-partuuid: the partition GUID for GPT disks, and
// <disk signature>-<partition number> for MBR disks.
func (hd *HardDrive) PartUUID() (string, bool) {
	switch hd.SignatureType {
	case SignatureGUID:
		u, err := GUIDFromBytes(hd.Signature[:])
		if err != nil {
			return "", false
		}
		return u.String(), true
	case SignatureMBR:
		return fmt.Sprintf("%08x-%02x", binary.LittleEndian.Uint32(hd.Signature[:4]), hd.PartitionNumber), true
	}
	return "", false
}

func (hd *HardDrive) String() string {
	switch hd.SignatureType {
	case SignatureGUID:
		u, _ := GUIDFromBytes(hd.Signature[:])
		return fmt.Sprintf("HD(%d,GPT,%s,0x%x,0x%x)", hd.PartitionNumber, u, hd.PartitionStart, hd.PartitionSize)
	case SignatureMBR:
		return fmt.Sprintf("HD(%d,MBR,0x%08x,0x%x,0x%x)", hd.PartitionNumber, binary.LittleEndian.Uint32(hd.Signature[:4]), hd.PartitionStart, hd.PartitionSize)
	}
	return fmt.Sprintf("HD(%d,%d,0,0x%x,0x%x)", hd.PartitionNumber, hd.SignatureType, hd.PartitionStart, hd.PartitionSize)
}

// GPTHardDrive is a helper to build a GPT hard drive node.
func GPTHardDrive(partition uint32, start, size uint64, guid uuid.UUID) *HardDrive {
	hd := &HardDrive{
		PartitionNumber: partition,
		PartitionStart:  start,
		PartitionSize:   size,
		Format:          FormatGPT,
		SignatureType:   SignatureGUID,
	}
	copy(hd.Signature[:], GUIDBytes(guid))
	return hd
}
