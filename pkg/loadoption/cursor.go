package loadoption

import (
	"encoding/binary"
	"fmt"
)

// cursor walks a byte slice front to back. Every read checks the remaining
// length first and fails with ErrTruncated instead of slicing out of range.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) take(n int, field string) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left", ErrTruncated, field, n, c.off, c.remaining())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) uint16(field string) (uint16, error) {
	b, err := c.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) uint32(field string) (uint32, error) {
	b, err := c.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ucs2z consumes UTF-16LE code units up to and including a NUL unit and
// returns the units before it.
func (c *cursor) ucs2z(field string) ([]uint16, error) {
	var units []uint16
	for c.remaining() >= 2 {
		u := binary.LittleEndian.Uint16(c.buf[c.off:])
		c.off += 2
		if u == 0 {
			return units, nil
		}
		units = append(units, u)
	}
	return nil, fmt.Errorf("%w: %s is not NUL terminated", ErrMalformedText, field)
}

// rest consumes everything left.
func (c *cursor) rest() []byte {
	b := c.buf[c.off:]
	c.off = len(c.buf)
	return b
}
