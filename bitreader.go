package jxlrender

import (
	"fmt"
)

// Bitstream provides bit-level reading over a JPEG XL codestream.
// Bits are read in LSB-first order (least significant bit of each byte
// first), and multi-bit fields are assembled little-endian.
//
// Positions are expressed in bits from the start of the data. A section
// bitstream returned by Section keeps counting from its own start.
type Bitstream struct {
	data   []byte
	pos    int  // byte position
	bitPos uint // bit position within current byte (0-7), reads LSB first
}

// NewBitstream creates a bitstream reading from data.
func NewBitstream(data []byte) *Bitstream {
	return &Bitstream{data: data}
}

// U32Dist is one of the four distributions selected by the 2-bit prefix of a
// U32 field: the value is Offset plus Bits raw bits.
type U32Dist struct {
	Offset uint32
	Bits   int
}

// Val returns a distribution that always decodes to v without consuming bits.
func Val(v uint32) U32Dist { return U32Dist{Offset: v} }

// BitsOffset returns a distribution reading n bits on top of offset.
func BitsOffset(n int, offset uint32) U32Dist { return U32Dist{Offset: offset, Bits: n} }

// ReadBit reads a single bit.
// Returns 0 or 1, or ErrTruncatedData at the end of the data.
func (r *Bitstream) ReadBit() (int, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncatedData
	}
	bit := int((r.data[r.pos] >> r.bitPos) & 1)
	r.bitPos++
	if r.bitPos == 8 {
		r.bitPos = 0
		r.pos++
	}
	return bit, nil
}

// ReadBits reads n bits (n <= 32), the first bit read being the least
// significant bit of the result.
func (r *Bitstream) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("jxlrender: invalid bit count: %d", n)
	}

	// Fast path: whole bytes from an aligned position.
	if r.bitPos == 0 && n%8 == 0 && r.pos+n/8 <= len(r.data) {
		var result uint32
		for i := range n / 8 {
			result |= uint32(r.data[r.pos+i]) << (8 * i)
		}
		r.pos += n / 8
		return result, nil
	}

	var result uint32
	for i := range n {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		result |= uint32(bit) << i
	}
	return result, nil
}

// ReadBool reads a single bit as a flag.
func (r *Bitstream) ReadBool() (bool, error) {
	bit, err := r.ReadBit()
	return bit == 1, err
}

// ReadU32 reads a 2-bit selector and then the field of the selected
// distribution.
func (r *Bitstream) ReadU32(dist [4]U32Dist) (uint32, error) {
	sel, err := r.ReadBits(2)
	if err != nil {
		return 0, err
	}
	d := dist[sel]
	v, err := r.ReadBits(d.Bits)
	if err != nil {
		return 0, err
	}
	return d.Offset + v, nil
}

// ZeroPadToByte consumes the bits up to the next byte boundary, which must
// all be zero. If already byte-aligned, this is a no-op.
func (r *Bitstream) ZeroPadToByte() error {
	if r.bitPos == 0 {
		return nil
	}
	pad := r.data[r.pos] >> r.bitPos
	r.bitPos = 0
	r.pos++
	if pad != 0 {
		return ErrNonZeroPadding
	}
	return nil
}

// BitPosition returns current bit position (byte * 8 + bit offset).
func (r *Bitstream) BitPosition() uint64 {
	return uint64(r.pos)*8 + uint64(r.bitPos)
}

// SkipToBookmark moves forward to the absolute bit position bookmark.
// Bookmarks behind the current position are rejected.
func (r *Bitstream) SkipToBookmark(bookmark uint64) error {
	cur := r.BitPosition()
	if bookmark < cur {
		return fmt.Errorf("%w: %d is behind position %d", ErrInvalidBookmark, bookmark, cur)
	}
	if bookmark > uint64(len(r.data))*8 {
		return ErrTruncatedData
	}
	r.pos = int(bookmark / 8)
	r.bitPos = uint(bookmark % 8)
	return nil
}

// Section returns an independent bitstream over n bytes starting at the
// byte-aligned bit position start. The receiver does not move.
func (r *Bitstream) Section(start, n uint64) (*Bitstream, error) {
	if start%8 != 0 {
		return nil, fmt.Errorf("%w: section start %d is not byte aligned", ErrInvalidBookmark, start)
	}
	off := start / 8
	if off+n > uint64(len(r.data)) {
		return nil, ErrTruncatedData
	}
	return NewBitstream(r.data[off : off+n : off+n]), nil
}

// Remaining returns bytes remaining from current position.
// This is approximate if not byte-aligned.
func (r *Bitstream) Remaining() int {
	return max(len(r.data)-r.pos, 0)
}

// Len returns total length of data.
func (r *Bitstream) Len() int {
	return len(r.data)
}
