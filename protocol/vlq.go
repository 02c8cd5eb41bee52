package protocol

import "errors"

var (
	ErrTruncated = errors.New("protocol: truncated value")
	ErrTooLong   = errors.New("protocol: byte string longer than remaining data")
)

// AppendInt appends v in the variable length encoding used on the wire.
// Values in [-32, 96) take one byte; every extra byte adds seven bits.
func AppendInt(dst []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		dst = append(dst, byte(v>>28)&0x7F|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		dst = append(dst, byte(v>>21)&0x7F|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		dst = append(dst, byte(v>>14)&0x7F|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		dst = append(dst, byte(v>>7)&0x7F|0x80)
	}
	return append(dst, byte(v)&0x7F)
}

// AppendUint appends v. Unsigned values share the signed encoding.
func AppendUint(dst []byte, v uint32) []byte {
	return AppendInt(dst, int32(v))
}

// AppendBytes appends a length prefixed byte string.
func AppendBytes(dst, b []byte) []byte {
	dst = AppendUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// AppendString appends a length prefixed string.
func AppendString(dst []byte, s string) []byte {
	dst = AppendUint(dst, uint32(len(s)))
	return append(dst, s...)
}

// Reader decodes values from a payload in order.
type Reader struct {
	buf []byte
}

// NewReader returns a Reader over b. b is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) }

// Int reads one signed value.
func (r *Reader) Int() (int32, error) {
	if len(r.buf) == 0 {
		return 0, ErrTruncated
	}
	c := uint32(r.buf[0])
	r.buf = r.buf[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(r.buf) == 0 {
			return 0, ErrTruncated
		}
		c = uint32(r.buf[0])
		r.buf = r.buf[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v), nil
}

// Uint reads one unsigned value.
func (r *Reader) Uint() (uint32, error) {
	v, err := r.Int()
	return uint32(v), err
}

// Byte reads a value and truncates it to 8 bits, as %c arguments are.
func (r *Reader) Byte() (uint8, error) {
	v, err := r.Int()
	return uint8(v), err
}

// Bytes reads a length prefixed byte string. The result aliases the
// payload.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint()
	if err != nil {
		return nil, err
	}
	if uint32(len(r.buf)) < n {
		return nil, ErrTooLong
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

// String reads a length prefixed string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}
