package protocol

import (
	"bytes"
	"errors"
)

var ErrPayloadTooLarge = errors.New("protocol: payload does not fit in one frame")

// Frame is one decoded message block. An empty payload is an ACK (or NAK)
// carrying the next sequence the sender expects.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether f carries no commands.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// AppendFrame appends a complete frame wrapping payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+FrameMin), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Decoder splits a byte stream into frames. After a length, sequence, CRC or
// sync error it discards input up to the next sync byte.
type Decoder struct {
	buf     []byte
	synced  bool
	dropped int
}

// NewDecoder returns a Decoder that assumes the stream starts on a frame
// boundary.
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Write buffers received bytes. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Dropped returns how many frames were rejected so far.
func (d *Decoder) Dropped() int { return d.dropped }

// Synced reports whether the decoder is aligned to a frame boundary.
func (d *Decoder) Synced() bool { return d.synced }

// Next returns the next complete frame, or false when more input is needed.
// The returned payload does not alias the decoder's buffer.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := bytes.IndexByte(d.buf, SyncByte)
			if i < 0 {
				d.buf = d.buf[:0]
				return Frame{}, false
			}
			d.buf = d.buf[i+1:]
			d.synced = true
			continue
		}
		if d.buf[0] == SyncByte {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < FrameMin {
			break
		}
		n := int(d.buf[posLen])
		if n < FrameMin || n > FrameMax || d.buf[posSeq]&^SeqMask != DestBit {
			d.resync()
			continue
		}
		if len(d.buf) < n {
			break
		}
		if d.buf[n-1] != SyncByte {
			d.resync()
			continue
		}
		crc := uint16(d.buf[n-3])<<8 | uint16(d.buf[n-2])
		if crc != CRC16(d.buf[:n-TrailerSize]) {
			d.resync()
			continue
		}
		f := Frame{
			Seq:     d.buf[posSeq],
			Payload: append([]byte(nil), d.buf[HeaderSize:n-TrailerSize]...),
		}
		d.buf = d.buf[n:]
		return f, true
	}
	d.compact()
	return Frame{}, false
}

func (d *Decoder) resync() {
	d.dropped++
	d.synced = false
	d.buf = d.buf[1:]
}

// compact moves pending bytes to the front so the buffer does not grow
// without bound on a long running stream.
func (d *Decoder) compact() {
	if cap(d.buf) > 4*FrameMax && len(d.buf) < FrameMax {
		d.buf = append(make([]byte, 0, 2*FrameMax), d.buf...)
	}
}

// Reset drops buffered input and realigns on the next byte.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.synced = true
}

