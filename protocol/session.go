package protocol

import (
	"io"
	"sync"
)

// Handler executes one command. It must consume exactly its own arguments
// from args; the rest of the payload holds the following commands.
type Handler func(cmdID uint16, args *Reader) error

// Session is the firmware end of a link. It checks sequence numbers,
// dispatches the commands of every in-order frame and acknowledges each
// frame with the next sequence it expects.
type Session struct {
	out     io.Writer
	handler Handler
	dec     *Decoder
	next    uint8

	writeMu sync.Mutex
	frame   []byte

	onReset func()
	onError func(cmdID uint16, err error)
}

// NewSession returns a session writing frames to out.
func NewSession(out io.Writer, handler Handler) *Session {
	return &Session{
		out:     out,
		handler: handler,
		dec:     NewDecoder(),
		next:    DestBit,
		frame:   make([]byte, 0, FrameMax),
	}
}

// SetResetCallback registers fn to run when the host restarts its sequence.
func (s *Session) SetResetCallback(fn func()) { s.onReset = fn }

// SetErrorCallback registers fn to receive command decode and handler
// errors. Processing of the failing frame stops at the error.
func (s *Session) SetErrorCallback(fn func(cmdID uint16, err error)) { s.onError = fn }

// NextSeq returns the sequence number expected from the host.
func (s *Session) NextSeq() uint8 { return s.next }

// Receive consumes bytes read from the link.
func (s *Session) Receive(p []byte) {
	s.dec.Write(p)
	for {
		f, ok := s.dec.Next()
		if !ok {
			return
		}
		// A 0x10 frame restarts the host sequence, unless it is the
		// retransmit of the frame just accepted after a wrap.
		if f.Seq == DestBit && s.next != DestBit && NextSeq(f.Seq) != s.next {
			s.next = DestBit
			if s.onReset != nil {
				s.onReset()
			}
		}
		if f.Seq == s.next {
			s.next = NextSeq(f.Seq)
			s.dispatch(f.Payload)
		}
		// Out of order frames are answered with the expected sequence,
		// which the host treats as a NAK.
		s.sendAck()
	}
}

func (s *Session) dispatch(payload []byte) {
	r := NewReader(payload)
	for r.Len() > 0 {
		id, err := r.Uint()
		if err != nil {
			s.reportError(0xFFFF, err)
			return
		}
		if s.handler == nil {
			return
		}
		if err := s.handler(uint16(id), r); err != nil {
			s.reportError(uint16(id), err)
			return
		}
	}
}

func (s *Session) reportError(cmdID uint16, err error) {
	if s.onError != nil {
		s.onError(cmdID, err)
	}
}

func (s *Session) sendAck() {
	s.Send(nil)
}

// Send frames payload with the current sequence and writes it out.
func (s *Session) Send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	frame, err := AppendFrame(s.frame[:0], s.next, payload)
	if err != nil {
		return err
	}
	s.frame = frame
	_, err = s.out.Write(frame)
	return err
}

// Reset forgets buffered input and expects a fresh host sequence.
func (s *Session) Reset() {
	s.dec.Reset()
	s.next = DestBit
}
