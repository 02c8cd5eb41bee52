//go:build !tinygo

package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrNoAck  = errors.New("protocol: no acknowledgement from mcu")
	ErrClosed = errors.New("protocol: transport closed")
)

// Message is a non-empty frame received from the firmware.
type Message struct {
	Seq     uint8
	Payload []byte
}

// HostTransport is the host end of a link. A background goroutine reads the
// port and routes ACKs and messages to channels; Send blocks until the frame
// it wrote is acknowledged.
type HostTransport struct {
	port io.ReadWriteCloser

	// AckTimeout bounds the wait for one acknowledgement. Retries is the
	// number of retransmissions after a timeout or NAK.
	AckTimeout time.Duration
	Retries    int

	sendMu sync.Mutex
	seq    uint8
	synced bool

	acks      chan uint8
	responses chan Message
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewHostTransport starts reading port.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:       port,
		AckTimeout: 500 * time.Millisecond,
		Retries:    3,
		seq:        DestBit,
		acks:       make(chan uint8, 4),
		responses:  make(chan Message, 32),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// Send transmits payload in one frame and waits for the firmware to
// acknowledge it, retransmitting on timeout or NAK.
//
// The first Send on a link is preceded by an empty frame with sequence
// 0x10. The firmware either restarts its sequence on it or, when it already
// expects 0x11, takes it for a retransmit; both leave the two ends in step
// without losing a command.
func (t *HostTransport) Send(ctx context.Context, payload []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	if !t.synced {
		if err := t.transmit(ctx, nil); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		t.synced = true
	}
	return t.transmit(ctx, payload)
}

// transmit sends one frame until acknowledged. Caller holds sendMu.
func (t *HostTransport) transmit(ctx context.Context, payload []byte) error {
	frame, err := AppendFrame(nil, t.seq, payload)
	if err != nil {
		return err
	}
	want := NextSeq(t.seq)
	for attempt := 0; attempt <= t.Retries; attempt++ {
		if _, err := t.port.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		acked, err := t.waitAck(ctx, want)
		if err != nil {
			return err
		}
		if acked {
			t.seq = want
			return nil
		}
	}
	return fmt.Errorf("seq 0x%02x: %w", t.seq, ErrNoAck)
}

// waitAck returns true once want is acknowledged and false on timeout or
// when the firmware answers with a different sequence.
func (t *HostTransport) waitAck(ctx context.Context, want uint8) (bool, error) {
	timer := time.NewTimer(t.AckTimeout)
	defer timer.Stop()
	for {
		select {
		case seq := <-t.acks:
			if seq == want {
				return true, nil
			}
			if seq == t.seq {
				return false, nil
			}
			// stale acknowledgement of an earlier retransmission
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-t.done:
			return false, ErrClosed
		}
	}
}

// Receive returns the next message from the firmware.
func (t *HostTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case m := <-t.responses:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-t.done:
		return Message{}, ErrClosed
	}
}

// Drain discards messages that arrived without being waited for.
func (t *HostTransport) Drain() {
	for {
		select {
		case <-t.responses:
		default:
			return
		}
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.done)
	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			for {
				f, ok := dec.Next()
				if !ok {
					break
				}
				t.route(f)
			}
		}
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) route(f Frame) {
	if f.IsAck() {
		select {
		case t.acks <- f.Seq:
		default:
		}
		return
	}
	m := Message{Seq: f.Seq, Payload: f.Payload}
	select {
	case t.responses <- m:
	default:
		// full: drop the oldest so recent state wins
		select {
		case <-t.responses:
		default:
		}
		t.responses <- m
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}
