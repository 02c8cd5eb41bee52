// Package mcu is the host side client of the timer firmware: it fetches the
// command dictionary, encodes commands by name and decodes responses.
package mcu

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"timhal/core"
	"timhal/host/config"
	"timhal/host/serial"
	"timhal/protocol"
)

var (
	ErrNotConnected  = errors.New("mcu: not connected")
	ErrNoDictionary  = errors.New("mcu: dictionary not loaded")
	ErrUnknownName   = errors.New("mcu: unknown command or response")
	ErrArgumentCount = errors.New("mcu: wrong number of arguments")
)

// identifyChunk is the number of dictionary bytes requested per identify.
const identifyChunk = 40

// TimerError is a timer_error response turned back into a Go error.
type TimerError struct {
	OID  uint8
	Code uint8
}

func (e *TimerError) Error() string {
	if err := core.CodeError(e.Code); err != nil {
		return fmt.Sprintf("oid %d: %v", e.OID, err)
	}
	return fmt.Sprintf("oid %d: error code %d", e.OID, e.Code)
}

// Unwrap exposes the core sentinel so callers can use errors.Is.
func (e *TimerError) Unwrap() error { return core.CodeError(e.Code) }

// Response is a decoded message from the MCU.
type Response struct {
	Name   string
	Fields []string // parameter names in wire order
	Values map[string]uint32
	Data   map[string][]byte
}

// Get returns an integer parameter, 0 when absent.
func (r *Response) Get(name string) uint32 { return r.Values[name] }

// MCU represents a connection to the timer firmware.
type MCU struct {
	transport *protocol.HostTransport

	dictionary     *Dictionary
	dictionaryData []byte

	// Logf receives progress messages. Nil discards them.
	Logf func(format string, args ...interface{})
}

// Connect opens a serial device and attaches to it.
func Connect(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port), nil
}

// New attaches to an already open byte stream.
func New(port io.ReadWriteCloser) *MCU {
	return &MCU{transport: protocol.NewHostTransport(port)}
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if m.transport == nil {
		return nil
	}
	err := m.transport.Close()
	m.transport = nil
	return err
}

func (m *MCU) logf(format string, args ...interface{}) {
	if m.Logf != nil {
		m.Logf(format, args...)
	}
}

// RetrieveDictionary reads the compressed dictionary in identify chunks,
// inflates and parses it.
func (m *MCU) RetrieveDictionary(ctx context.Context) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	var buf bytes.Buffer
	for {
		chunk, err := m.identify(ctx, uint32(buf.Len()))
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", buf.Len(), err)
		}
		if len(chunk) == 0 {
			break
		}
		buf.Write(chunk)
		m.logf("dictionary: %d bytes", buf.Len())
	}
	zr, err := zlib.NewReader(&buf)
	if err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("inflate dictionary: %w", err)
	}
	d, err := ParseDictionary(data)
	if err != nil {
		return err
	}
	m.dictionaryData = data
	m.dictionary = d
	m.logf("dictionary: %d commands, %d responses", len(d.Commands), len(d.Responses))
	return nil
}

// identify uses the fixed bootstrap IDs: identify is 1, its response 0.
func (m *MCU) identify(ctx context.Context, offset uint32) ([]byte, error) {
	m.transport.Drain()
	payload := protocol.AppendUint(nil, 1)
	payload = protocol.AppendUint(payload, offset)
	payload = protocol.AppendUint(payload, identifyChunk)
	if err := m.transport.Send(ctx, payload); err != nil {
		return nil, err
	}
	for {
		msg, err := m.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}
		r := protocol.NewReader(msg.Payload)
		id, err := r.Uint()
		if err != nil || id != 0 {
			continue
		}
		got, err := r.Uint()
		if err != nil {
			return nil, err
		}
		if got != offset {
			continue
		}
		return r.Bytes()
	}
}

// Dictionary returns the parsed dictionary, nil before RetrieveDictionary.
func (m *MCU) Dictionary() *Dictionary { return m.dictionary }

// DictionaryRaw returns the dictionary JSON as received.
func (m *MCU) DictionaryRaw() []byte { return m.dictionaryData }

// Encode builds the payload of command name. Every argument is an integer.
func (m *MCU) Encode(name string, args ...uint32) ([]byte, error) {
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	f, ok := m.dictionary.Lookup(name)
	if !ok || f.Response {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownName)
	}
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d: %w", name, len(f.Params), len(args), ErrArgumentCount)
	}
	payload := protocol.AppendUint(nil, uint32(f.ID))
	for _, a := range args {
		payload = protocol.AppendUint(payload, a)
	}
	return payload, nil
}

// Decode parses a message payload against the dictionary.
func (m *MCU) Decode(payload []byte) (*Response, error) {
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	r := protocol.NewReader(payload)
	id, err := r.Uint()
	if err != nil {
		return nil, err
	}
	f, ok := m.dictionary.LookupID(int(id))
	if !ok {
		return nil, fmt.Errorf("message id %d: %w", id, ErrUnknownName)
	}
	resp := &Response{Name: f.Name, Values: make(map[string]uint32)}
	for _, p := range f.Params {
		resp.Fields = append(resp.Fields, p.Name)
		if p.Kind == ParamBytes {
			b, err := r.Bytes()
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", f.Name, p.Name, err)
			}
			if resp.Data == nil {
				resp.Data = make(map[string][]byte)
			}
			resp.Data[p.Name] = b
			continue
		}
		v, err := r.Uint()
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", f.Name, p.Name, err)
		}
		resp.Values[p.Name] = v
	}
	return resp, nil
}

// Send transmits command name and waits for the acknowledgement.
func (m *MCU) Send(ctx context.Context, name string, args ...uint32) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	payload, err := m.Encode(name, args...)
	if err != nil {
		return err
	}
	if err := m.transport.Send(ctx, payload); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	return nil
}

// Query sends command name and waits for a response called want. A
// timer_error for the same oid (the first argument) ends the wait with a
// *TimerError.
func (m *MCU) Query(ctx context.Context, want, name string, args ...uint32) (*Response, error) {
	if m.transport == nil {
		return nil, ErrNotConnected
	}
	m.transport.Drain()
	if err := m.Send(ctx, name, args...); err != nil {
		return nil, err
	}
	for {
		resp, err := m.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("wait for %s: %w", want, err)
		}
		if resp.Name == want {
			return resp, nil
		}
		if resp.Name == "timer_error" && len(args) > 0 && resp.Get("oid") == args[0] {
			return nil, &TimerError{OID: uint8(resp.Get("oid")), Code: uint8(resp.Get("code"))}
		}
	}
}

// Receive returns the next decoded message.
func (m *MCU) Receive(ctx context.Context) (*Response, error) {
	if m.transport == nil {
		return nil, ErrNotConnected
	}
	for {
		msg, err := m.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := m.Decode(msg.Payload)
		if err != nil {
			m.logf("dropping message: %v", err)
			continue
		}
		return resp, nil
	}
}

// Exec sends a command that only answers on failure. The firmware reports
// a timer_error before acknowledging the frame, so waiting settle after the
// acknowledgement is enough to catch it.
func (m *MCU) Exec(ctx context.Context, settle time.Duration, name string, args ...uint32) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	m.transport.Drain()
	if err := m.Send(ctx, name, args...); err != nil {
		return err
	}
	wait, cancel := context.WithTimeout(ctx, settle)
	defer cancel()
	for {
		resp, err := m.Receive(wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if resp.Name == "timer_error" {
			return &TimerError{OID: uint8(resp.Get("oid")), Code: uint8(resp.Get("code"))}
		}
	}
}

// Clocks reads the bus frequencies the firmware published.
func (m *MCU) Clocks() (config.Clocks, error) {
	if m.dictionary == nil {
		return config.Clocks{}, ErrNoDictionary
	}
	var c config.Clocks
	var err error
	if c.Core, err = m.dictionary.ConfigUint("SYSTEM_CORE_CLOCK"); err != nil {
		return c, err
	}
	if c.APB1, err = m.dictionary.ConfigUint("APB1_FREQ"); err != nil {
		return c, err
	}
	c.APB2, err = m.dictionary.ConfigUint("APB2_FREQ")
	return c, err
}
