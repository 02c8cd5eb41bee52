package serial

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

var ErrNoDevice = errors.New("serial: no device given")

// NativePort is a Port on an OS serial device, backed by tarm/serial.
type NativePort struct {
	dev    *serial.Port
	device string
	closed atomic.Bool
}

// Open opens cfg.Device at cfg.Baud.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}
	dev, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return &NativePort{dev: dev, device: cfg.Device}, nil
}

// Read returns (0, nil) on a read timeout until the port is closed; tarm
// reports a timeout as a zero length EOF.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.dev.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && !p.closed.Load() {
		return 0, nil
	}
	return n, err
}

func (p *NativePort) Write(b []byte) (int, error) { return p.dev.Write(b) }

// Close is safe to call more than once.
func (p *NativePort) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.dev.Close()
}

func (p *NativePort) Flush() error { return p.dev.Flush() }

// Device returns the path the port was opened with.
func (p *NativePort) Device() string { return p.device }
