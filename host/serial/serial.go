package serial

import (
	"io"
)

// Port is a byte stream to the MCU. Besides the native port this lets tests
// and tools plug in pipes or sockets.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything buffered but not yet read or written.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate. Must match the firmware UART; USB CDC ignores it.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultBaud is the UART rate the stm32f4 firmware is built with.
const DefaultBaud = 250000

// DefaultConfig returns the configuration matching the firmware defaults.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
