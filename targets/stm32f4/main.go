//go:build stm32f4

package main

import (
	"machine"
	"runtime"
	"time"

	"timhal/core"
	"timhal/protocol"
)

// protocolBaud must match serial.DefaultBaud on the host.
const protocolBaud = 250000

var (
	uart    *machine.UART
	session *protocol.Session

	// Debug counters
	bytesReceived uint32
	msgerrors     uint32
)

func main() {
	uart = machine.DefaultUART
	uart.Configure(machine.UARTConfig{BaudRate: protocolBaud})

	InitClock()
	InitDebug()

	core.InitCoreCommands()
	core.RefreshClockConstants()
	registerPins()
	initPinCommands()
	initServoCommands()

	dict := core.GetGlobalDictionary()
	dict.SetBuildVersions("tinygo-" + runtime.Version())
	// Build the dictionary once now so identify never pays for it.
	dict.Compressed()

	session = protocol.NewSession(uart, core.DispatchCommand)
	session.SetResetCallback(func() {
		// Host reconnected: clear shutdown and the config handshake.
		core.ResetFirmwareState()
	})
	session.SetErrorCallback(func(cmdID uint16, err error) {
		msgerrors++
		core.DebugPrintln("[PROTO] cmd=" + itoa(int(cmdID)) + " " + err.Error())
	})
	core.SetResponseSender(session)

	buf := make([]byte, protocol.FrameMax)
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					session.Reset()
				}
			}()

			n := 0
			for n < len(buf) && uart.Buffered() > 0 {
				b, err := uart.ReadByte()
				if err != nil {
					break
				}
				buf[n] = b
				n++
			}
			if n > 0 {
				bytesReceived += uint32(n)
				session.Receive(buf[:n])
			}
		}()

		// Yield to other goroutines
		time.Sleep(50 * time.Microsecond)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [11]byte
	i := len(b)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}
