//go:build stm32f4

package main

import (
	"errors"
	"machine"

	"timhal/core"
	"timhal/protocol"
)

var errPinNotOnChannel = errors.New("pin: not routed to that timer channel")

// timerChannel names one capture/compare channel.
type timerChannel struct {
	timer   uint8
	channel uint8
}

// channelPins lists the pins each timer channel can be routed to on the
// STM32F40x/41x (RM0090 alternate function map, LQFP100 package).
var channelPins = map[timerChannel][]machine.Pin{
	{1, 1}: {machine.PA8, machine.PE9},
	{1, 2}: {machine.PA9, machine.PE11},
	{1, 3}: {machine.PA10, machine.PE13},
	{1, 4}: {machine.PA11, machine.PE14},

	{2, 1}: {machine.PA0, machine.PA5, machine.PA15},
	{2, 2}: {machine.PA1, machine.PB3},
	{2, 3}: {machine.PA2, machine.PB10},
	{2, 4}: {machine.PA3, machine.PB11},

	{3, 1}: {machine.PA6, machine.PB4, machine.PC6},
	{3, 2}: {machine.PA7, machine.PB5, machine.PC7},
	{3, 3}: {machine.PB0, machine.PC8},
	{3, 4}: {machine.PB1, machine.PC9},

	{4, 1}: {machine.PB6, machine.PD12},
	{4, 2}: {machine.PB7, machine.PD13},
	{4, 3}: {machine.PB8, machine.PD14},
	{4, 4}: {machine.PB9, machine.PD15},

	{5, 1}: {machine.PA0},
	{5, 2}: {machine.PA1},
	{5, 3}: {machine.PA2},
	{5, 4}: {machine.PA3},

	{8, 1}: {machine.PC6},
	{8, 2}: {machine.PC7},
	{8, 3}: {machine.PC8},
	{8, 4}: {machine.PC9},

	{9, 1}:  {machine.PA2, machine.PE5},
	{9, 2}:  {machine.PA3, machine.PE6},
	{10, 1}: {machine.PB8},
	{11, 1}: {machine.PB9},
	{12, 1}: {machine.PB14},
	{12, 2}: {machine.PB15},
	{13, 1}: {machine.PA6},
	{14, 1}: {machine.PA7},
}

// channelForPin returns the channel of tim that pin can carry.
func channelForPin(tim *core.TimerPeripheral, pin machine.Pin) (uint8, error) {
	for ch := uint8(1); ch <= tim.Channels; ch++ {
		for _, p := range channelPins[timerChannel{tim.Number, ch}] {
			if p == pin {
				return ch, nil
			}
		}
	}
	return 0, errPinNotOnChannel
}

// bindPin switches pin to the alternate function of its timer. Inputs use
// the same mode: the timer decides the direction of an AF pin.
func bindPin(tim *core.TimerPeripheral, ch uint8, pin machine.Pin) error {
	for _, p := range channelPins[timerChannel{tim.Number, ch}] {
		if p == pin {
			pin.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModePWMOutput}, tim.AltFunc)
			return nil
		}
	}
	return errPinNotOnChannel
}

// registerPins publishes GPIO names PA0..PE15. The index is the TinyGo pin
// number, port*16 + pin.
func registerPins() {
	names := make([]string, 5*16)
	for port := 0; port < 5; port++ {
		for n := 0; n < 16; n++ {
			names[port*16+n] = "P" + string(rune('A'+port)) + itoa(n)
		}
	}
	core.RegisterEnumeration("pin", names)
}

func initPinCommands() {
	core.RegisterCommand("timer_bind_pin", "timer=%c channel=%c pin=%c", handleTimerBindPin)
}

// handleTimerBindPin routes a timer channel to a pin. Failures are reported
// against oid 0xFF since no handle is involved.
func handleTimerBindPin(args *protocol.Reader) error {
	timer, err := args.Byte()
	if err != nil {
		return err
	}
	ch, err := args.Byte()
	if err != nil {
		return err
	}
	pin, err := args.Byte()
	if err != nil {
		return err
	}
	tim := core.TimerByNumber(timer)
	if tim == nil {
		return core.ReportError(0xFF, core.ErrUnknownTimer)
	}
	if !tim.HasChannel(ch) {
		return core.ReportError(0xFF, core.ErrInvalidChannel)
	}
	if err := bindPin(tim, ch, machine.Pin(pin)); err != nil {
		return core.ReportError(0xFF, core.ErrInvalidChannel)
	}
	return nil
}
