//go:build stm32f4

package main

import (
	"machine"

	"timhal/core"
)

// runtimeTimer is the timer TinyGo's stm32 runtime uses for its tick. It is
// reserved so no command can reprogram it.
var runtimeTimer = core.TIM3

// InitClock publishes the clock tree the runtime set up. The runtime
// programs the PLL and the APB prescalers before main; the core reads the
// prescalers back from RCC, so only HCLK needs to be told.
func InitClock() {
	core.SetSystemCoreClock(machine.CPUFrequency())
	if err := core.ReserveTimer(runtimeTimer); err != nil {
		core.DebugPrintln("[CLOCK] cannot reserve " + runtimeTimer.Name + ": " + err.Error())
	}
	core.RegisterConstant("RESERVED_TIMER", uint32(runtimeTimer.Number))
}
