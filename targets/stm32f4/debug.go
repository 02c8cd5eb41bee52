//go:build stm32f4

package main

import "timhal/core"

// debugOutput enables the core debug writer. Off by default: println shares
// the protocol UART on most boards, and the host decoder has to skip the
// text as line noise.
const debugOutput = false

// InitDebug routes core debug output to println.
func InitDebug() {
	core.SetDebugWriter(func(s string) {
		println(s)
	})
	core.SetDebugEnabled(debugOutput)
	core.DebugPrintln("=== timhal stm32f4 ===")
	core.DebugPrintln("SYSCLK " + itoa(int(core.SystemCoreClock())) +
		" APB1 " + itoa(int(core.APB1.Freq())) +
		" APB2 " + itoa(int(core.APB2.Freq())))
}
