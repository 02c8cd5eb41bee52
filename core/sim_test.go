//go:build !tinygo

package core

import "testing"

// resetHardware returns the simulated chip and all package state to power-on
// defaults: 16 MHz HSI, no prescalers, no timers claimed.
func resetHardware(t *testing.T) {
	t.Helper()
	ReleaseAllTimers()
	ResetFirmwareState()
	ClearEvents()
	claimed = [len(timers)]bool{}
	Sim().Reset()
	SetSystemCoreClock(16000000)
	t.Cleanup(func() {
		ReleaseAllTimers()
		claimed = [len(timers)]bool{}
		SetResponseSender(nil)
	})
}

// setClocks programs HCLK and the APB1/APB2 prescaler fields of RCC CFGR.
func setClocks(hclk, ppre1, ppre2 uint32) {
	SetSystemCoreClock(hclk)
	Sim().Poke(rccBase+rccCFGR, ppre1<<rccCFGR_PPRE1_Pos|ppre2<<rccCFGR_PPRE2_Pos)
}

// isClaimed reports whether a live handle owns tim.
func isClaimed(tim *TimerPeripheral) bool {
	state := enterCritical()
	defer exitCritical(state)
	return claimed[tim.Number-1]
}

func timReg(tim *TimerPeripheral, offset uintptr) uint32 {
	return Sim().Peek(tim.Base + offset)
}

func pokeTim(tim *TimerPeripheral, offset uintptr, v uint32) {
	Sim().Poke(tim.Base+offset, v)
}
