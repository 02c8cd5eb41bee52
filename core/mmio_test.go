//go:build !tinygo

package core

import "testing"

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestWindowBounds(t *testing.T) {
	resetHardware(t)
	w := TIM3.Window()

	w.Reg(timBDTR).Set(1)
	if got := Sim().Peek(TIM3.Base + timBDTR); got != 1 {
		t.Errorf("BDTR = %d, want 1", got)
	}

	expectPanic(t, "past end", func() { w.Reg(timSize) })
	expectPanic(t, "misaligned", func() { w.Reg(timSR + 2) })
}

func TestStatusRegisterWriteZeroToClear(t *testing.T) {
	resetHardware(t)
	sr := TIM2.Window().Reg(timSR)
	pokeTim(TIM2, timSR, TIM_SR_UIF|TIM_SR_CC1IF|TIM_SR_CC2IF)

	sr.Set(^uint32(TIM_SR_CC1IF))

	if got := sr.Get(); got != TIM_SR_UIF|TIM_SR_CC2IF {
		t.Errorf("SR = 0x%X, want UIF|CC2IF", got)
	}

	// writing ones never sets status bits
	sr.Set(0xFFFFFFFF)
	if got := sr.Get(); got != TIM_SR_UIF|TIM_SR_CC2IF {
		t.Errorf("SR after all-ones write = 0x%X", got)
	}
}

func TestHex32(t *testing.T) {
	if got := hex32(0x40000C00); got != "0x40000C00" {
		t.Errorf("hex32 = %s", got)
	}
	if got := utoa(4294967295); got != "4294967295" {
		t.Errorf("utoa = %s", got)
	}
	if got := itoa(-42); got != "-42" {
		t.Errorf("itoa = %s", got)
	}
}
