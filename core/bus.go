package core

import "sync/atomic"

// systemCoreClock is HCLK in Hz. Reset value is the 16 MHz HSI; targets
// update it once their clock tree is configured.
var systemCoreClock uint32 = 16000000

// SetSystemCoreClock records the HCLK frequency the runtime configured.
func SetSystemCoreClock(hz uint32) {
	atomic.StoreUint32(&systemCoreClock, hz)
}

// SystemCoreClock returns HCLK in Hz.
func SystemCoreClock() uint32 {
	return atomic.LoadUint32(&systemCoreClock)
}

var rcc = NewWindow(rccBase, rccSize)

type busKind uint8

const (
	busAHB busKind = iota
	busAPB
)

// Bus describes one peripheral bus and the RCC registers that gate its clocks.
type Bus struct {
	Name           string
	Base           uintptr
	EnableOffset   uintptr // RCC enable register
	ResetOffset    uintptr // RCC reset register
	PrescalerMask  uint32  // CFGR field dividing this bus
	PrescalerShift uint32
	kind           busKind
}

var (
	APB1 = &Bus{
		Name:           "APB1",
		Base:           0x40000000,
		EnableOffset:   rccAPB1ENR,
		ResetOffset:    rccAPB1RSTR,
		PrescalerMask:  rccCFGR_PPRE1_Msk,
		PrescalerShift: rccCFGR_PPRE1_Pos,
		kind:           busAPB,
	}
	APB2 = &Bus{
		Name:           "APB2",
		Base:           0x40010000,
		EnableOffset:   rccAPB2ENR,
		ResetOffset:    rccAPB2RSTR,
		PrescalerMask:  rccCFGR_PPRE2_Msk,
		PrescalerShift: rccCFGR_PPRE2_Pos,
		kind:           busAPB,
	}
	AHB1 = &Bus{
		Name:           "AHB1",
		Base:           0x40020000,
		EnableOffset:   rccAHB1ENR,
		ResetOffset:    rccAHB1RSTR,
		PrescalerMask:  rccCFGR_HPRE_Msk,
		PrescalerShift: rccCFGR_HPRE_Pos,
		kind:           busAHB,
	}
	AHB2 = &Bus{
		Name:           "AHB2",
		Base:           0x50000000,
		EnableOffset:   rccAHB2ENR,
		ResetOffset:    rccAHB2RSTR,
		PrescalerMask:  rccCFGR_HPRE_Msk,
		PrescalerShift: rccCFGR_HPRE_Pos,
		kind:           busAHB,
	}
)

// EnableRegister returns the RCC register holding this bus's clock gates.
func (b *Bus) EnableRegister() Register {
	return rcc.Reg(b.EnableOffset)
}

// Divider returns the current clock divider applied by this bus's prescaler.
// The AHB field divides SYSCLK into HCLK, which SystemCoreClock already is, so
// AHB buses report their divider for information only.
func (b *Bus) Divider() uint32 {
	field := (rcc.Reg(rccCFGR).Get() & b.PrescalerMask) >> b.PrescalerShift
	switch b.kind {
	case busAPB:
		// 0xx: /1, 100: /2, 101: /4, 110: /8, 111: /16
		if field&0x4 == 0 {
			return 1
		}
		return 2 << (field & 0x3)
	default:
		// 0xxx: /1, 1000: /2 ... 1011: /16, 1100: /64 ... 1111: /512
		if field&0x8 == 0 {
			return 1
		}
		n := field & 0x7
		if n >= 4 {
			n++
		}
		return 2 << n
	}
}

// Freq returns the bus clock in Hz.
func (b *Bus) Freq() uint32 {
	if b.kind == busAHB {
		return SystemCoreClock()
	}
	return SystemCoreClock() / b.Divider()
}

// TimerFreq returns the kernel clock of timers on this bus. When an APB
// prescaler divides HCLK the timers run at twice the bus clock.
func (b *Bus) TimerFreq() uint32 {
	if b.kind == busAPB && b.Divider() != 1 {
		return b.Freq() * 2
	}
	return b.Freq()
}
