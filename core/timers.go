package core

// TimerPeripheral is the capability record of one STM32F4 timer.
type TimerPeripheral struct {
	*Peripheral
	Number    uint8
	Channels  uint8
	Advanced  bool // break and dead-time unit, outputs gated by BDTR.MOE
	Width32   bool
	SlaveMode bool // slave mode controller with TI1FP1 trigger
	Encoder   bool
	AltFunc   uint8 // GPIO alternate function routing the channels
}

// Window returns the timer's register block.
func (t *TimerPeripheral) Window() Window {
	return NewWindow(t.Base, timSize)
}

// MaxReload is the largest value the auto-reload register accepts.
func (t *TimerPeripheral) MaxReload() uint32 {
	if t.Width32 {
		return 0xFFFFFFFF
	}
	return 0xFFFF
}

// HasChannel reports whether ch (1-based) exists on this timer.
func (t *TimerPeripheral) HasChannel(ch uint8) bool {
	return ch >= 1 && ch <= t.Channels
}

var (
	TIM1  = &TimerPeripheral{Peripheral: PeriphTIM1, Number: 1, Channels: 4, Advanced: true, SlaveMode: true, Encoder: true, AltFunc: 1}
	TIM2  = &TimerPeripheral{Peripheral: PeriphTIM2, Number: 2, Channels: 4, Width32: true, SlaveMode: true, Encoder: true, AltFunc: 1}
	TIM3  = &TimerPeripheral{Peripheral: PeriphTIM3, Number: 3, Channels: 4, SlaveMode: true, Encoder: true, AltFunc: 2}
	TIM4  = &TimerPeripheral{Peripheral: PeriphTIM4, Number: 4, Channels: 4, SlaveMode: true, Encoder: true, AltFunc: 2}
	TIM5  = &TimerPeripheral{Peripheral: PeriphTIM5, Number: 5, Channels: 4, Width32: true, SlaveMode: true, Encoder: true, AltFunc: 2}
	TIM6  = &TimerPeripheral{Peripheral: PeriphTIM6, Number: 6}
	TIM7  = &TimerPeripheral{Peripheral: PeriphTIM7, Number: 7}
	TIM8  = &TimerPeripheral{Peripheral: PeriphTIM8, Number: 8, Channels: 4, Advanced: true, SlaveMode: true, Encoder: true, AltFunc: 3}
	TIM9  = &TimerPeripheral{Peripheral: PeriphTIM9, Number: 9, Channels: 2, SlaveMode: true, AltFunc: 3}
	TIM10 = &TimerPeripheral{Peripheral: PeriphTIM10, Number: 10, Channels: 1, AltFunc: 3}
	TIM11 = &TimerPeripheral{Peripheral: PeriphTIM11, Number: 11, Channels: 1, AltFunc: 3}
	TIM12 = &TimerPeripheral{Peripheral: PeriphTIM12, Number: 12, Channels: 2, SlaveMode: true, AltFunc: 9}
	TIM13 = &TimerPeripheral{Peripheral: PeriphTIM13, Number: 13, Channels: 1, AltFunc: 9}
	TIM14 = &TimerPeripheral{Peripheral: PeriphTIM14, Number: 14, Channels: 1, AltFunc: 9}
)

// timers is indexed by timer number minus one.
var timers = [...]*TimerPeripheral{
	TIM1, TIM2, TIM3, TIM4, TIM5, TIM6, TIM7,
	TIM8, TIM9, TIM10, TIM11, TIM12, TIM13, TIM14,
}

// TimerByNumber returns TIMn, or nil when n is not a timer on this family.
func TimerByNumber(n uint8) *TimerPeripheral {
	if n == 0 || int(n) > len(timers) {
		return nil
	}
	return timers[n-1]
}

// TimerByName looks a timer up by its reference manual name, e.g. "TIM3".
func TimerByName(name string) *TimerPeripheral {
	for _, t := range timers {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Timers returns every timer descriptor in number order.
func Timers() []*TimerPeripheral {
	out := make([]*TimerPeripheral, len(timers))
	copy(out, timers[:])
	return out
}
