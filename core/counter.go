package core

// Counter is a free-running up counter with a threshold check.
type Counter struct {
	*Timer
}

// NewCounter configures tim to count at counterFreq and wrap after reload.
// The counter is left stopped.
func NewCounter(tim *TimerPeripheral, counterFreq, reload uint32) (*Counter, error) {
	t, err := openTimeBase(tim, ModeCounter, counterFreq, reload)
	if err != nil {
		return nil, err
	}
	return &Counter{Timer: t}, nil
}

// openTimeBase validates and applies the sequence shared by Counter and
// BasicTimer: PSC, ARR, CNT = 0 and auto-reload preload. PSC is buffered, so
// an update event loads it before the first start; URS keeps that event from
// raising UIF.
func openTimeBase(tim *TimerPeripheral, mode Mode, counterFreq, reload uint32) (*Timer, error) {
	if tim == nil {
		return nil, ErrUnknownTimer
	}
	psc, err := prescalerFor(tim, counterFreq)
	if err != nil {
		return nil, err
	}
	if err := checkReload(tim, reload); err != nil {
		return nil, err
	}
	t, err := openTimer(tim, mode)
	if err != nil {
		return nil, err
	}
	t.setTimeBase(psc, reload)
	t.reg(timCR1).SetBits(TIM_CR1_ARPE | TIM_CR1_URS)
	t.reg(timEGR).Set(TIM_EGR_UG)
	t.reg(timSR).Set(^uint32(TIM_SR_UIF))
	return t, nil
}

// Clear zeroes the count. It works whether or not the counter is running.
func (c *Counter) Clear() { c.clear() }

// Value returns the current count.
func (c *Counter) Value() uint32 { return c.value() }

// HasReached reports whether the count is at or past threshold. It is
// false once the counter is closed.
func (c *Counter) HasReached(threshold uint32) bool {
	return !c.closed && c.value() >= threshold
}
