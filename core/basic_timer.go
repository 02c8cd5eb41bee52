package core

// BasicTimer is a Counter that also exposes its prescaler, auto-reload
// register and update event.
type BasicTimer struct {
	Counter
}

// NewBasicTimer configures tim to count at counterFreq and wrap after reload.
// Pass DefaultReload for the full 16-bit range.
func NewBasicTimer(tim *TimerPeripheral, counterFreq, reload uint32) (*BasicTimer, error) {
	t, err := openTimeBase(tim, ModeBasic, counterFreq, reload)
	if err != nil {
		return nil, err
	}
	return &BasicTimer{Counter{Timer: t}}, nil
}

// Prescaler returns PSC.
func (b *BasicTimer) Prescaler() uint32 {
	return b.reg(timPSC).Get()
}

// SetPrescaler writes PSC. The new division applies from the next update
// event because PSC is buffered.
func (b *BasicTimer) SetPrescaler(psc uint16) {
	if b.closed {
		return
	}
	b.reg(timPSC).Set(uint32(psc))
}

// SetCounterFreq recomputes PSC for a new counter frequency.
func (b *BasicTimer) SetCounterFreq(counterFreq uint32) error {
	if b.closed {
		return ErrTimerClosed
	}
	psc, err := prescalerFor(b.tim, counterFreq)
	if err != nil {
		return err
	}
	b.reg(timPSC).Set(psc)
	return nil
}

// AutoReload returns ARR.
func (b *BasicTimer) AutoReload() uint32 {
	return b.reg(timARR).Get()
}

// SetAutoReload writes ARR. With ARPE set the value is preloaded and takes
// effect at the next update event.
func (b *BasicTimer) SetAutoReload(reload uint32) error {
	if b.closed {
		return ErrTimerClosed
	}
	if err := checkReload(b.tim, reload); err != nil {
		return err
	}
	b.reg(timARR).Set(reload)
	return nil
}

// CheckReloadEvent reports whether the counter overflowed since the last
// call and clears the flag. Not safe to call from two contexts at once.
func (b *BasicTimer) CheckReloadEvent() bool {
	return b.testAndClear(TIM_SR_UIF)
}
