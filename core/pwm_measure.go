package core

// PwmMeasure captures the period and high time of a PWM signal on channel 1.
// Both capture units watch TI1: IC1 latches on the rising edge, which also
// resets the counter through the slave controller, and IC2 latches on the
// falling edge.
type PwmMeasure struct {
	*Timer
}

// NewPwmMeasure configures tim for PWM input with the counter running at
// counterFreq. The timer needs two channels and a slave mode controller.
func NewPwmMeasure(tim *TimerPeripheral, counterFreq uint32) (*PwmMeasure, error) {
	if tim == nil {
		return nil, ErrUnknownTimer
	}
	if tim.Channels < 2 || !tim.SlaveMode {
		return nil, ErrUnsupportedMode
	}
	psc, err := prescalerFor(tim, counterFreq)
	if err != nil {
		return nil, err
	}
	t, err := openTimer(tim, ModePwmMeasure)
	if err != nil {
		return nil, err
	}
	t.setTimeBase(psc, tim.MaxReload())

	ccmr1 := t.reg(timCCMR1)
	ccmr1.SetBits(TIM_CCMR1_CC1S_0) // IC1 <- TI1
	ccmr1.SetBits(TIM_CCMR1_CC2S_1) // IC2 <- TI1

	smcr := t.reg(timSMCR)
	smcr.SetBits(TIM_SMCR_TS_2 | TIM_SMCR_TS_0) // trigger TI1FP1
	smcr.SetBits(TIM_SMCR_SMS_2)                // reset mode

	ccer := t.reg(timCCER)
	ccer.SetBits(TIM_CCER_CC2P | TIM_CCER_CC2E) // IC2 on falling edge
	ccer.SetBits(TIM_CCER_CC1E)
	return &PwmMeasure{Timer: t}, nil
}

// PeriodEvent reports whether a new period was captured since the last call
// and clears the flag. Not safe to call from two contexts at once.
func (m *PwmMeasure) PeriodEvent() bool {
	return m.testAndClear(TIM_SR_CC1IF)
}

// WidthEvent reports whether a new high time was captured since the last
// call and clears the flag. Not safe to call from two contexts at once.
func (m *PwmMeasure) WidthEvent() bool {
	return m.testAndClear(TIM_SR_CC2IF)
}

// Overcapture reports whether a period capture was overwritten before it
// was read, and clears the flag.
func (m *PwmMeasure) Overcapture() bool {
	return m.testAndClear(TIM_SR_CC1OF)
}

// Period returns the last captured period in ticks.
func (m *PwmMeasure) Period() uint32 {
	return m.reg(timCCR1).Get()
}

// PulseWidth returns the last captured high time in ticks.
func (m *PwmMeasure) PulseWidth() uint32 {
	return m.reg(timCCR2).Get()
}

// Frequency returns the measured signal frequency in Hz, or 0 before the
// first capture.
func (m *PwmMeasure) Frequency() uint32 {
	period := m.Period()
	if period == 0 {
		return 0
	}
	return m.TickFreq() / period
}

// DutyPercent returns the measured high time as a percentage of the period,
// or 0 before the first capture.
func (m *PwmMeasure) DutyPercent() uint8 {
	period := m.Period()
	if period == 0 {
		return 0
	}
	pct := uint64(m.PulseWidth()) * 100 / uint64(period)
	return uint8(clamp(pct, 0, 100))
}
