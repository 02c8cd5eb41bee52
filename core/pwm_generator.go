package core

import "math"

// PwmGenerator drives up to four edge-aligned PWM outputs sharing one period.
type PwmGenerator struct {
	*Timer
	period uint32
}

// NewPwmGenerator configures tim for PWM with the counter running at
// counterFreq and wrapping after period ticks. Channels start disabled.
func NewPwmGenerator(tim *TimerPeripheral, counterFreq, period uint32) (*PwmGenerator, error) {
	if tim == nil {
		return nil, ErrUnknownTimer
	}
	if tim.Channels == 0 {
		return nil, ErrUnsupportedMode
	}
	psc, err := prescalerFor(tim, counterFreq)
	if err != nil {
		return nil, err
	}
	if err := checkReload(tim, period); err != nil {
		return nil, err
	}
	t, err := openTimer(tim, ModePwmGenerator)
	if err != nil {
		return nil, err
	}
	t.setTimeBase(psc, period)
	t.reg(timEGR).Set(TIM_EGR_UG)
	if tim.Advanced {
		t.reg(timBDTR).SetBits(TIM_BDTR_MOE)
	}
	t.reg(timCR1).SetBits(TIM_CR1_ARPE)
	return &PwmGenerator{Timer: t, period: period}, nil
}

// NewPwmGeneratorFreq configures tim for a signal frequency with a fixed
// period of 0xFFFF ticks.
func NewPwmGeneratorFreq(tim *TimerPeripheral, signalFreq uint32) (*PwmGenerator, error) {
	const period = 0xFFFF
	if signalFreq == 0 {
		return nil, ErrZeroFrequency
	}
	if signalFreq > math.MaxUint32/period {
		return nil, ErrFrequencyTooHigh
	}
	return NewPwmGenerator(tim, period*signalFreq, period)
}

// Period returns the PWM period in ticks.
func (p *PwmGenerator) Period() uint32 { return p.period }

// SignalFreq returns the output frequency in Hz.
func (p *PwmGenerator) SignalFreq() uint32 {
	return p.TickFreq() / (p.period + 1)
}

// SetPeriod changes the period. The new value is preloaded and takes effect
// at the next update event. On-periods longer than the new period are
// shortened to it.
func (p *PwmGenerator) SetPeriod(period uint32) error {
	if p.closed {
		return ErrTimerClosed
	}
	if err := checkReload(p.tim, period); err != nil {
		return err
	}
	for ch := uint8(1); ch <= p.tim.Channels; ch++ {
		ccr := p.reg(ccrOffset(ch))
		if ccr.Get() > period {
			ccr.Set(period)
		}
	}
	p.reg(timARR).Set(period)
	p.period = period
	return nil
}

// ccmrFor returns the capture/compare mode register of ch and the bit shift
// of its 8-bit field.
func (p *PwmGenerator) ccmrFor(ch uint8) (Register, uint32) {
	off := uintptr(timCCMR1)
	if ch > 2 {
		off = timCCMR2
	}
	return p.reg(off), uint32((ch-1)%2) * 8
}

func ccerEnable(ch uint8) uint32 { return TIM_CCER_CC1E << (4 * uint32(ch-1)) }

func ccrOffset(ch uint8) uintptr { return timCCR1 + 4*uintptr(ch-1) }

func (p *PwmGenerator) checkChannel(ch uint8) error {
	if p.closed {
		return ErrTimerClosed
	}
	if !p.tim.HasChannel(ch) {
		return ErrInvalidChannel
	}
	return nil
}

// EnableChannel puts ch in PWM mode 1 with CCR preload and enables its
// output. The counter must be stopped.
func (p *PwmGenerator) EnableChannel(ch uint8) error {
	if err := p.checkChannel(ch); err != nil {
		return err
	}
	if p.running {
		return ErrTimerRunning
	}
	ccmr, shift := p.ccmrFor(ch)
	const field = TIM_CCMR1_CC1S_0 | TIM_CCMR1_CC1S_1 | TIM_CCMR1_OC1M_0 | TIM_CCMR1_OC1M_1 | TIM_CCMR1_OC1M_2
	const pwm1 = TIM_CCMR1_OC1M_1 | TIM_CCMR1_OC1M_2 | TIM_CCMR1_OC1PE
	ccmr.Set(ccmr.Get()&^(field<<shift) | pwm1<<shift)
	p.reg(timCCER).SetBits(ccerEnable(ch))
	return nil
}

// DisableChannel zeroes the compare value of ch and disables its output.
// The counter must be stopped.
func (p *PwmGenerator) DisableChannel(ch uint8) error {
	if err := p.checkChannel(ch); err != nil {
		return err
	}
	if p.running {
		return ErrTimerRunning
	}
	p.reg(ccrOffset(ch)).Set(0)
	p.reg(timCCER).ClearBits(ccerEnable(ch))
	return nil
}

// ChannelEnabled reports whether the output of ch is enabled.
func (p *PwmGenerator) ChannelEnabled(ch uint8) bool {
	return p.tim.HasChannel(ch) && p.reg(timCCER).HasBits(ccerEnable(ch))
}

// SetOnPeriod sets the high time of ch in ticks. A value above the period is
// rejected and the compare register keeps its previous value.
func (p *PwmGenerator) SetOnPeriod(ch uint8, ticks uint32) error {
	if err := p.checkChannel(ch); err != nil {
		return err
	}
	if ticks > p.period {
		return ErrOnPeriodOutOfRange
	}
	p.reg(ccrOffset(ch)).Set(ticks)
	return nil
}

// OnPeriod returns the compare value of ch, or 0 for a channel the timer
// does not have.
func (p *PwmGenerator) OnPeriod(ch uint8) uint32 {
	if !p.tim.HasChannel(ch) {
		return 0
	}
	return p.reg(ccrOffset(ch)).Get()
}

// SetDutyPercent sets the duty cycle of ch. Values above 100 are treated
// as 100.
func (p *PwmGenerator) SetDutyPercent(ch uint8, percent uint8) error {
	percent = clamp(percent, 0, 100)
	return p.SetOnPeriod(ch, uint32(uint64(p.period)*uint64(percent)/100))
}

// SetDuty sets the duty cycle of ch as a fraction. Input is clamped to
// [0, 1]; NaN is treated as 0.
func (p *PwmGenerator) SetDuty(ch uint8, duty float32) error {
	if duty != duty {
		duty = 0
	}
	duty = clamp(duty, 0, 1)
	return p.SetOnPeriod(ch, uint32(float64(p.period)*float64(duty)))
}

// DisableOutputs turns off every channel output, and the main output gate on
// advanced timers, without touching compare values or the counter. Used on
// shutdown, where outputs must go idle even if the counter is running.
func (p *PwmGenerator) DisableOutputs() {
	var mask uint32
	for ch := uint8(1); ch <= p.tim.Channels; ch++ {
		mask |= ccerEnable(ch)
	}
	p.reg(timCCER).ClearBits(mask)
	if p.tim.Advanced {
		p.reg(timBDTR).ClearBits(TIM_BDTR_MOE)
	}
}
