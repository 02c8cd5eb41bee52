package core

// EncoderMode selects which inputs clock a quadrature encoder counter.
type EncoderMode uint8

const (
	EncoderTI1  EncoderMode = 1 // count on TI2 edges, direction from TI1 level
	EncoderTI2  EncoderMode = 2 // count on TI1 edges, direction from TI2 level
	EncoderBoth EncoderMode = 3 // count on both, x4 resolution
)

func (m EncoderMode) sms() (uint32, bool) {
	switch m {
	case EncoderTI1:
		return TIM_SMCR_SMS_0, true
	case EncoderTI2:
		return TIM_SMCR_SMS_1, true
	case EncoderBoth:
		return TIM_SMCR_SMS_0 | TIM_SMCR_SMS_1, true
	}
	return 0, false
}

// EncoderCounter counts quadrature encoder edges on channels 1 and 2.
type EncoderCounter struct {
	*Timer
	encMode EncoderMode
}

// NewEncoderCounter configures tim as an encoder interface wrapping after
// reload. Only TIM1-5 and TIM8 have one.
func NewEncoderCounter(tim *TimerPeripheral, reload uint32, mode EncoderMode) (*EncoderCounter, error) {
	if tim == nil {
		return nil, ErrUnknownTimer
	}
	sms, ok := mode.sms()
	if !ok || !tim.Encoder {
		return nil, ErrUnsupportedMode
	}
	if err := checkReload(tim, reload); err != nil {
		return nil, err
	}
	t, err := openTimer(tim, ModeEncoder)
	if err != nil {
		return nil, err
	}
	t.setTimeBase(0, reload)
	t.reg(timCCMR1).SetBits(TIM_CCMR1_CC1S_0 | TIM_CCMR1_CC2S_0)
	t.reg(timSMCR).SetBits(sms)
	t.reg(timCCER).SetBits(TIM_CCER_CC1E | TIM_CCER_CC2E)
	return &EncoderCounter{Timer: t, encMode: mode}, nil
}

// EncoderMode returns the mode the counter was configured with.
func (e *EncoderCounter) EncoderMode() EncoderMode { return e.encMode }

// SetPolarity inverts TI1 and/or TI2, which reverses the counting direction
// when exactly one is inverted. The counter must be stopped.
func (e *EncoderCounter) SetPolarity(invertTI1, invertTI2 bool) error {
	if e.closed {
		return ErrTimerClosed
	}
	if e.running {
		return ErrTimerRunning
	}
	var set, clr uint32
	if invertTI1 {
		set |= TIM_CCER_CC1P
	} else {
		clr |= TIM_CCER_CC1P
	}
	if invertTI2 {
		set |= TIM_CCER_CC2P
	} else {
		clr |= TIM_CCER_CC2P
	}
	modifyBits(e.reg(timCCER), set, clr)
	return nil
}

// Value returns the encoder position.
func (e *EncoderCounter) Value() uint32 { return e.value() }

// Clear sets the position to zero.
func (e *EncoderCounter) Clear() { e.clear() }

// CountingDown reports the direction of the last counted edge.
func (e *EncoderCounter) CountingDown() bool {
	return e.reg(timCR1).HasBits(TIM_CR1_DIR)
}
