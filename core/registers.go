// Register offsets and bit fields for the STM32F4 reset and clock control
// block and the timer peripherals (RM0090).
package core

const (
	rccBase = 0x40023800
	rccSize = 0x400

	// RCC register offsets
	rccCR       = 0x00
	rccPLLCFGR  = 0x04
	rccCFGR     = 0x08
	rccAHB1RSTR = 0x10
	rccAHB2RSTR = 0x14
	rccAPB1RSTR = 0x20
	rccAPB2RSTR = 0x24
	rccAHB1ENR  = 0x30
	rccAHB2ENR  = 0x34
	rccAPB1ENR  = 0x40
	rccAPB2ENR  = 0x44

	// RCC_CFGR prescaler fields
	rccCFGR_HPRE_Pos  = 4
	rccCFGR_HPRE_Msk  = 0xF << rccCFGR_HPRE_Pos
	rccCFGR_PPRE1_Pos = 10
	rccCFGR_PPRE1_Msk = 0x7 << rccCFGR_PPRE1_Pos
	rccCFGR_PPRE2_Pos = 13
	rccCFGR_PPRE2_Msk = 0x7 << rccCFGR_PPRE2_Pos
)

const (
	timSize = 0x400

	// TIM register offsets
	timCR1   = 0x00
	timCR2   = 0x04
	timSMCR  = 0x08
	timDIER  = 0x0C
	timSR    = 0x10
	timEGR   = 0x14
	timCCMR1 = 0x18
	timCCMR2 = 0x1C
	timCCER  = 0x20
	timCNT   = 0x24
	timPSC   = 0x28
	timARR   = 0x2C
	timRCR   = 0x30
	timCCR1  = 0x34
	timCCR2  = 0x38
	timCCR3  = 0x3C
	timCCR4  = 0x40
	timBDTR  = 0x44
)

const (
	// TIMx_CR1
	TIM_CR1_CEN  = 1 << 0
	TIM_CR1_UDIS = 1 << 1
	TIM_CR1_URS  = 1 << 2
	TIM_CR1_OPM  = 1 << 3
	TIM_CR1_DIR  = 1 << 4
	TIM_CR1_ARPE = 1 << 7

	// TIMx_SMCR
	TIM_SMCR_SMS_0 = 1 << 0
	TIM_SMCR_SMS_1 = 1 << 1
	TIM_SMCR_SMS_2 = 1 << 2
	TIM_SMCR_SMS   = TIM_SMCR_SMS_0 | TIM_SMCR_SMS_1 | TIM_SMCR_SMS_2
	TIM_SMCR_TS_0  = 1 << 4
	TIM_SMCR_TS_1  = 1 << 5
	TIM_SMCR_TS_2  = 1 << 6

	// TIMx_SR (write 0 to clear)
	TIM_SR_UIF   = 1 << 0
	TIM_SR_CC1IF = 1 << 1
	TIM_SR_CC2IF = 1 << 2
	TIM_SR_CC3IF = 1 << 3
	TIM_SR_CC4IF = 1 << 4
	TIM_SR_TIF   = 1 << 6
	TIM_SR_CC1OF = 1 << 9
	TIM_SR_CC2OF = 1 << 10

	// TIMx_EGR
	TIM_EGR_UG = 1 << 0

	// TIMx_CCMR1, channels 1 and 2. CCMR2 uses the same layout for 3 and 4.
	TIM_CCMR1_CC1S_0 = 1 << 0
	TIM_CCMR1_CC1S_1 = 1 << 1
	TIM_CCMR1_OC1PE  = 1 << 3
	TIM_CCMR1_OC1M_0 = 1 << 4
	TIM_CCMR1_OC1M_1 = 1 << 5
	TIM_CCMR1_OC1M_2 = 1 << 6
	TIM_CCMR1_CC2S_0 = 1 << 8
	TIM_CCMR1_CC2S_1 = 1 << 9
	TIM_CCMR1_OC2PE  = 1 << 11
	TIM_CCMR1_OC2M_0 = 1 << 12
	TIM_CCMR1_OC2M_1 = 1 << 13
	TIM_CCMR1_OC2M_2 = 1 << 14

	TIM_CCMR2_OC3PE  = 1 << 3
	TIM_CCMR2_OC3M_1 = 1 << 5
	TIM_CCMR2_OC3M_2 = 1 << 6
	TIM_CCMR2_OC4PE  = 1 << 11
	TIM_CCMR2_OC4M_1 = 1 << 13
	TIM_CCMR2_OC4M_2 = 1 << 14

	// TIMx_CCER
	TIM_CCER_CC1E = 1 << 0
	TIM_CCER_CC1P = 1 << 1
	TIM_CCER_CC2E = 1 << 4
	TIM_CCER_CC2P = 1 << 5
	TIM_CCER_CC3E = 1 << 8
	TIM_CCER_CC3P = 1 << 9
	TIM_CCER_CC4E = 1 << 12
	TIM_CCER_CC4P = 1 << 13

	// TIMx_BDTR (advanced timers only)
	TIM_BDTR_MOE = 1 << 15
)
