package core

// Peripheral describes one memory mapped peripheral and its clock gate.
// A zero EnableBit means the peripheral has no gate of its own and is always
// considered enabled.
type Peripheral struct {
	Name      string
	Bus       *Bus
	Base      uintptr
	EnableBit uint32
}

// Enable turns on the peripheral clock. The bus enable register is shared by
// every peripheral on the bus, so the update is done in a critical section.
func (p *Peripheral) Enable() {
	if p.EnableBit == 0 {
		return
	}
	modifyBits(p.Bus.EnableRegister(), p.EnableBit, 0)
}

// Disable turns off the peripheral clock. Register contents are retained.
func (p *Peripheral) Disable() {
	if p.EnableBit == 0 {
		return
	}
	modifyBits(p.Bus.EnableRegister(), 0, p.EnableBit)
}

// IsEnabled reports whether the peripheral clock is running.
func (p *Peripheral) IsEnabled() bool {
	return p.EnableBit == 0 || p.Bus.EnableRegister().HasBits(p.EnableBit)
}

// ResetPulse asserts and releases the peripheral's RCC reset line, returning
// all of its registers to their reset values.
func (p *Peripheral) ResetPulse() {
	if p.EnableBit == 0 {
		return
	}
	reg := rcc.Reg(p.Bus.ResetOffset)
	modifyBits(reg, p.EnableBit, 0)
	modifyBits(reg, 0, p.EnableBit)
}

// APB1 peripherals
var (
	PeriphTIM2    = &Peripheral{"TIM2", APB1, 0x40000000, 1 << 0}
	PeriphTIM3    = &Peripheral{"TIM3", APB1, 0x40000400, 1 << 1}
	PeriphTIM4    = &Peripheral{"TIM4", APB1, 0x40000800, 1 << 2}
	PeriphTIM5    = &Peripheral{"TIM5", APB1, 0x40000C00, 1 << 3}
	PeriphTIM6    = &Peripheral{"TIM6", APB1, 0x40001000, 1 << 4}
	PeriphTIM7    = &Peripheral{"TIM7", APB1, 0x40001400, 1 << 5}
	PeriphTIM12   = &Peripheral{"TIM12", APB1, 0x40001800, 1 << 6}
	PeriphTIM13   = &Peripheral{"TIM13", APB1, 0x40001C00, 1 << 7}
	PeriphTIM14   = &Peripheral{"TIM14", APB1, 0x40002000, 1 << 8}
	PeriphRTC     = &Peripheral{"RTC", APB1, 0x40002800, 0}
	PeriphWWDG    = &Peripheral{"WWDG", APB1, 0x40002C00, 1 << 11}
	PeriphIWDG    = &Peripheral{"IWDG", APB1, 0x40003000, 0}
	PeriphI2S2ext = &Peripheral{"I2S2ext", APB1, 0x40003400, 0}
	PeriphSPI2    = &Peripheral{"SPI2", APB1, 0x40003800, 1 << 14}
	PeriphSPI3    = &Peripheral{"SPI3", APB1, 0x40003C00, 1 << 15}
	PeriphI2S3ext = &Peripheral{"I2S3ext", APB1, 0x40004000, 0}
	PeriphUSART2  = &Peripheral{"USART2", APB1, 0x40004400, 1 << 17}
	PeriphUSART3  = &Peripheral{"USART3", APB1, 0x40004800, 1 << 18}
	PeriphUART4   = &Peripheral{"UART4", APB1, 0x40004C00, 1 << 19}
	PeriphUART5   = &Peripheral{"UART5", APB1, 0x40005000, 1 << 20}
	PeriphI2C1    = &Peripheral{"I2C1", APB1, 0x40005400, 1 << 21}
	PeriphI2C2    = &Peripheral{"I2C2", APB1, 0x40005800, 1 << 22}
	PeriphI2C3    = &Peripheral{"I2C3", APB1, 0x40005C00, 1 << 23}
	PeriphCAN1    = &Peripheral{"CAN1", APB1, 0x40006400, 1 << 25}
	PeriphCAN2    = &Peripheral{"CAN2", APB1, 0x40006800, 1 << 26}
	PeriphPWR     = &Peripheral{"PWR", APB1, 0x40007000, 1 << 28}
	PeriphDAC     = &Peripheral{"DAC", APB1, 0x40007400, 1 << 29}
)

// APB2 peripherals
var (
	PeriphTIM1   = &Peripheral{"TIM1", APB2, 0x40010000, 1 << 0}
	PeriphTIM8   = &Peripheral{"TIM8", APB2, 0x40010400, 1 << 1}
	PeriphUSART1 = &Peripheral{"USART1", APB2, 0x40011000, 1 << 4}
	PeriphUSART6 = &Peripheral{"USART6", APB2, 0x40011400, 1 << 5}
	PeriphADC1   = &Peripheral{"ADC1", APB2, 0x40012000, 1 << 8}
	PeriphADC2   = &Peripheral{"ADC2", APB2, 0x40012100, 1 << 9}
	PeriphADC3   = &Peripheral{"ADC3", APB2, 0x40012200, 1 << 10}
	PeriphSDIO   = &Peripheral{"SDIO", APB2, 0x40012C00, 1 << 11}
	PeriphSPI1   = &Peripheral{"SPI1", APB2, 0x40013000, 1 << 12}
	PeriphSYSCFG = &Peripheral{"SYSCFG", APB2, 0x40013800, 1 << 14}
	PeriphEXTI   = &Peripheral{"EXTI", APB2, 0x40013C00, 0}
	PeriphTIM9   = &Peripheral{"TIM9", APB2, 0x40014000, 1 << 16}
	PeriphTIM10  = &Peripheral{"TIM10", APB2, 0x40014400, 1 << 17}
	PeriphTIM11  = &Peripheral{"TIM11", APB2, 0x40014800, 1 << 18}
)

// AHB1 peripherals
var (
	PeriphGPIOA   = &Peripheral{"GPIOA", AHB1, 0x40020000, 1 << 0}
	PeriphGPIOB   = &Peripheral{"GPIOB", AHB1, 0x40020400, 1 << 1}
	PeriphGPIOC   = &Peripheral{"GPIOC", AHB1, 0x40020800, 1 << 2}
	PeriphGPIOD   = &Peripheral{"GPIOD", AHB1, 0x40020C00, 1 << 3}
	PeriphGPIOE   = &Peripheral{"GPIOE", AHB1, 0x40021000, 1 << 4}
	PeriphGPIOF   = &Peripheral{"GPIOF", AHB1, 0x40021400, 1 << 5}
	PeriphGPIOG   = &Peripheral{"GPIOG", AHB1, 0x40021800, 1 << 6}
	PeriphGPIOH   = &Peripheral{"GPIOH", AHB1, 0x40021C00, 1 << 7}
	PeriphGPIOI   = &Peripheral{"GPIOI", AHB1, 0x40022000, 1 << 8}
	PeriphCRC     = &Peripheral{"CRC", AHB1, 0x40023000, 1 << 12}
	PeriphFLASH_R = &Peripheral{"FLASH", AHB1, 0x40023C00, 0}
	PeriphDMA1    = &Peripheral{"DMA1", AHB1, 0x40026000, 1 << 21}
	PeriphDMA2    = &Peripheral{"DMA2", AHB1, 0x40026400, 1 << 22}
	PeriphETH     = &Peripheral{"ETH", AHB1, 0x40028000, 0}
)

// AHB2 peripherals
var (
	PeriphDCMI = &Peripheral{"DCMI", AHB2, 0x50050000, 1 << 0}
	PeriphRNG  = &Peripheral{"RNG", AHB2, 0x50060800, 1 << 6}
)
