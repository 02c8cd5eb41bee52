package core

// Register is a 32-bit memory mapped peripheral register.
// On TinyGo it is satisfied by *volatile.Register32.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool
}

// Window is a bounds-checked view of one peripheral's register block.
type Window struct {
	base uintptr
	size uintptr
}

// NewWindow returns a window of size bytes starting at base.
func NewWindow(base, size uintptr) Window {
	return Window{base: base, size: size}
}

// Base returns the absolute address of the first register.
func (w Window) Base() uintptr { return w.base }

// Reg returns the register at offset. Offsets outside the block or not word
// aligned are programming errors and panic.
func (w Window) Reg(offset uintptr) Register {
	if offset&3 != 0 || offset+4 > w.size {
		panic("mmio: register offset " + utoa(uint32(offset)) + " outside window at " + hex32(uint32(w.base)))
	}
	return mmio(w.base + offset)
}
