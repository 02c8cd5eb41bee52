//go:build !tinygo

package core

import "sync"

// SimRegister is one word of simulated register memory.
type SimRegister struct {
	mem  *SimMemory
	addr uintptr
}

func (r SimRegister) Get() uint32 {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()
	return r.mem.words[r.addr]
}

// Set stores value. Registers marked write-0-to-clear only drop the bits
// written as zero, like the status registers they stand in for.
func (r SimRegister) Set(value uint32) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()
	if r.mem.clearOnZero[r.addr] {
		r.mem.words[r.addr] &= value
		return
	}
	r.mem.words[r.addr] = value
	r.mem.applyResets(r.addr)
}

func (r SimRegister) SetBits(value uint32) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()
	r.mem.words[r.addr] |= value
	r.mem.applyResets(r.addr)
}

func (r SimRegister) ClearBits(value uint32) {
	r.mem.mu.Lock()
	defer r.mem.mu.Unlock()
	r.mem.words[r.addr] &^= value
}

func (r SimRegister) HasBits(value uint32) bool {
	return r.Get()&value != 0
}

// SimMemory backs register access on host builds. Unwritten words read zero,
// which matches the reset value of almost every timer register.
type SimMemory struct {
	mu          sync.Mutex
	words       map[uintptr]uint32
	clearOnZero map[uintptr]bool
	resetLines  map[uintptr][]resetLine
}

// resetLine is one bit of an RCC reset register and the block it clears.
type resetLine struct {
	bit  uint32
	base uintptr
	size uintptr
}

func newSimMemory() *SimMemory {
	return &SimMemory{
		words:       make(map[uintptr]uint32),
		clearOnZero: make(map[uintptr]bool),
		resetLines:  make(map[uintptr][]resetLine),
	}
}

var simMemory = newSimMemory()

// Sim returns the simulated memory used by host builds.
func Sim() *SimMemory { return simMemory }

// Peek reads a word without any register semantics.
func (m *SimMemory) Peek(addr uintptr) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[addr]
}

// Poke writes a word the way hardware would, bypassing write-0-to-clear.
func (m *SimMemory) Poke(addr uintptr, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[addr] = value
}

// MarkClearOnZero gives addr rc_w0 write semantics.
func (m *SimMemory) MarkClearOnZero(addr uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearOnZero[addr] = true
}

// MarkResetLine makes setting bit in the register at rstr zero the size
// bytes at base, the way an RCC reset line returns a peripheral to its reset
// values.
func (m *SimMemory) MarkResetLine(rstr uintptr, bit uint32, base, size uintptr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLines[rstr] = append(m.resetLines[rstr], resetLine{bit, base, size})
}

// applyResets clears every block whose reset line is asserted at addr.
// Caller holds m.mu.
func (m *SimMemory) applyResets(addr uintptr) {
	for _, l := range m.resetLines[addr] {
		if m.words[addr]&l.bit == 0 {
			continue
		}
		for a := l.base; a < l.base+l.size; a += 4 {
			delete(m.words, a)
		}
	}
}

// Reset zeroes every word. Register semantics are kept.
func (m *SimMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = make(map[uintptr]uint32)
}

func mmio(addr uintptr) Register {
	return SimRegister{mem: simMemory, addr: addr}
}

func init() {
	for _, t := range timers {
		simMemory.MarkClearOnZero(t.Base + timSR)
		simMemory.MarkResetLine(rccBase+t.Bus.ResetOffset, t.EnableBit, t.Base, timSize)
	}
}
