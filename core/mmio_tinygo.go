//go:build tinygo

package core

import (
	"runtime/volatile"
	"unsafe"
)

// mmio maps an absolute address onto the hardware register behind it.
func mmio(addr uintptr) Register {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}
