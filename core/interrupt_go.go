//go:build !tinygo

package core

import "sync"

// criticalState mirrors interrupt.State. Host builds have no interrupts, so
// the critical section is one mutex shared by every caller.
type criticalState uintptr

var criticalMu sync.Mutex

func enterCritical() criticalState {
	criticalMu.Lock()
	return 0
}

func exitCritical(criticalState) {
	criticalMu.Unlock()
}
