//go:build tinygo

package core

import "runtime/interrupt"

type criticalState = interrupt.State

// enterCritical masks interrupts so a read-modify-write on a register shared
// with interrupt handlers cannot be torn.
func enterCritical() criticalState {
	return interrupt.Disable()
}

func exitCritical(state criticalState) {
	interrupt.Restore(state)
}
