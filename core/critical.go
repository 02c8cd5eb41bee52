package core

// modifyBits performs (reg | set) &^ clear as one uninterruptible step.
func modifyBits(reg Register, set, clear uint32) {
	state := enterCritical()
	reg.Set((reg.Get() | set) &^ clear)
	exitCritical(state)
}
