package proc

import (
	"fmt"
)

// Encoded wait status, in the format of OS/161's kern/wait.h: the low two
// bits say why the process stopped running and the rest carries the exit
// code or signal number.
type Tstatus int32

const (
	wExited Tstatus = iota
	wSignaled
	wCored
	wStopped
)

func mkwval(x int) Tstatus {
	return Tstatus(x << 2)
}

func (st Tstatus) what() Tstatus {
	return st & 3
}

func (st Tstatus) val() int {
	return int(st >> 2)
}

func MkWaitExit(code int) Tstatus {
	return mkwval(code&0xff) | wExited
}

// Reserved: no signal delivery, so the lifecycle core never produces these.
func MkWaitSig(sig int) Tstatus {
	return mkwval(sig) | wSignaled
}

func MkWaitCore(sig int) Tstatus {
	return mkwval(sig) | wCored
}

func (st Tstatus) IfExited() bool {
	return st.what() == wExited
}

func (st Tstatus) ExitStatus() int {
	return st.val()
}

func (st Tstatus) IfSignaled() bool {
	return st.what() == wSignaled || st.what() == wCored
}

func (st Tstatus) TermSig() int {
	return st.val()
}

func (st Tstatus) CoreDump() bool {
	return st.what() == wCored
}

func (st Tstatus) String() string {
	switch st.what() {
	case wExited:
		return fmt.Sprintf("exited %d", st.val())
	case wSignaled:
		return fmt.Sprintf("signaled %d", st.val())
	case wCored:
		return fmt.Sprintf("signaled %d (core dumped)", st.val())
	default:
		return fmt.Sprintf("stopped %d", st.val())
	}
}
