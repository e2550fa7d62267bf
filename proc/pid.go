package proc

import (
	"strconv"
)

type Tpid int32

const (
	NO_PID   Tpid = 0
	PID_MIN  Tpid = 2 // pid 1 is reserved for the kernel process
	KPID     Tpid = 1
	WAIT_ANY Tpid = -1
)

func (pid Tpid) String() string {
	return strconv.Itoa(int(pid))
}
