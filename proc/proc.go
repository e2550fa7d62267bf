package proc

import (
	"fmt"
)

type Tstate uint8

const (
	Running Tstate = iota + 1
	Exited
)

func (st Tstate) String() string {
	switch st {
	case Running:
		return "RUNNING"
	case Exited:
		return "EXITED"
	default:
		return "unknown state"
	}
}

// An exit record lives in the parent's ledger from the child's exit
// until a wait consumes it; it outlives the child's PCB.
type ExitRecord struct {
	Pid    Tpid
	Status Tstatus
}

func (r *ExitRecord) String() string {
	return fmt.Sprintf("{pid %v %v}", r.Pid, r.Status)
}

// Code a user thread runs once control transfers to an image's entry
// point. argv is the user address of the argument pointer array.
type Tmain func(u Usys, argc int, argv uint64) int

// Continuation a fork child resumes at; fork returns 0 in the child.
type Tresume func(u Usys) int

// The saved user context of a thread entering the kernel through fork.
type Trapframe struct {
	Resume Tresume
}

// The calls user code can make. Errors are *serr.Err values; Exit never
// returns.
type Usys interface {
	Getpid() Tpid
	Fork(resume Tresume) (Tpid, error)
	Execv(path string, argv []string) error
	Waitpid(pid Tpid, options int) (Tpid, Tstatus, error)
	Exit(code int)
	ReadPtr(va uint64) (uint64, error)
	ReadStr(va uint64) (string, error)
}

// Args decodes the argument vector a program was started with.
func Args(u Usys, argc int, argv uint64) ([]string, error) {
	args := make([]string, 0, argc)
	for i := 0; i < argc; i++ {
		p, err := u.ReadPtr(argv + uint64(i)*8)
		if err != nil {
			return nil, err
		}
		s, err := u.ReadStr(p)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
	return args, nil
}
