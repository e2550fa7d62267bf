package ksys_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"os161/config"
	"os161/ksys"
	"os161/loader"
	"os161/proc"
	"os161/serr"
	"os161/test"
	"os161/vm"
)

const PROG = "/prog"

func run(ts *test.Tstate, main func(s *ksys.Sys) int) proc.Tstatus {
	ts.Loader().Register(&loader.Image{Path: PROG, Main: func(u proc.Usys, argc int, argv uint64) int {
		return main(u.(*ksys.Sys))
	}})
	st, err := ts.RunProgram(PROG, []string{PROG})
	assert.Nil(ts.T, err)
	return st
}

func heap(off int) vm.Tva {
	return vm.Tva(config.Conf.VM.HEAP_BASE) + vm.Tva(off)
}

func TestGetpid(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		assert.Equal(t, s.Proc().Pid(), s.Sys_getpid())
		assert.True(t, s.Sys_getpid() >= proc.PID_MIN)
		return 0
	})
	ts.Shutdown()
}

func TestWaitpidStatus(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		as := s.Proc().As()
		pid, errno := s.Sys_fork(&proc.Trapframe{Resume: func(u proc.Usys) int {
			return 7
		}})
		assert.Equal(t, serr.Terrno(0), errno)

		statusp := heap(64)
		cpid, errno := s.Sys_waitpid(pid, statusp, 0)
		assert.Equal(t, serr.Terrno(0), errno)
		assert.Equal(t, pid, cpid)
		st, err := vm.CopyinInt32(as, statusp)
		assert.Nil(t, err)
		assert.Equal(t, int32(proc.MkWaitExit(7)), st)
		return 0
	})
	ts.Shutdown()
}

func TestWaitpidNullStatus(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		pid, _ := s.Sys_fork(&proc.Trapframe{Resume: func(u proc.Usys) int {
			return 1
		}})
		cpid, errno := s.Sys_waitpid(pid, 0, 0)
		assert.Equal(t, serr.Terrno(0), errno)
		assert.Equal(t, pid, cpid)
		return 0
	})
	ts.Shutdown()
}

func TestWaitpidFaultKeepsRecord(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		pid, _ := s.Sys_fork(&proc.Trapframe{Resume: func(u proc.Usys) int {
			return 2
		}})
		_, errno := s.Sys_waitpid(pid, 0x1000, 0)
		assert.Equal(t, serr.EFAULT, errno)
		_, errno = s.Sys_waitpid(pid, heap(0), 1)
		assert.Equal(t, serr.EINVAL, errno)
		_, errno = s.Sys_waitpid(pid+100, heap(0), 0)
		assert.Equal(t, serr.ECHILD, errno)

		cpid, errno := s.Sys_waitpid(pid, heap(0), 0)
		assert.Equal(t, serr.Terrno(0), errno)
		assert.Equal(t, pid, cpid)
		return 0
	})
	ts.Shutdown()
}

func TestWaitpidOptionsCheckedFirst(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		as := s.Proc().As()
		pid, _ := s.Sys_fork(&proc.Trapframe{Resume: func(u proc.Usys) int {
			return 3
		}})
		statusp := heap(64)
		assert.Nil(t, vm.CopyoutInt32(as, statusp, 12345))

		_, errno := s.Sys_waitpid(pid, statusp, 1)
		assert.Equal(t, serr.EINVAL, errno)
		v, err := vm.CopyinInt32(as, statusp)
		assert.Nil(t, err)
		assert.Equal(t, int32(12345), v, "status slot untouched")

		_, errno = s.Sys_waitpid(pid, 0x10, 1)
		assert.Equal(t, serr.EINVAL, errno, "options checked before statusp")

		cpid, errno := s.Sys_waitpid(pid, statusp, 0)
		assert.Equal(t, serr.Terrno(0), errno)
		assert.Equal(t, pid, cpid)
		v, err = vm.CopyinInt32(as, statusp)
		assert.Nil(t, err)
		assert.Equal(t, int32(proc.MkWaitExit(3)), v)
		return 0
	})
	ts.Shutdown()
}

func TestExecvBadPointers(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		as := s.Proc().As()
		path := heap(0)
		assert.Nil(t, as.Write(path, []byte("/bin/true\x00")))
		argv := heap(64)
		assert.Nil(t, vm.WritePtr(as, argv, path))
		assert.Nil(t, vm.WritePtr(as, argv+vm.PTRSZ, 0x1000))

		assert.Equal(t, serr.EFAULT, s.Sys_execv(0, argv))
		assert.Equal(t, serr.EFAULT, s.Sys_execv(path, 0))
		assert.Equal(t, serr.EFAULT, s.Sys_execv(path, argv), "argv[1] unmapped")

		long := heap(1024)
		assert.Nil(t, as.Write(long, []byte(strings.Repeat("x", config.Conf.Exec.PATH_MAX))))
		assert.Equal(t, serr.ENAMETOOLONG, s.Sys_execv(long, argv))
		return 0
	})
	ts.Shutdown()
}

func TestExecvArgMax(t *testing.T) {
	ts := test.NewTstateConfig(t, "exec:\n  arg_max: 64\n")
	run(ts, func(s *ksys.Sys) int {
		err := s.Execv("/bin/true", []string{strings.Repeat("y", 100)})
		assert.Equal(t, serr.E2BIG, serr.Errno(err))
		return 0
	})
	ts.Shutdown()
}

func TestExecvSuccess(t *testing.T) {
	ts := test.NewTstate(t)
	st := run(ts, func(s *ksys.Sys) int {
		err := s.Execv("/bin/exitcode", []string{"/bin/exitcode", "12"})
		assert.Nil(t, err, "not reached")
		return 1
	})
	assert.Equal(t, 12, st.ExitStatus())
	ts.Shutdown()
}

func TestWrapperErrors(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(s *ksys.Sys) int {
		_, _, err := s.Waitpid(proc.WAIT_ANY, 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild))
		err = s.Execv("/bin/none", []string{"none"})
		assert.True(t, serr.IsErrCode(err, serr.TErrNotfound))
		return 0
	})
	ts.Shutdown()
}
