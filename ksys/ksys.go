// Package ksys is the system call layer: errno-returning entry points
// that take user addresses, plus libc-style wrappers that let built-in
// user programs make calls with Go values.
package ksys

import (
	"os161/config"
	db "os161/debug"
	"os161/lifecycle"
	"os161/proc"
	"os161/proctab"
	"os161/serr"
	"os161/threadmgr"
	"os161/vm"
)

// Sys is bound to the process running on one thread.
type Sys struct {
	c *lifecycle.Coord
	p *proctab.PCB
	t *threadmgr.Thread
}

func NewSys(c *lifecycle.Coord, p *proctab.PCB, t *threadmgr.Thread) proc.Usys {
	return &Sys{c: c, p: p, t: t}
}

func (s *Sys) as() vm.AddrSpace {
	return s.p.As()
}

func (s *Sys) Sys_getpid() proc.Tpid {
	return s.c.Getpid(s.p)
}

func (s *Sys) Sys_exit(code int) {
	db.DPrintf(db.SYSCALL, "%v: exit(%d)", s.p.Pid(), code)
	s.c.Exit(s.p, s.t, code)
}

func (s *Sys) Sys_fork(tf *proc.Trapframe) (proc.Tpid, serr.Terrno) {
	pid, err := s.c.Fork(s.p, tf)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: fork: %v", s.p.Pid(), err)
		return proc.NO_PID, serr.Errno(err)
	}
	return pid, 0
}

// Sys_waitpid stores the status at statusp unless statusp is 0. Bad
// options are rejected before statusp is touched, and a bad statusp is
// caught before waiting, so the exit record is never lost.
func (s *Sys) Sys_waitpid(pid proc.Tpid, statusp vm.Tva, options int) (proc.Tpid, serr.Terrno) {
	if err := lifecycle.CheckWaitOptions(options); err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: waitpid(%v): %v", s.p.Pid(), pid, err)
		return proc.NO_PID, serr.Errno(err)
	}
	if statusp != 0 {
		if err := vm.CopyoutInt32(s.as(), statusp, 0); err != nil {
			db.DPrintf(db.SYSCALL_ERR, "%v: waitpid(%v, %v): %v", s.p.Pid(), pid, statusp, err)
			return proc.NO_PID, serr.Errno(err)
		}
	}
	cpid, status, err := s.c.Wait(s.p, pid, options)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: waitpid(%v): %v", s.p.Pid(), pid, err)
		return proc.NO_PID, serr.Errno(err)
	}
	if statusp != 0 {
		if err := vm.CopyoutInt32(s.as(), statusp, int32(status)); err != nil {
			db.DFatalf("waitpid: copyout to checked %v: %v", statusp, err)
		}
	}
	return cpid, 0
}

// Sys_execv only returns on failure.
func (s *Sys) Sys_execv(pathp, argvp vm.Tva) serr.Terrno {
	path, err := vm.CopyinStr(s.as(), pathp, config.Conf.Exec.PATH_MAX)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: execv path %v: %v", s.p.Pid(), pathp, err)
		return serr.Errno(err)
	}
	argv, err := vm.CopyinArgv(s.as(), argvp, config.Conf.Exec.MAX_ARGS, config.Conf.Exec.ARG_MAX)
	if err != nil {
		db.DPrintf(db.SYSCALL_ERR, "%v: execv %v argv %v: %v", s.p.Pid(), path, argvp, err)
		return serr.Errno(err)
	}
	db.DPrintf(db.SYSCALL, "%v: execv(%q, %q)", s.p.Pid(), path, argv)
	return serr.Errno(s.c.Exec(s.p, s.t, path, argv))
}

func (s *Sys) Proc() *proctab.PCB {
	return s.p
}
