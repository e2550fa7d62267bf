package ksys

import (
	"encoding/binary"

	"os161/config"
	"os161/proc"
	"os161/serr"
	"os161/vm"
)

// Wrappers in the style of a C library: arguments are staged in the
// process's heap region and passed to the system call by address.

// scratch hands out heap space for staging one call's arguments.
type scratch struct {
	as   vm.AddrSpace
	next vm.Tva
	end  vm.Tva
}

func (s *Sys) scratch() *scratch {
	base := vm.Tva(config.Conf.VM.HEAP_BASE)
	sz := vm.Tva(config.Conf.VM.HEAP_PAGES * config.Conf.VM.PGSIZE)
	return &scratch{as: s.as(), next: base, end: base + sz}
}

func (sc *scratch) put(b []byte) (vm.Tva, error) {
	sz := vm.Tva(vm.Roundup(uint64(len(b)), vm.PTRSZ))
	if sc.next+sz > sc.end {
		return 0, serr.NewErr(serr.TErrTooBig, "args")
	}
	va := sc.next
	if err := sc.as.Write(va, b); err != nil {
		return 0, err
	}
	sc.next += sz
	return va, nil
}

func (sc *scratch) putStr(str string) (vm.Tva, error) {
	return sc.put(append([]byte(str), 0))
}

func (sc *scratch) putArgv(argv []string) (vm.Tva, error) {
	ptrs := make([]byte, (len(argv)+1)*vm.PTRSZ)
	for i, a := range argv {
		va, err := sc.putStr(a)
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint64(ptrs[i*vm.PTRSZ:], uint64(va))
	}
	return sc.put(ptrs)
}

func (s *Sys) Getpid() proc.Tpid {
	return s.Sys_getpid()
}

func (s *Sys) Fork(resume proc.Tresume) (proc.Tpid, error) {
	pid, errno := s.Sys_fork(&proc.Trapframe{Resume: resume})
	return pid, serr.NewErrno(errno, "fork")
}

func (s *Sys) Execv(path string, argv []string) error {
	sc := s.scratch()
	pathp, err := sc.putStr(path)
	if err != nil {
		return err
	}
	var argvp vm.Tva
	if argv != nil {
		argvp, err = sc.putArgv(argv)
		if err != nil {
			return err
		}
	}
	return serr.NewErrno(s.Sys_execv(pathp, argvp), path)
}

func (s *Sys) Waitpid(pid proc.Tpid, options int) (proc.Tpid, proc.Tstatus, error) {
	statusp := vm.Tva(config.Conf.VM.HEAP_BASE)
	cpid, errno := s.Sys_waitpid(pid, statusp, options)
	if errno != 0 {
		return cpid, 0, serr.NewErrno(errno, pid)
	}
	st, err := vm.CopyinInt32(s.as(), statusp)
	if err != nil {
		return cpid, 0, err
	}
	return cpid, proc.Tstatus(st), nil
}

func (s *Sys) Exit(code int) {
	s.Sys_exit(code)
}

func (s *Sys) ReadPtr(va uint64) (uint64, error) {
	p, err := vm.ReadPtr(s.as(), vm.Tva(va))
	return uint64(p), err
}

func (s *Sys) ReadStr(va uint64) (string, error) {
	return vm.CopyinStr(s.as(), vm.Tva(va), config.Conf.Exec.ARG_MAX)
}
