// Package userbin holds the user programs built into the kernel's
// loader: small tests of the process calls, in the spirit of OS/161's
// testbin.
package userbin

import (
	"strconv"

	db "os161/debug"
	"os161/loader"
	"os161/proc"
	"os161/serr"
)

const (
	TRUE      = "/bin/true"
	FALSE     = "/bin/false"
	EXITCODE  = "/bin/exitcode"
	FORKTEST  = "/testbin/forktest"
	WAITTEST  = "/testbin/waittest"
	ARGTEST   = "/testbin/argtest"
	ORPHAN    = "/testbin/orphan"
	EXECTEST  = "/testbin/exectest"
	FORKBOMB  = "/testbin/forkbomb"
	BADBINARY = "/testbin/badbinary"
)

// Exit codes test programs use to report which check failed.
const (
	OK = iota
	EFORK
	EWAIT
	ESTATUS
	EPID
	EARGS
	EEXEC
)

func Register(bl *loader.BinLoader) {
	for _, img := range []*loader.Image{
		{Path: TRUE, Main: trueMain},
		{Path: FALSE, Main: falseMain},
		{Path: EXITCODE, Main: exitcodeMain},
		{Path: FORKTEST, Main: forktestMain},
		{Path: WAITTEST, Main: waittestMain},
		{Path: ARGTEST, Main: argtestMain},
		{Path: ORPHAN, Main: orphanMain},
		{Path: EXECTEST, Main: exectestMain},
		{Path: FORKBOMB, Main: forkbombMain},
		{Path: BADBINARY, Main: trueMain, Corrupt: true},
	} {
		bl.Register(img)
	}
}

func trueMain(u proc.Usys, argc int, argv uint64) int {
	return 0
}

func falseMain(u proc.Usys, argc int, argv uint64) int {
	return 1
}

// exitcode n: exits with n.
func exitcodeMain(u proc.Usys, argc int, argv uint64) int {
	args, err := proc.Args(u, argc, argv)
	if err != nil || len(args) != 2 {
		return EARGS
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return EARGS
	}
	return n
}

// forktest [code]: the child exits with code (default 7) and the parent
// checks that waitpid reports it.
func forktestMain(u proc.Usys, argc int, argv uint64) int {
	code := 7
	if args, err := proc.Args(u, argc, argv); err == nil && len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			code = n
		}
	}
	ppid := u.Getpid()
	pid, err := u.Fork(func(u proc.Usys) int {
		if u.Getpid() == ppid {
			return EPID
		}
		return code
	})
	if err != nil {
		db.DPrintf(db.USERBIN, "forktest: fork %v", err)
		return EFORK
	}
	wpid, st, err := u.Waitpid(pid, 0)
	if err != nil || wpid != pid {
		db.DPrintf(db.USERBIN, "forktest: waitpid %v %v", wpid, err)
		return EWAIT
	}
	if !st.IfExited() || st.ExitStatus() != code&0xff {
		db.DPrintf(db.USERBIN, "forktest: status %v", st)
		return ESTATUS
	}
	return OK
}

// waittest: two children; waits for the second first, then the
// first, then checks that a third wait on either fails.
func waittestMain(u proc.Usys, argc int, argv uint64) int {
	pids := make([]proc.Tpid, 2)
	for i := range pids {
		code := i + 1
		pid, err := u.Fork(func(u proc.Usys) int {
			return code
		})
		if err != nil {
			return EFORK
		}
		pids[i] = pid
	}
	for i := len(pids) - 1; i >= 0; i-- {
		wpid, st, err := u.Waitpid(pids[i], 0)
		if err != nil || wpid != pids[i] {
			return EWAIT
		}
		if st.ExitStatus() != i+1 {
			return ESTATUS
		}
	}
	for _, pid := range pids {
		if _, _, err := u.Waitpid(pid, 0); !serr.IsErrCode(err, serr.TErrNoChild) {
			return EWAIT
		}
	}
	return OK
}

// argtest: exits with argc after checking argv is NULL-terminated.
func argtestMain(u proc.Usys, argc int, argv uint64) int {
	if p, err := u.ReadPtr(argv + uint64(argc)*8); err != nil || p != 0 {
		return 255
	}
	args, err := proc.Args(u, argc, argv)
	if err != nil {
		return 255
	}
	for i, a := range args {
		db.DPrintf(db.USERBIN, "argtest: argv[%d] = %q", i, a)
	}
	return argc
}

// orphan: forks a child that forks a grandchild, then exits without
// waiting. The grandchild outlives both.
func orphanMain(u proc.Usys, argc int, argv uint64) int {
	_, err := u.Fork(func(u proc.Usys) int {
		if _, err := u.Fork(func(u proc.Usys) int {
			return 3
		}); err != nil {
			return EFORK
		}
		return 2
	})
	if err != nil {
		return EFORK
	}
	return OK
}

// exectest path args...: execs path with args; only returns if exec
// fails, with EEXEC.
func exectestMain(u proc.Usys, argc int, argv uint64) int {
	args, err := proc.Args(u, argc, argv)
	if err != nil || len(args) < 2 {
		return EARGS
	}
	err = u.Execv(args[1], args[1:])
	db.DPrintf(db.USERBIN, "exectest: execv %v: %v", args[1], err)
	return EEXEC
}

// forkbomb n: forks until fork fails or n children exist, then reaps
// them all with WAIT_ANY. Exits with the number of children.
func forkbombMain(u proc.Usys, argc int, argv uint64) int {
	n := 1 << 20
	if args, err := proc.Args(u, argc, argv); err == nil && len(args) > 1 {
		if m, err := strconv.Atoi(args[1]); err == nil {
			n = m
		}
	}
	nchild := 0
	for ; nchild < n; nchild++ {
		if _, err := u.Fork(func(u proc.Usys) int {
			return 0
		}); err != nil {
			db.DPrintf(db.USERBIN, "forkbomb: fork %d: %v", nchild, err)
			break
		}
	}
	for i := 0; i < nchild; i++ {
		if _, _, err := u.Waitpid(proc.WAIT_ANY, 0); err != nil {
			return 255
		}
	}
	return nchild
}
