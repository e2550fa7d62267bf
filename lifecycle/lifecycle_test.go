package lifecycle_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"os161/config"
	db "os161/debug"
	"os161/lifecycle"
	"os161/loader"
	"os161/proc"
	"os161/serr"
	"os161/test"
	"os161/userbin"
	"os161/vm"
)

const PROG = "/prog"

func register(ts *test.Tstate, path string, main proc.Tmain) {
	ts.Loader().Register(&loader.Image{Path: path, Main: main})
}

// run runs main as a program and returns its wait status.
func run(ts *test.Tstate, main proc.Tmain, argv ...string) proc.Tstatus {
	register(ts, PROG, main)
	st, err := ts.RunProgram(PROG, append([]string{PROG}, argv...))
	assert.Nil(ts.T, err)
	return st
}

// waitExited polls until pid has left a record with its parent.
func waitExited(ts *test.Tstate, pid proc.Tpid) {
	for i := 0; !ts.Table().IsZombie(pid); i++ {
		if i > 10000 {
			db.DFatalf("%v never exited", pid)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestForkExitWait(t *testing.T) {
	ts := test.NewTstate(t)
	st, err := ts.RunProgram(userbin.FORKTEST, []string{userbin.FORKTEST})
	assert.Nil(t, err)
	assert.True(t, st.IfExited())
	assert.Equal(t, userbin.OK, st.ExitStatus())
	ts.Shutdown()
}

func TestForkChildStatus(t *testing.T) {
	ts := test.NewTstate(t)
	st := run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pid, err := u.Fork(func(u proc.Usys) int {
			return 7
		})
		assert.Nil(t, err)
		wpid, st, err := u.Waitpid(pid, 0)
		assert.Nil(t, err)
		assert.Equal(t, pid, wpid)
		assert.True(t, st.IfExited())
		assert.Equal(t, 7, st.ExitStatus())
		return 0
	})
	assert.Equal(t, proc.MkWaitExit(0), st)
	ts.Shutdown()
}

func TestExitCodeTruncated(t *testing.T) {
	ts := test.NewTstate(t)
	st, err := ts.RunProgram(userbin.EXITCODE, []string{userbin.EXITCODE, "300"})
	assert.Nil(t, err)
	assert.Equal(t, 300&0xff, st.ExitStatus())
	ts.Shutdown()
}

func TestSelectiveWait(t *testing.T) {
	ts := test.NewTstate(t)
	for _, firstExit := range []int{0, 1} {
		st := run(ts, func(u proc.Usys, argc int, argv uint64) int {
			chs := []chan bool{make(chan bool), make(chan bool)}
			pids := make([]proc.Tpid, 2)
			for i := range pids {
				i := i
				pid, err := u.Fork(func(u proc.Usys) int {
					<-chs[i]
					return i + 1
				})
				assert.Nil(t, err)
				pids[i] = pid
			}
			close(chs[firstExit])
			waitExited(ts, pids[firstExit])
			close(chs[1-firstExit])

			// wait for the second child first, whatever the exit order
			_, st, err := u.Waitpid(pids[1], 0)
			assert.Nil(t, err)
			assert.Equal(t, 2, st.ExitStatus())
			_, st, err = u.Waitpid(pids[0], 0)
			assert.Nil(t, err)
			assert.Equal(t, 1, st.ExitStatus())
			return 0
		})
		assert.Equal(t, 0, st.ExitStatus())
	}
	ts.Shutdown()
}

func TestExactlyOnce(t *testing.T) {
	ts := test.NewTstate(t)
	st, err := ts.RunProgram(userbin.WAITTEST, []string{userbin.WAITTEST})
	assert.Nil(t, err)
	assert.Equal(t, userbin.OK, st.ExitStatus())

	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pid, err := u.Fork(func(u proc.Usys) int {
			return 1
		})
		assert.Nil(t, err)
		_, _, err = u.Waitpid(pid, 0)
		assert.Nil(t, err)
		_, _, err = u.Waitpid(pid, 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild), "second wait: %v", err)
		return 0
	})
	ts.Shutdown()
}

func TestWaitInvalidOptions(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pid, err := u.Fork(func(u proc.Usys) int {
			return 5
		})
		assert.Nil(t, err)
		waitExited(ts, pid)

		_, _, err = u.Waitpid(pid, 1)
		assert.True(t, serr.IsErrCode(err, serr.TErrInval))
		assert.Equal(t, serr.EINVAL, serr.Errno(err))

		// the record survived the failed call
		wpid, st, err := u.Waitpid(pid, 0)
		assert.Nil(t, err)
		assert.Equal(t, pid, wpid)
		assert.Equal(t, 5, st.ExitStatus())
		return 0
	})
	ts.Shutdown()
}

func TestWaitInvalidOptionsRunningChild(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		ch := make(chan bool)
		pid, err := u.Fork(func(u proc.Usys) int {
			<-ch
			return 6
		})
		assert.Nil(t, err)

		// fails without blocking on the running child
		_, _, err = u.Waitpid(pid, 1)
		assert.True(t, serr.IsErrCode(err, serr.TErrInval))

		p, ok := ts.Table().Lookup(u.Getpid())
		assert.True(t, ok)
		p.Lock()
		assert.True(t, p.HasChild(pid), "still a child")
		assert.False(t, p.Ledger().Has(pid))
		p.Unlock()
		assert.False(t, ts.Table().IsZombie(pid))

		close(ch)
		wpid, st, err := u.Waitpid(pid, 0)
		assert.Nil(t, err)
		assert.Equal(t, pid, wpid)
		assert.Equal(t, 6, st.ExitStatus())
		return 0
	})
	ts.Shutdown()
}

func TestWaitNoChild(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		_, _, err := u.Waitpid(12345, 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild))
		_, _, err = u.Waitpid(u.Getpid(), 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild))
		_, _, err = u.Waitpid(proc.KPID, 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild), "parent is not a child")
		_, _, err = u.Waitpid(proc.WAIT_ANY, 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild))
		return 0
	})
	ts.Shutdown()
}

func TestWaitBlocks(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		ch := make(chan bool)
		pid, err := u.Fork(func(u proc.Usys) int {
			<-ch
			return 4
		})
		assert.Nil(t, err)
		go func() {
			time.Sleep(10 * time.Millisecond)
			close(ch)
		}()
		_, st, err := u.Waitpid(pid, 0)
		assert.Nil(t, err)
		assert.Equal(t, 4, st.ExitStatus())
		return 0
	})
	ts.Shutdown()
}

func TestWaitAnyOrder(t *testing.T) {
	const N = 5
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pids := make([]proc.Tpid, N)
		chs := make([]chan bool, N)
		for i := range pids {
			ch := make(chan bool)
			chs[i] = ch
			pid, err := u.Fork(func(u proc.Usys) int {
				<-ch
				return 0
			})
			assert.Nil(t, err)
			pids[i] = pid
		}
		// exit in reverse fork order
		for i := N - 1; i >= 0; i-- {
			close(chs[i])
			waitExited(ts, pids[i])
		}
		for i := N - 1; i >= 0; i-- {
			wpid, _, err := u.Waitpid(proc.WAIT_ANY, 0)
			assert.Nil(t, err)
			assert.Equal(t, pids[i], wpid)
		}
		_, _, err := u.Waitpid(proc.WAIT_ANY, 0)
		assert.True(t, serr.IsErrCode(err, serr.TErrNoChild))
		return 0
	})
	ts.Shutdown()
}

func TestPidNotReusedWhileRecordPending(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		a, err := u.Fork(func(u proc.Usys) int {
			return 1
		})
		assert.Nil(t, err)
		waitExited(ts, a)

		for i := 0; i < 4; i++ {
			b, err := u.Fork(func(u proc.Usys) int {
				return 2
			})
			assert.Nil(t, err)
			assert.NotEqual(t, a, b)
			_, _, err = u.Waitpid(b, 0)
			assert.Nil(t, err)
		}
		wpid, st, err := u.Waitpid(a, 0)
		assert.Nil(t, err)
		assert.Equal(t, a, wpid)
		assert.Equal(t, 1, st.ExitStatus())
		assert.False(t, ts.Table().IsZombie(a))
		return 0
	})
	ts.Shutdown()
}

func TestOrphan(t *testing.T) {
	ts := test.NewTstate(t)
	st, err := ts.RunProgram(userbin.ORPHAN, []string{userbin.ORPHAN})
	assert.Nil(t, err)
	assert.Equal(t, userbin.OK, st.ExitStatus())
	// Shutdown checks the orphans' pids were released
	ts.Shutdown()
}

func TestParentExitsFirst(t *testing.T) {
	ts := test.NewTstate(t)
	ch := make(chan bool)
	done := make(chan proc.Tpid)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		_, err := u.Fork(func(u proc.Usys) int {
			<-ch
			done <- u.Getpid()
			return 9
		})
		assert.Nil(t, err)
		return 0
	})
	// the parent has exited and been reaped; now let the child go
	close(ch)
	pid := <-done
	ts.Threads().Wait()
	assert.False(t, ts.Table().IsZombie(pid))
	_, ok := ts.Table().Lookup(pid)
	assert.False(t, ok)
	ts.Shutdown()
}

func TestChildrenExitWithUnreapedGrandchildren(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pid, err := u.Fork(func(u proc.Usys) int {
			for i := 0; i < 3; i++ {
				g, err := u.Fork(func(u proc.Usys) int {
					return 0
				})
				assert.Nil(t, err)
				waitExited(ts, g)
			}
			// exit without reaping
			return 0
		})
		assert.Nil(t, err)
		_, _, err = u.Waitpid(pid, 0)
		assert.Nil(t, err)
		return 0
	})
	ts.Shutdown()
}

func TestConcurrentExitAndParentExit(t *testing.T) {
	const N = 50
	ts := test.NewTstate(t)
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := ts.RunProgram(userbin.ORPHAN, []string{userbin.ORPHAN})
			assert.Nil(t, err)
			assert.Equal(t, userbin.OK, st.ExitStatus())
		}()
	}
	wg.Wait()
	ts.Shutdown()
}

func TestConcurrentForkWait(t *testing.T) {
	const N = 20
	ts := test.NewTstate(t)
	pids := make([]proc.Tpid, N)
	for i := range pids {
		pid, err := ts.Spawn(userbin.WAITTEST, []string{userbin.WAITTEST})
		assert.Nil(t, err)
		pids[i] = pid
	}
	for _, pid := range pids {
		_, st, err := ts.Wait(pid)
		assert.Nil(t, err)
		assert.Equal(t, userbin.OK, st.ExitStatus())
	}
	ts.Shutdown()
}

func TestForkProcLimit(t *testing.T) {
	ts := test.NewTstateConfig(t, "proc:\n  max_procs: 8\n")
	st, err := ts.RunProgram(userbin.FORKBOMB, []string{userbin.FORKBOMB})
	assert.Nil(t, err)
	// the kernel process and forkbomb hold two pids
	assert.Equal(t, 6, st.ExitStatus())
	ts.Threads().Wait()

	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		for i := 0; i < 6; i++ {
			_, err := u.Fork(func(u proc.Usys) int {
				return 0
			})
			assert.Nil(t, err)
		}
		_, err := u.Fork(func(u proc.Usys) int {
			return 0
		})
		assert.Equal(t, serr.EMPROC, serr.Errno(err))
		return 0
	})
	ts.Shutdown()
}

func TestForkNoMem(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pm := ts.Physmem()
		pm.SetMax(pm.InUse())
		defer pm.SetMax(ts.Param.Npages)

		n := ts.Table().Npid()
		_, err := u.Fork(func(u proc.Usys) int {
			return 0
		})
		assert.Equal(t, serr.ENOMEM, serr.Errno(err))
		assert.Equal(t, n, ts.Table().Npid(), "child pid released")
		return 0
	})
	ts.Shutdown()
}

func TestForkCopiesAddressSpace(t *testing.T) {
	ts := test.NewTstate(t)
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pid, err := u.Fork(func(u proc.Usys) int {
			// the child sees the parent's argv, in its own copy
			args, err := proc.Args(u, argc, argv)
			assert.Nil(t, err)
			assert.Equal(t, []string{PROG, "x"}, args)
			return 0
		})
		assert.Nil(t, err)
		_, st, err := u.Waitpid(pid, 0)
		assert.Nil(t, err)
		assert.Equal(t, 0, st.ExitStatus())
		return 0
	}, "x")
	ts.Shutdown()
}

func TestExecArgLayout(t *testing.T) {
	ts := test.NewTstate(t)
	top := uint64(config.Conf.VM.USER_STACK_TOP)
	register(ts, PROG, func(u proc.Usys, argc int, argv uint64) int {
		assert.Equal(t, 3, argc)
		// "/prog\0" + pad, "a\0" + pad, "bb\0" + pad, 4 pointers
		assert.Equal(t, top-3*8-4*8, argv)
		strs := []uint64{top - 8, top - 16, top - 24}
		for i, s := range []string{"/prog", "a", "bb"} {
			p, err := u.ReadPtr(argv + uint64(i)*8)
			assert.Nil(t, err)
			assert.Equal(t, strs[i], p)
			str, err := u.ReadStr(p)
			assert.Nil(t, err)
			assert.Equal(t, s, str)
		}
		p, err := u.ReadPtr(argv + 3*8)
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), p, "argv[argc] is NULL")
		return 42
	})
	st, err := ts.RunProgram(userbin.EXECTEST, []string{userbin.EXECTEST, PROG, "a", "bb"})
	assert.Nil(t, err)
	assert.Equal(t, 42, st.ExitStatus())
	ts.Shutdown()
}

func TestExecKeepsPid(t *testing.T) {
	ts := test.NewTstate(t)
	pids := make(chan proc.Tpid, 2)
	register(ts, "/bin/getpid", func(u proc.Usys, argc int, argv uint64) int {
		pids <- u.Getpid()
		return 0
	})
	run(ts, func(u proc.Usys, argc int, argv uint64) int {
		pid, err := u.Fork(func(u proc.Usys) int {
			pids <- u.Getpid()
			err := u.Execv("/bin/getpid", []string{"/bin/getpid"})
			assert.Nil(t, err, "not reached")
			return 1
		})
		assert.Nil(t, err)
		_, st, err := u.Waitpid(pid, 0)
		assert.Nil(t, err)
		assert.Equal(t, 0, st.ExitStatus())
		assert.Equal(t, pid, <-pids)
		assert.Equal(t, pid, <-pids, "same process after exec")
		return 0
	})
	ts.Shutdown()
}

func TestExecFailureKeepsImage(t *testing.T) {
	ts := test.NewTstate(t)
	st := run(ts, func(u proc.Usys, argc int, argv uint64) int {
		// touch the heap page the call wrappers stage arguments in
		u.Waitpid(proc.WAIT_ANY, 0)
		pm := ts.Physmem()
		inuse := pm.InUse()
		for _, tc := range []struct {
			path  string
			argv  []string
			errno serr.Terrno
		}{
			{"/bin/none", []string{"none"}, serr.ENOENT},
			{userbin.BADBINARY, []string{"bad"}, serr.ENOEXEC},
			{"/" + strings.Repeat("x", config.Conf.Exec.PATH_MAX), []string{"x"}, serr.ENAMETOOLONG},
			{userbin.TRUE, nil, serr.EFAULT},
		} {
			err := u.Execv(tc.path, tc.argv)
			assert.Equal(t, tc.errno, serr.Errno(err), "%v: %v", tc.path, err)
		}
		// the old image is intact and nothing leaked
		args, err := proc.Args(u, argc, argv)
		assert.Nil(t, err)
		assert.Equal(t, []string{PROG, "keep"}, args)
		assert.Equal(t, inuse, pm.InUse())
		return 0
	}, "keep")
	assert.Equal(t, 0, st.ExitStatus())
	ts.Shutdown()
}

func TestExecTooBig(t *testing.T) {
	ts := test.NewTstateConfig(t, "exec:\n  arg_max: 128\n")
	st := run(ts, func(u proc.Usys, argc int, argv uint64) int {
		u.Waitpid(proc.WAIT_ANY, 0)
		pm := ts.Physmem()
		inuse := pm.InUse()
		// 8 strings of 8 bytes after padding plus 9 pointers is 136 bytes
		big := make([]string, 8)
		for i := range big {
			big[i] = "abcdef"
		}
		err := u.Execv(userbin.TRUE, big)
		assert.Equal(t, serr.E2BIG, serr.Errno(err))
		assert.Equal(t, inuse, pm.InUse(), "nothing allocated")

		// 64 bytes of strings and 8 pointers fit exactly
		err = u.Execv(userbin.EXITCODE, []string{userbin.EXITCODE, "3", "", "", "", "", ""})
		assert.Nil(t, err, "not reached")
		return 1
	})
	// exitcode rejects the extra args
	assert.Equal(t, userbin.EARGS, st.ExitStatus())
	ts.Shutdown()
}

func TestExecLeakFree(t *testing.T) {
	ts := test.NewTstate(t)
	for i := 0; i < 10; i++ {
		st, err := ts.RunProgram(userbin.EXECTEST, []string{userbin.EXECTEST, userbin.FORKTEST})
		assert.Nil(t, err)
		assert.Equal(t, userbin.OK, st.ExitStatus())
	}
	ts.Shutdown()
	assert.Equal(t, 0, ts.Physmem().InUse())
}

func TestSpawnErrors(t *testing.T) {
	ts := test.NewTstate(t)
	n := ts.Table().Npid()
	_, err := ts.Spawn("/bin/none", []string{"none"})
	assert.True(t, serr.IsErrCode(err, serr.TErrNotfound))
	_, err = ts.Spawn(userbin.BADBINARY, []string{"bad"})
	assert.True(t, serr.IsErrCode(err, serr.TErrNoExec))
	assert.Equal(t, n, ts.Table().Npid())
	ts.Shutdown()
}

func TestArgLayout(t *testing.T) {
	top := vm.Tva(0x1000)
	al, err := lifecycle.NewArgLayout(top, []string{"/prog", "a", "bb"}, 1024)
	assert.Nil(t, err)
	assert.Equal(t, top-56, al.Argv)
	assert.Equal(t, uint64(56), al.Size())
	assert.Equal(t, []vm.Tva{top - 8, top - 16, top - 24}, al.Strs)

	b := al.Bytes([]string{"/prog", "a", "bb"})
	assert.Equal(t, 56, len(b))
	assert.Equal(t, "bb\x00", string(b[32:35]))
	assert.Equal(t, "/prog\x00", string(b[48:54]))
	assert.Equal(t, make([]byte, 8), b[24:32], "NULL terminator")

	_, err = lifecycle.NewArgLayout(top, []string{"/prog", "a", "bb"}, 55)
	assert.True(t, serr.IsErrCode(err, serr.TErrTooBig))

	al, err = lifecycle.NewArgLayout(top, nil, 8)
	assert.Nil(t, err)
	assert.Equal(t, top-8, al.Argv)
}
