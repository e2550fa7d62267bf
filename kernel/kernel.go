package kernel

import (
	"fmt"

	"os161/config"
	db "os161/debug"
	"os161/ksys"
	"os161/lifecycle"
	"os161/loader"
	"os161/proc"
	"os161/proctab"
	"os161/serr"
	"os161/threadmgr"
	"os161/userbin"
	"os161/vm"
)

// Kernel owns the process table, the loader and physical memory. The
// kernel process (pid KPID) has no thread of its own: it is the parent
// of the programs the kernel runs, and callers of RunProgram and Wait
// act on its behalf.
type Kernel struct {
	Param *Param
	pm    *vm.Physmem
	pt    *proctab.Table
	tm    *threadmgr.ThreadMgrTable
	bl    *loader.BinLoader
	c     *lifecycle.Coord
	kproc *proctab.PCB
}

func NewKernel(param *Param) (*Kernel, error) {
	if param.Debug != "" {
		db.SetDebug(param.Debug)
	}
	if param.Config != nil {
		cfg := *config.Conf
		if err := config.Decode(&cfg, param.Config); err != nil {
			return nil, fmt.Errorf("config: %v", err)
		}
		config.Conf = &cfg
	}
	k := &Kernel{Param: param}
	k.pm = vm.NewPhysmem(param.Npages)
	k.pt = proctab.NewTable(config.Conf.Proc.MAX_PROCS, config.Conf.Proc.LOCK_DEBUG)
	k.tm = threadmgr.NewThreadMgrTable()
	k.bl = loader.NewBinLoader()
	userbin.Register(k.bl)
	k.c = lifecycle.NewCoord(k.pt, k.tm, k.bl, k.newAs, ksys.NewSys)
	kp, err := k.pt.AllocPid(proc.KPID, "kernel")
	if err != nil {
		return nil, err
	}
	kp.SetAs(k.newAs())
	k.kproc = kp
	db.DPrintf(db.KERNEL, "NewKernel %v", config.Conf)
	return k, nil
}

func (k *Kernel) newAs() vm.AddrSpace {
	return vm.NewMemAs(k.pm)
}

func (k *Kernel) Coord() *lifecycle.Coord {
	return k.c
}

func (k *Kernel) Table() *proctab.Table {
	return k.pt
}

func (k *Kernel) Threads() *threadmgr.ThreadMgrTable {
	return k.tm
}

func (k *Kernel) Loader() *loader.BinLoader {
	return k.bl
}

func (k *Kernel) Physmem() *vm.Physmem {
	return k.pm
}

func (k *Kernel) Kproc() *proctab.PCB {
	return k.kproc
}

// Boot runs the init program, if any, to completion.
func (k *Kernel) Boot() (proc.Tstatus, error) {
	if len(k.Param.Init) == 0 {
		return proc.MkWaitExit(0), nil
	}
	return k.RunProgram(k.Param.Init[0], k.Param.Init)
}

// Spawn starts path as a child of the kernel process.
func (k *Kernel) Spawn(path string, argv []string) (proc.Tpid, error) {
	return k.c.Spawn(k.kproc, path, argv)
}

func (k *Kernel) Wait(pid proc.Tpid) (proc.Tpid, proc.Tstatus, error) {
	return k.c.Wait(k.kproc, pid, 0)
}

// RunProgram runs path with argv and waits for it to exit.
func (k *Kernel) RunProgram(path string, argv []string) (proc.Tstatus, error) {
	pid, err := k.Spawn(path, argv)
	if err != nil {
		db.DPrintf(db.KERNEL_ERR, "RunProgram %v: %v", path, err)
		return 0, err
	}
	_, st, err := k.Wait(pid)
	if err != nil {
		return 0, err
	}
	db.DPrintf(db.KERNEL, "RunProgram %v %v: %v", path, argv, st)
	return st, nil
}

// Shutdown reaps the kernel's remaining children, waits for every
// thread to finish, and releases the kernel process.
func (k *Kernel) Shutdown() error {
	for {
		_, _, err := k.c.Wait(k.kproc, proc.WAIT_ANY, 0)
		if serr.IsErrCode(err, serr.TErrNoChild) {
			break
		}
		if err != nil {
			return err
		}
	}
	k.tm.Wait()
	as := k.kproc.SetAs(nil)
	as.Destroy()
	k.pt.Release(k.kproc)
	if n := k.pt.Npid(); n != 0 {
		return fmt.Errorf("Shutdown: %d pids still in use", n)
	}
	if n := k.pm.InUse(); n != 0 {
		return fmt.Errorf("Shutdown: %d pages still in use", n)
	}
	db.DPrintf(db.KERNEL, "Shutdown")
	return nil
}
