// Package lifecycle implements the process lifecycle: fork, spawn,
// exit, wait and exec. Each process has one kernel thread; all
// coordination between a parent and its children goes through the
// parent's PCB lock and condition variable.
//
// No process table method is called with a PCB lock held, and no
// thread holds two PCB locks at once.
package lifecycle

import (
	db "os161/debug"
	"os161/loader"
	"os161/proc"
	"os161/proctab"
	"os161/threadmgr"
	"os161/vm"
)

// Builds the syscall interface user code running as p on t sees.
type NewUsysFn func(c *Coord, p *proctab.PCB, t *threadmgr.Thread) proc.Usys

type NewAsFn func() vm.AddrSpace

type Coord struct {
	pt      *proctab.Table
	tm      *threadmgr.ThreadMgrTable
	ld      loader.Loader
	newAs   NewAsFn
	newUsys NewUsysFn
}

func NewCoord(pt *proctab.Table, tm *threadmgr.ThreadMgrTable, ld loader.Loader, newAs NewAsFn, newUsys NewUsysFn) *Coord {
	return &Coord{
		pt:      pt,
		tm:      tm,
		ld:      ld,
		newAs:   newAs,
		newUsys: newUsys,
	}
}

func (c *Coord) Table() *proctab.Table {
	return c.pt
}

func (c *Coord) Threads() *threadmgr.ThreadMgrTable {
	return c.tm
}

func (c *Coord) Getpid(p *proctab.PCB) proc.Tpid {
	return p.Pid()
}

// link makes child a child of p. Caller must not hold p's lock.
func (c *Coord) link(p, child *proctab.PCB) {
	child.SetParent(p.Ref())
	p.Lock()
	p.AddChild(child)
	p.Unlock()
	db.DPrintf(db.PROC, "link %v -> %v", child.Pid(), p.Pid())
}

// start runs fn on a fresh thread executing as p, with p's address
// space active.
func (c *Coord) start(p *proctab.PCB, fn func(u proc.Usys) int) {
	c.tm.AddThread(p.Name(), p, func(t *threadmgr.Thread) {
		p.As().Activate()
		code := fn(c.newUsys(c, p, t))
		c.Exit(p, t, code)
	})
}
