package proctab

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"

	db "os161/debug"
	"os161/ledger"
	"os161/proc"
	"os161/vm"
)

// PCB is the kernel's record of one process. mu and cond form the
// process's wait channel: they guard children, ledger and state, and
// waiters for this process's children sleep on cond. PCBs are recycled
// by the Table; mu and cond survive recycling so that a holder of a
// stale Ref can still lock and inspect the PCB safely.
type PCB struct {
	mu       sync.Locker
	cond     *sync.Cond
	gen      uint64
	pid      proc.Tpid
	name     string
	as       vm.AddrSpace // only touched by the process's own thread
	parent   atomic.Pointer[Ref]
	children map[proc.Tpid]*PCB
	ledger   *ledger.Ledger
	state    proc.Tstate
}

func (p *PCB) init(pid proc.Tpid, name string, lockDebug bool) {
	if p.mu == nil {
		if lockDebug {
			p.mu = &deadlock.Mutex{}
		} else {
			p.mu = &sync.Mutex{}
		}
		p.cond = sync.NewCond(p.mu)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.pid = pid
	p.name = name
	p.as = nil
	p.parent.Store(nil)
	p.children = make(map[proc.Tpid]*PCB)
	p.ledger = ledger.NewLedger()
	p.state = proc.Running
}

func (p *PCB) fini() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.as != nil {
		db.DFatalf("release %v with address space", p.pid)
	}
	if len(p.children) != 0 || p.ledger.Len() != 0 {
		db.DFatalf("release %v with children %d ledger %d", p.pid, len(p.children), p.ledger.Len())
	}
	p.gen++
	p.children = nil
	p.parent.Store(nil)
}

func (p *PCB) String() string {
	return fmt.Sprintf("{pid %v gen %d name %q}", p.pid, p.gen, p.name)
}

func (p *PCB) Pid() proc.Tpid {
	return p.pid
}

func (p *PCB) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *PCB) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *PCB) Lock() {
	p.mu.Lock()
}

func (p *PCB) Unlock() {
	p.mu.Unlock()
}

// Caller holds lock; it is released while asleep.
func (p *PCB) Wait() {
	p.cond.Wait()
}

func (p *PCB) Broadcast() {
	p.cond.Broadcast()
}

func (p *PCB) As() vm.AddrSpace {
	return p.as
}

// SetAs installs as and returns the previous address space.
func (p *PCB) SetAs(as vm.AddrSpace) vm.AddrSpace {
	old := p.as
	p.as = as
	return old
}

// Ref returns a weak reference to p as it is now.
func (p *PCB) Ref() *Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Ref{p: p, gen: p.gen, pid: p.pid}
}

func (p *PCB) Parent() *Ref {
	return p.parent.Load()
}

func (p *PCB) SetParent(r *Ref) {
	p.parent.Store(r)
}

// Caller holds lock
func (p *PCB) State() proc.Tstate {
	return p.state
}

// Caller holds lock
func (p *PCB) SetState(st proc.Tstate) {
	p.state = st
}

// Caller holds lock
func (p *PCB) Ledger() *ledger.Ledger {
	return p.ledger
}

// Caller holds lock
func (p *PCB) AddChild(c *PCB) {
	if _, ok := p.children[c.pid]; ok {
		db.DFatalf("AddChild: %v already a child of %v", c, p)
	}
	p.children[c.pid] = c
}

// Caller holds lock
func (p *PCB) RemoveChild(pid proc.Tpid) bool {
	if _, ok := p.children[pid]; !ok {
		return false
	}
	delete(p.children, pid)
	return true
}

// Caller holds lock
func (p *PCB) HasChild(pid proc.Tpid) bool {
	_, ok := p.children[pid]
	return ok
}

// Caller holds lock
func (p *PCB) Nchildren() int {
	return len(p.children)
}

// Caller holds lock
func (p *PCB) Children() []*PCB {
	cs := make([]*PCB, 0, len(p.children))
	for _, c := range p.children {
		cs = append(cs, c)
	}
	return cs
}

// A weak reference to a PCB: valid only while the PCB has the
// generation the reference was taken at and is still running.
type Ref struct {
	p   *PCB
	gen uint64
	pid proc.Tpid
}

func (r *Ref) PCB() *PCB {
	return r.p
}

func (r *Ref) Pid() proc.Tpid {
	return r.pid
}

func (r *Ref) String() string {
	return fmt.Sprintf("{ref pid %v gen %d}", r.pid, r.gen)
}

// Caller holds r.PCB()'s lock
func (r *Ref) Live() bool {
	return r.p.gen == r.gen && r.p.state == proc.Running
}
