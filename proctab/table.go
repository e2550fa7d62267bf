package proctab

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	"golang.org/x/exp/slices"

	db "os161/debug"
	"os161/proc"
	"os161/serr"
	"os161/util/freelist"
	"os161/util/refmap"
)

const NFREE = 64

// Table is the arena of PCBs and the pid allocator. A pid is
// reference counted: its live PCB holds one reference and a pending
// exit record in the parent's ledger holds another. The pid becomes
// free for reuse when both are gone.
//
// Table methods must not be called with a PCB lock held.
type Table struct {
	sync.Mutex
	max       int
	lockDebug bool
	next      proc.Tpid
	free      *btree.BTreeG[proc.Tpid]
	pids      *refmap.RefTable[proc.Tpid, string]
	live      map[proc.Tpid]*PCB
	pcbs      *freelist.FreeList[PCB]
}

func NewTable(max int, lockDebug bool) *Table {
	return &Table{
		max:       max,
		lockDebug: lockDebug,
		next:      proc.PID_MIN,
		free:      btree.NewOrderedG[proc.Tpid](8),
		pids:      refmap.NewRefTable[proc.Tpid, string](db.PROCTAB),
		live:      make(map[proc.Tpid]*PCB),
		pcbs:      freelist.NewFreeList[PCB](NFREE),
	}
}

// Caller holds lock
func (pt *Table) allocPid() (proc.Tpid, bool) {
	if pt.pids.Len() >= pt.max {
		return proc.NO_PID, false
	}
	if pid, ok := pt.free.DeleteMin(); ok {
		return pid, true
	}
	pid := pt.next
	pt.next++
	return pid, true
}

// Caller holds lock
func (pt *Table) newPCB(pid proc.Tpid, name string) *PCB {
	pt.pids.Acquire(pid, func() string { return name })
	p := pt.pcbs.New()
	p.init(pid, name, pt.lockDebug)
	pt.live[pid] = p
	db.DPrintf(db.PROCTAB, "Alloc %v", p)
	return p
}

// Alloc creates a running PCB with a fresh pid.
func (pt *Table) Alloc(name string) (*PCB, error) {
	pt.Lock()
	defer pt.Unlock()

	pid, ok := pt.allocPid()
	if !ok {
		db.DPrintf(db.PROCTAB_ERR, "Alloc %v: %d pids in use", name, pt.pids.Len())
		return nil, serr.NewErr(serr.TErrProcLimit, name)
	}
	return pt.newPCB(pid, name), nil
}

// AllocPid creates a PCB with a reserved pid, e.g., the kernel process.
func (pt *Table) AllocPid(pid proc.Tpid, name string) (*PCB, error) {
	pt.Lock()
	defer pt.Unlock()

	if pid >= proc.PID_MIN {
		return nil, serr.NewErr(serr.TErrInval, fmt.Sprintf("pid %v not reserved", pid))
	}
	if _, ok := pt.pids.Lookup(pid); ok {
		return nil, serr.NewErr(serr.TErrInval, fmt.Sprintf("pid %v in use", pid))
	}
	return pt.newPCB(pid, name), nil
}

func (pt *Table) Lookup(pid proc.Tpid) (*PCB, bool) {
	pt.Lock()
	defer pt.Unlock()
	p, ok := pt.live[pid]
	return p, ok
}

// Caller holds lock
func (pt *Table) putPid(pid proc.Tpid) {
	del, err := pt.pids.Release(pid)
	if err != nil {
		db.DFatalf("putPid %v: %v", pid, err)
	}
	if del && pid >= proc.PID_MIN {
		pt.free.ReplaceOrInsert(pid)
		db.DPrintf(db.PROCTAB, "free pid %v", pid)
	}
}

// HoldPid takes an extra reference to a live process's pid on behalf
// of an exit record.
func (pt *Table) HoldPid(pid proc.Tpid) {
	pt.Lock()
	defer pt.Unlock()

	if _, ok := pt.live[pid]; !ok {
		db.DFatalf("HoldPid: %v not live", pid)
	}
	pt.pids.Acquire(pid, func() string { return "" })
}

// ReleasePid drops a reference taken by HoldPid, e.g., when wait
// consumes the exit record.
func (pt *Table) ReleasePid(pid proc.Tpid) {
	pt.Lock()
	defer pt.Unlock()
	pt.putPid(pid)
}

// Release returns p to the arena and drops the PCB's pid reference.
func (pt *Table) Release(p *PCB) {
	pid := p.pid
	p.fini()

	pt.Lock()
	defer pt.Unlock()

	if pt.live[pid] != p {
		db.DFatalf("Release: %v not live", pid)
	}
	delete(pt.live, pid)
	pt.putPid(pid)
	pt.pcbs.Free(p)
	db.DPrintf(db.PROCTAB, "Release %v", pid)
}

// A zombie's pid is still referenced by an exit record but its PCB is
// gone.
func (pt *Table) IsZombie(pid proc.Tpid) bool {
	pt.Lock()
	defer pt.Unlock()
	_, ok := pt.pids.Lookup(pid)
	_, live := pt.live[pid]
	return ok && !live
}

func (pt *Table) Nproc() int {
	pt.Lock()
	defer pt.Unlock()
	return len(pt.live)
}

func (pt *Table) Nzombie() int {
	pt.Lock()
	defer pt.Unlock()
	return pt.pids.Len() - len(pt.live)
}

// Number of pids in use, live or not.
func (pt *Table) Npid() int {
	pt.Lock()
	defer pt.Unlock()
	return pt.pids.Len()
}

type ProcInfo struct {
	Pid       proc.Tpid
	Name      string
	State     proc.Tstate
	Parent    proc.Tpid
	Nchildren int
	Nledger   int
}

func (pi ProcInfo) String() string {
	return fmt.Sprintf("%5v %5v %-8v %3d %3d %v", pi.Pid, pi.Parent, pi.State, pi.Nchildren, pi.Nledger, pi.Name)
}

// Snapshot describes the live processes in pid order.
func (pt *Table) Snapshot() []ProcInfo {
	pt.Lock()
	pcbs := make([]*PCB, 0, len(pt.live))
	for _, p := range pt.live {
		pcbs = append(pcbs, p)
	}
	pt.Unlock()

	pis := make([]ProcInfo, 0, len(pcbs))
	for _, p := range pcbs {
		p.Lock()
		if p.children == nil {
			// released since we looked
			p.Unlock()
			continue
		}
		pi := ProcInfo{
			Pid:       p.pid,
			Name:      p.name,
			State:     p.state,
			Nchildren: len(p.children),
			Nledger:   p.ledger.Len(),
		}
		if r := p.Parent(); r != nil {
			pi.Parent = r.pid
		}
		p.Unlock()
		pis = append(pis, pi)
	}
	slices.SortFunc(pis, func(a, b ProcInfo) int {
		return int(a.Pid - b.Pid)
	})
	return pis
}

// Recycling statistics of the PCB arena.
func (pt *Table) ArenaStats() freelist.Tstats {
	return pt.pcbs.Stats()
}
