package ledger

import (
	"fmt"

	"github.com/google/btree"

	db "os161/debug"
	"os161/proc"
)

//
// Pending exit records of one process's children, in the order the
// children exited. The caller is responsible for concurrency control
// (the owning PCB's synchronizer).
//

type entry struct {
	seq uint64
	rec proc.ExitRecord
}

func less(a, b *entry) bool {
	return a.seq < b.seq
}

type Ledger struct {
	seq   uint64
	order *btree.BTreeG[*entry]
	bypid map[proc.Tpid]*entry
}

func NewLedger() *Ledger {
	return &Ledger{
		order: btree.NewG[*entry](8, less),
		bypid: make(map[proc.Tpid]*entry),
	}
}

func (l *Ledger) String() string {
	return fmt.Sprintf("{ledger %v}", l.Pids())
}

// Exactly one record per exited, unreaped child.
func (l *Ledger) Put(rec proc.ExitRecord) {
	if _, ok := l.bypid[rec.Pid]; ok {
		db.DFatalf("Put: duplicate exit record for %v", rec.Pid)
	}
	l.seq++
	e := &entry{seq: l.seq, rec: rec}
	l.order.ReplaceOrInsert(e)
	l.bypid[rec.Pid] = e
	db.DPrintf(db.LEDGER, "Put %v seq %d", &rec, e.seq)
}

func (l *Ledger) Has(pid proc.Tpid) bool {
	_, ok := l.bypid[pid]
	return ok
}

// Take removes the record for pid, so it is delivered at most once.
func (l *Ledger) Take(pid proc.Tpid) (proc.ExitRecord, bool) {
	e, ok := l.bypid[pid]
	if !ok {
		return proc.ExitRecord{}, false
	}
	l.remove(e)
	return e.rec, true
}

func (l *Ledger) TakeOldest() (proc.ExitRecord, bool) {
	e, ok := l.order.Min()
	if !ok {
		return proc.ExitRecord{}, false
	}
	l.remove(e)
	return e.rec, true
}

func (l *Ledger) remove(e *entry) {
	l.order.Delete(e)
	delete(l.bypid, e.rec.Pid)
	db.DPrintf(db.LEDGER, "Take %v seq %d", &e.rec, e.seq)
}

func (l *Ledger) Len() int {
	return len(l.bypid)
}

// Pids in exit order.
func (l *Ledger) Pids() []proc.Tpid {
	pids := make([]proc.Tpid, 0, l.order.Len())
	l.order.Ascend(func(e *entry) bool {
		pids = append(pids, e.rec.Pid)
		return true
	})
	return pids
}

// Drain removes all records, e.g., when the owner exits without
// reaping its children.
func (l *Ledger) Drain() []proc.ExitRecord {
	recs := make([]proc.ExitRecord, 0, l.Len())
	for {
		rec, ok := l.TakeOldest()
		if !ok {
			return recs
		}
		recs = append(recs, rec)
	}
}
