package lifecycle

import (
	"fmt"

	db "os161/debug"
	"os161/proc"
	"os161/proctab"
	"os161/serr"
)

// CheckWaitOptions rejects wait options; none are supported.
func CheckWaitOptions(options int) error {
	if options != 0 {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("options %#x", options))
	}
	return nil
}

// Wait blocks until the child pid of q has exited and returns its pid
// and wait status, consuming its exit record. pid may be WAIT_ANY, in
// which case the child that exited first is returned.
func (c *Coord) Wait(q *proctab.PCB, pid proc.Tpid, options int) (proc.Tpid, proc.Tstatus, error) {
	if err := CheckWaitOptions(options); err != nil {
		db.DPrintf(db.WAIT_ERR, "Wait %v %v: %v", q.Pid(), pid, err)
		return proc.NO_PID, 0, err
	}
	if pid == q.Pid() {
		return proc.NO_PID, 0, serr.NewErr(serr.TErrNoChild, pid)
	}

	var rec proc.ExitRecord
	q.Lock()
	for {
		ok := false
		if pid == proc.WAIT_ANY {
			rec, ok = q.Ledger().TakeOldest()
			if !ok && q.Nchildren() == 0 {
				q.Unlock()
				return proc.NO_PID, 0, serr.NewErr(serr.TErrNoChild, "any")
			}
		} else {
			rec, ok = q.Ledger().Take(pid)
			if !ok && !q.HasChild(pid) {
				q.Unlock()
				db.DPrintf(db.WAIT_ERR, "Wait %v: %v not a child", q.Pid(), pid)
				return proc.NO_PID, 0, serr.NewErr(serr.TErrNoChild, pid)
			}
		}
		if ok {
			break
		}
		db.DPrintf(db.WAIT, "Wait %v: sleep for %v", q.Pid(), pid)
		q.Wait()
	}
	q.Unlock()

	c.pt.ReleasePid(rec.Pid)
	db.DPrintf(db.WAIT, "Wait %v: reaped %v", q.Pid(), &rec)
	return rec.Pid, rec.Status, nil
}
