package lifecycle

import (
	db "os161/debug"
	"os161/proc"
	"os161/proctab"
	"os161/threadmgr"
)

// Exit terminates p, which runs on t, with exit code code. It never
// returns.
func (c *Coord) Exit(p *proctab.PCB, t *threadmgr.Thread, code int) {
	c.exit(p, t, proc.MkWaitExit(code))
	threadmgr.Exit()
}

func (c *Coord) exit(p *proctab.PCB, t *threadmgr.Thread, status proc.Tstatus) {
	pid := p.Pid()
	db.DPrintf(db.EXIT, "Exit %v %v", pid, status)

	// Orphan the children and drop the records of unreaped ones.
	p.Lock()
	p.SetState(proc.Exited)
	for _, ch := range p.Children() {
		ch.SetParent(nil)
		p.RemoveChild(ch.Pid())
	}
	recs := p.Ledger().Drain()
	p.Unlock()
	for _, rec := range recs {
		db.DPrintf(db.EXIT, "Exit %v: drop %v", pid, &rec)
		c.pt.ReleasePid(rec.Pid)
	}

	c.notifyParent(p, status)

	as := p.SetAs(nil)
	as.Deactivate()
	as.Destroy()

	t.Detach()
	c.pt.Release(p)
	db.DPrintf(db.EXIT, "Exit %v done", pid)
}

// notifyParent leaves an exit record with p's parent, if p still has a
// live one.
func (c *Coord) notifyParent(p *proctab.PCB, status proc.Tstatus) {
	r := p.Parent()
	if r == nil {
		db.DPrintf(db.EXIT, "Exit %v: orphan", p.Pid())
		return
	}
	// The record keeps p's pid allocated until it is waited for.
	c.pt.HoldPid(p.Pid())

	q := r.PCB()
	q.Lock()
	if !r.Live() || p.Parent() != r {
		q.Unlock()
		db.DPrintf(db.EXIT, "Exit %v: parent %v gone", p.Pid(), r)
		c.pt.ReleasePid(p.Pid())
		return
	}
	if !q.RemoveChild(p.Pid()) {
		db.DFatalf("Exit %v: not a child of %v", p.Pid(), q.Pid())
	}
	q.Ledger().Put(proc.ExitRecord{Pid: p.Pid(), Status: status})
	q.Broadcast()
	q.Unlock()
}
