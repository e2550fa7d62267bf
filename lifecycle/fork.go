package lifecycle

import (
	db "os161/debug"
	"os161/proc"
	"os161/proctab"
)

// Fork creates a child of p running in a copy of p's address space.
// The child's thread resumes at tf, where fork returns 0. Nothing
// about p changes if Fork fails.
func (c *Coord) Fork(p *proctab.PCB, tf *proc.Trapframe) (proc.Tpid, error) {
	child, err := c.pt.Alloc(p.Name())
	if err != nil {
		db.DPrintf(db.FORK_ERR, "Fork %v: %v", p.Pid(), err)
		return proc.NO_PID, err
	}
	as, err := p.As().Copy()
	if err != nil {
		db.DPrintf(db.FORK_ERR, "Fork %v: copy as: %v", p.Pid(), err)
		c.pt.Release(child)
		return proc.NO_PID, err
	}
	child.SetAs(as)
	c.link(p, child)
	db.DPrintf(db.FORK, "Fork %v -> %v", p.Pid(), child.Pid())
	c.start(child, tf.Resume)
	return child.Pid(), nil
}

// Spawn creates a child of p running path with argv from the start,
// i.e., fork followed by exec in the child, except that errors are
// reported to the caller.
func (c *Coord) Spawn(p *proctab.PCB, path string, argv []string) (proc.Tpid, error) {
	img, as, al, err := c.build(path, argv)
	if err != nil {
		db.DPrintf(db.FORK_ERR, "Spawn %v %v: %v", p.Pid(), path, err)
		return proc.NO_PID, err
	}
	child, err := c.pt.Alloc(path)
	if err != nil {
		as.Destroy()
		db.DPrintf(db.FORK_ERR, "Spawn %v %v: %v", p.Pid(), path, err)
		return proc.NO_PID, err
	}
	child.SetAs(as)
	c.link(p, child)
	db.DPrintf(db.FORK, "Spawn %v -> %v %v %v", p.Pid(), child.Pid(), path, argv)
	c.start(child, func(u proc.Usys) int {
		return img.Main(u, len(argv), uint64(al.Argv))
	})
	return child.Pid(), nil
}
