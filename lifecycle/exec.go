package lifecycle

import (
	"fmt"

	"os161/config"
	db "os161/debug"
	"os161/loader"
	"os161/proctab"
	"os161/serr"
	"os161/threadmgr"
	"os161/vm"
)

// build prepares a new image for path: a fresh address space with the
// program loaded and argv laid out on its stack. The argument block
// is sized before anything is allocated or written. On error nothing
// is left allocated.
func (c *Coord) build(path string, argv []string) (*loader.Image, vm.AddrSpace, *ArgLayout, error) {
	if len(path)+1 > config.Conf.Exec.PATH_MAX {
		return nil, nil, nil, serr.NewErr(serr.TErrNameTooLong, fmt.Sprintf("path %d bytes", len(path)))
	}
	al, err := NewArgLayout(vm.Tva(config.Conf.VM.USER_STACK_TOP), argv, stackLimit())
	if err != nil {
		return nil, nil, nil, err
	}
	img, err := c.ld.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	as := c.newAs()
	if _, err := c.ld.Load(img, as); err != nil {
		as.Destroy()
		return nil, nil, nil, err
	}
	top, err := as.DefineStack()
	if err != nil {
		as.Destroy()
		return nil, nil, nil, err
	}
	if top != al.Top {
		db.DFatalf("stack top %v, args laid out for %v", top, al.Top)
	}
	if err := al.Copyout(as, argv); err != nil {
		as.Destroy()
		return nil, nil, nil, err
	}
	db.DPrintf(db.EXEC, "build %v %v", img, al)
	return img, as, al, nil
}

// Exec replaces p's image with path, started with argv. p must be
// running on t, with its address space active. On success Exec does
// not return: the new program runs on t and its return value is p's
// exit code. On failure p's old image is untouched.
func (c *Coord) Exec(p *proctab.PCB, t *threadmgr.Thread, path string, argv []string) error {
	img, as, al, err := c.build(path, argv)
	if err != nil {
		db.DPrintf(db.EXEC_ERR, "Exec %v %v: %v", p.Pid(), path, err)
		return err
	}

	old := p.SetAs(as)
	old.Deactivate()
	as.Activate()
	old.Destroy()
	p.SetName(path)
	t.SetName(path)
	db.DPrintf(db.EXEC, "Exec %v %v %v", p.Pid(), path, argv)

	code := img.Main(c.newUsys(c, p, t), len(argv), uint64(al.Argv))
	c.Exit(p, t, code)
	return nil
}
