package vm

import (
	"fmt"
	"sync"

	"os161/config"
	db "os161/debug"
	"os161/serr"
)

type region struct {
	base     Tva
	sz       uint64
	writable bool
}

func (r *region) contains(va Tva, n uint64) bool {
	return va >= r.base && uint64(va-r.base)+n <= r.sz
}

// MemAs is an in-memory address space with lazily allocated pages.
type MemAs struct {
	sync.Mutex
	pm        *Physmem
	pgsize    uint64
	regions   []*region
	pages     map[Tva][]byte
	active    int
	destroyed bool
}

func NewMemAs(pm *Physmem) *MemAs {
	return &MemAs{
		pm:     pm,
		pgsize: uint64(config.Conf.VM.PGSIZE),
		pages:  make(map[Tva][]byte),
	}
}

func (as *MemAs) String() string {
	as.Lock()
	defer as.Unlock()
	return fmt.Sprintf("{nregion %d npage %d active %d}", len(as.regions), len(as.pages), as.active)
}

// Deep copy: the new space shares nothing with as.
func (as *MemAs) Copy() (AddrSpace, error) {
	as.Lock()
	defer as.Unlock()

	if as.destroyed {
		db.DFatalf("Copy of destroyed address space")
	}
	if err := as.pm.alloc(len(as.pages)); err != nil {
		return nil, err
	}
	n := NewMemAs(as.pm)
	n.pgsize = as.pgsize
	for _, r := range as.regions {
		nr := *r
		n.regions = append(n.regions, &nr)
	}
	for va, pg := range as.pages {
		npg := make([]byte, len(pg))
		copy(npg, pg)
		n.pages[va] = npg
	}
	db.DPrintf(db.VM, "Copy %d pages", len(n.pages))
	return n, nil
}

func (as *MemAs) Activate() {
	as.Lock()
	defer as.Unlock()

	if as.destroyed {
		db.DFatalf("Activate destroyed address space")
	}
	as.active++
}

func (as *MemAs) Deactivate() {
	as.Lock()
	defer as.Unlock()

	as.active--
	if as.active < 0 {
		db.DFatalf("Deactivate inactive address space")
	}
}

func (as *MemAs) IsActive() bool {
	as.Lock()
	defer as.Unlock()
	return as.active > 0
}

func (as *MemAs) IsDestroyed() bool {
	as.Lock()
	defer as.Unlock()
	return as.destroyed
}

// The space must have been deactivated by every thread that used it.
func (as *MemAs) Destroy() {
	as.Lock()
	defer as.Unlock()

	if as.destroyed {
		db.DFatalf("Double destroy of address space")
	}
	if as.active > 0 {
		db.DFatalf("Destroy of active address space (%d users)", as.active)
	}
	as.pm.free(len(as.pages))
	as.pages = nil
	as.regions = nil
	as.destroyed = true
}

func (as *MemAs) DefineRegion(va Tva, sz uint64, writable bool) error {
	as.Lock()
	defer as.Unlock()

	base := Tva(Rounddown(uint64(va), as.pgsize))
	sz = Roundup(sz+uint64(va-base), as.pgsize)
	for _, r := range as.regions {
		if base < r.base+Tva(r.sz) && r.base < base+Tva(sz) {
			return serr.NewErr(serr.TErrInval, fmt.Sprintf("region %v overlaps", va))
		}
	}
	as.regions = append(as.regions, &region{base, sz, writable})
	return nil
}

func (as *MemAs) DefineStack() (Tva, error) {
	top := Tva(config.Conf.VM.USER_STACK_TOP)
	sz := uint64(config.Conf.VM.STACK_PAGES) * as.pgsize
	if err := as.DefineRegion(top-Tva(sz), sz, true); err != nil {
		return 0, err
	}
	return top, nil
}

func (as *MemAs) lookup(va Tva, n uint64) *region {
	for _, r := range as.regions {
		if r.contains(va, n) {
			return r
		}
	}
	return nil
}

// Caller holds lock
func (as *MemAs) page(va Tva, alloc bool) ([]byte, error) {
	pva := Tva(Rounddown(uint64(va), as.pgsize))
	if pg, ok := as.pages[pva]; ok {
		return pg, nil
	}
	if !alloc {
		return nil, nil
	}
	if len(as.pages) >= config.Conf.VM.MAX_PAGES {
		return nil, serr.NewErr(serr.TErrNoMem, va)
	}
	if err := as.pm.alloc(1); err != nil {
		return nil, err
	}
	pg := make([]byte, as.pgsize)
	as.pages[pva] = pg
	return pg, nil
}

func (as *MemAs) Read(va Tva, n int) ([]byte, error) {
	as.Lock()
	defer as.Unlock()

	if as.destroyed || as.lookup(va, uint64(n)) == nil {
		return nil, serr.NewErr(serr.TErrFault, va)
	}
	b := make([]byte, 0, n)
	for len(b) < n {
		cur := va + Tva(len(b))
		off := uint64(cur) % as.pgsize
		m := min(uint64(n-len(b)), as.pgsize-off)
		pg, _ := as.page(cur, false)
		if pg == nil {
			b = append(b, make([]byte, m)...)
		} else {
			b = append(b, pg[off:off+m]...)
		}
	}
	return b, nil
}

// Kernel writes ignore region write protection (e.g., loading text).
func (as *MemAs) Write(va Tva, b []byte) error {
	as.Lock()
	defer as.Unlock()

	if as.destroyed || as.lookup(va, uint64(len(b))) == nil {
		return serr.NewErr(serr.TErrFault, va)
	}
	for i := 0; i < len(b); {
		cur := va + Tva(i)
		off := uint64(cur) % as.pgsize
		pg, err := as.page(cur, true)
		if err != nil {
			return err
		}
		i += copy(pg[off:], b[i:])
	}
	return nil
}

// Write on behalf of user code; honors region protection.
func (as *MemAs) UserWrite(va Tva, b []byte) error {
	as.Lock()
	r := as.lookup(va, uint64(len(b)))
	as.Unlock()
	if r == nil || !r.writable {
		return serr.NewErr(serr.TErrFault, va)
	}
	return as.Write(va, b)
}

func (as *MemAs) Npages() int {
	as.Lock()
	defer as.Unlock()
	return len(as.pages)
}
