package vm

import (
	"sync"

	db "os161/debug"
	"os161/serr"
)

// Physmem accounts for the physical pages backing all address spaces.
type Physmem struct {
	sync.Mutex
	npages int
	max    int
}

func NewPhysmem(max int) *Physmem {
	return &Physmem{max: max}
}

func (pm *Physmem) alloc(n int) error {
	pm.Lock()
	defer pm.Unlock()

	if pm.npages+n > pm.max {
		db.DPrintf(db.VM_ERR, "alloc %d pages: %d/%d in use", n, pm.npages, pm.max)
		return serr.NewErr(serr.TErrNoMem, "physmem")
	}
	pm.npages += n
	return nil
}

func (pm *Physmem) free(n int) {
	pm.Lock()
	defer pm.Unlock()

	pm.npages -= n
	if pm.npages < 0 {
		db.DFatalf("physmem: negative page count %d", pm.npages)
	}
}

func (pm *Physmem) InUse() int {
	pm.Lock()
	defer pm.Unlock()
	return pm.npages
}

func (pm *Physmem) SetMax(max int) {
	pm.Lock()
	defer pm.Unlock()
	pm.max = max
}
