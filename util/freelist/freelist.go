package freelist

import (
	"fmt"
	"sync"
)

type Tstats struct {
	New   int // allocated fresh
	Reuse int // handed out again after Free
	Drop  int // freed while the list was full
}

func (st Tstats) String() string {
	return fmt.Sprintf("{new %d reuse %d drop %d}", st.New, st.Reuse, st.Drop)
}

// FreeList recycles up to sz objects of type T. An object handed out
// by New is either zeroed or exactly as it was passed to Free; the
// caller reinitializes what it needs.
type FreeList[T any] struct {
	mu    sync.Mutex
	free  []*T
	stats Tstats
}

func NewFreeList[T any](sz int) *FreeList[T] {
	return &FreeList[T]{free: make([]*T, 0, sz)}
}

func (fl *FreeList[T]) Len() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.free)
}

func (fl *FreeList[T]) Stats() Tstats {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.stats
}

func (fl *FreeList[T]) New() *T {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	n := len(fl.free)
	if n == 0 {
		fl.stats.New++
		return new(T)
	}
	e := fl.free[n-1]
	fl.free[n-1] = nil
	fl.free = fl.free[:n-1]
	fl.stats.Reuse++
	return e
}

func (fl *FreeList[T]) Free(e *T) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if len(fl.free) == cap(fl.free) {
		fl.stats.Drop++
		return
	}
	fl.free = append(fl.free, e)
}
