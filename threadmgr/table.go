package threadmgr

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	db "os161/debug"
)

type ThreadFn func(t *Thread)

// A kernel thread: one goroutine executing on behalf of at most one
// process.
type Thread struct {
	mu   sync.Mutex
	id   uint64
	name string
	proc interface{}
}

func (t *Thread) String() string {
	return fmt.Sprintf("{thread %d %v}", t.id, t.name)
}

func (t *Thread) Id() uint64 {
	return t.id
}

func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

func (t *Thread) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

func (t *Thread) Proc() interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc
}

func (t *Thread) Attach(p interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.proc = p
}

// Detach unbinds t from its process; the process may be released after.
func (t *Thread) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.proc = nil
}

type ThreadMgrTable struct {
	sync.Mutex
	wg      sync.WaitGroup
	nextid  uint64
	threads map[*Thread]bool
}

func NewThreadMgrTable() *ThreadMgrTable {
	tm := &ThreadMgrTable{}
	tm.threads = make(map[*Thread]bool)
	return tm
}

// AddThread starts fn on a new thread bound to p.
func (tm *ThreadMgrTable) AddThread(name string, p interface{}, fn ThreadFn) *Thread {
	tm.Lock()
	tm.nextid++
	t := &Thread{id: tm.nextid, name: name, proc: p}
	tm.threads[t] = true
	tm.wg.Add(1)
	tm.Unlock()

	db.DPrintf(db.THREAD, "AddThread %v", t)
	go func() {
		defer tm.removeThread(t)
		fn(t)
	}()
	return t
}

func (tm *ThreadMgrTable) removeThread(t *Thread) {
	tm.Lock()
	defer tm.Unlock()

	if p := t.Proc(); p != nil {
		db.DFatalf("thread %v exits still attached to %v", t, p)
	}
	delete(tm.threads, t)
	tm.wg.Done()
	db.DPrintf(db.THREAD, "RemoveThread %v", t)
}

// Exit ends the calling thread. It must be called on a thread started
// by AddThread; it never returns.
func Exit() {
	runtime.Goexit()
}

// Wait blocks until every thread has exited.
func (tm *ThreadMgrTable) Wait() {
	tm.wg.Wait()
}

func (tm *ThreadMgrTable) Nthread() int {
	tm.Lock()
	defer tm.Unlock()
	return len(tm.threads)
}

func (tm *ThreadMgrTable) Snapshot() []byte {
	tm.Lock()
	names := make(map[uint64]string, len(tm.threads))
	for t := range tm.threads {
		names[t.id] = t.Name()
	}
	tm.Unlock()
	b, err := json.Marshal(names)
	if err != nil {
		db.DFatalf("Error snapshot encoding thread table: %v", err)
	}
	return b
}
