package refmap

import (
	"fmt"

	db "os161/debug"
)

//
// Reference-counted map from K to T: an entry exists while it has at
// least one holder. The process table keeps a pid's entry while its
// PCB or a pending exit record holds it. The caller is responsible for
// concurrency control.
//

type entry[T any] struct {
	n int
	v T
}

type RefTable[K comparable, T any] struct {
	debug db.Tselector
	refs  map[K]*entry[T]
}

func NewRefTable[K comparable, T any](debug db.Tselector) *RefTable[K, T] {
	return &RefTable[K, T]{
		debug: debug + db.REFMAP_SUFFIX,
		refs:  make(map[K]*entry[T]),
	}
}

func (rf *RefTable[K, T]) String() string {
	return fmt.Sprintf("{refmap %d entries}", len(rf.refs))
}

func (rf *RefTable[K, T]) Len() int {
	return len(rf.refs)
}

func (rf *RefTable[K, T]) Refcnt(k K) int {
	if e, ok := rf.refs[k]; ok {
		return e.n
	}
	return 0
}

func (rf *RefTable[K, T]) Lookup(k K) (T, bool) {
	if e, ok := rf.refs[k]; ok {
		return e.v, true
	}
	var v T
	return v, false
}

// Acquire takes a reference to k, creating its entry with mk if k has
// none. Reports whether the entry already existed.
func (rf *RefTable[K, T]) Acquire(k K, mk func() T) (T, bool) {
	e, ok := rf.refs[k]
	if !ok {
		e = &entry[T]{v: mk()}
		rf.refs[k] = e
	}
	e.n++
	db.DPrintf(rf.debug, "acquire %v n %d", k, e.n)
	return e.v, ok
}

// Release drops a reference to k, removing the entry with the last
// one. Reports whether the entry is gone.
func (rf *RefTable[K, T]) Release(k K) (bool, error) {
	e, ok := rf.refs[k]
	if !ok {
		return false, fmt.Errorf("release %v: no entry", k)
	}
	e.n--
	db.DPrintf(rf.debug, "release %v n %d", k, e.n)
	if e.n > 0 {
		return false, nil
	}
	delete(rf.refs, k)
	return true, nil
}
