// Package vm models the address-space subsystem the process lifecycle
// code depends on: create, copy, activate, deactivate and destroy, plus
// the user/kernel copy primitives.
package vm

import (
	"fmt"
)

type Tva uint64

func (va Tva) String() string {
	return fmt.Sprintf("%#x", uint64(va))
}

// AddrSpace is owned by exactly one process and destroyed exactly
// once. Read and Write fault on addresses outside defined regions.
type AddrSpace interface {
	Copy() (AddrSpace, error)
	Activate()
	Deactivate()
	Destroy()
	DefineRegion(va Tva, sz uint64, writable bool) error
	DefineStack() (Tva, error)
	Read(va Tva, n int) ([]byte, error)
	Write(va Tva, b []byte) error
}

func Roundup(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

func Rounddown(n, align uint64) uint64 {
	return n &^ (align - 1)
}
