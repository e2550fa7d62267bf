package lifecycle

import (
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"

	"os161/config"
	db "os161/debug"
	"os161/serr"
	"os161/vm"
)

// ArgLayout describes the argument block exec places at the top of a
// new user stack. Strings sit just below the stack top, argv[0]
// highest, each NUL-terminated and padded to a pointer boundary;
// below them the argv pointer array (argc entries and a NULL), whose
// address is both the argv passed to the program and its initial stack
// pointer.
type ArgLayout struct {
	Top  vm.Tva
	Argv vm.Tva
	Strs []vm.Tva
}

func (al *ArgLayout) String() string {
	return fmt.Sprintf("{top %v argv %v argc %d}", al.Top, al.Argv, len(al.Strs))
}

func (al *ArgLayout) Size() uint64 {
	return uint64(al.Top - al.Argv)
}

// NewArgLayout computes the layout of argv below top. It fails with
// TErrTooBig if the block would exceed max bytes.
func NewArgLayout(top vm.Tva, argv []string, max int) (*ArgLayout, error) {
	al := &ArgLayout{Top: top, Strs: make([]vm.Tva, len(argv))}
	sp := uint64(top)
	for i, s := range argv {
		sz := vm.Roundup(uint64(len(s)+1), vm.PTRSZ)
		if sz > sp {
			return nil, serr.NewErr(serr.TErrTooBig, "argv")
		}
		sp -= sz
		al.Strs[i] = vm.Tva(sp)
	}
	ptrs := uint64(len(argv)+1) * vm.PTRSZ
	if ptrs > sp {
		return nil, serr.NewErr(serr.TErrTooBig, "argv")
	}
	al.Argv = vm.Tva(sp - ptrs)
	if al.Size() > uint64(max) {
		db.DPrintf(db.EXEC_ERR, "args need %v, limit %v", humanize.IBytes(al.Size()), humanize.IBytes(uint64(max)))
		return nil, serr.NewErr(serr.TErrTooBig, fmt.Sprintf("args %d bytes", al.Size()))
	}
	return al, nil
}

// Bytes renders the block for argv, starting at al.Argv.
func (al *ArgLayout) Bytes(argv []string) []byte {
	b := make([]byte, al.Size())
	for i, s := range argv {
		binary.LittleEndian.PutUint64(b[i*vm.PTRSZ:], uint64(al.Strs[i]))
		copy(b[al.Strs[i]-al.Argv:], s)
	}
	return b
}

// Copyout writes the block for argv into as.
func (al *ArgLayout) Copyout(as vm.AddrSpace, argv []string) error {
	return as.Write(al.Argv, al.Bytes(argv))
}

func stackLimit() int {
	lim := config.Conf.Exec.ARG_MAX
	if stk := config.Conf.VM.STACK_PAGES * config.Conf.VM.PGSIZE; stk < lim {
		lim = stk
	}
	return lim
}
