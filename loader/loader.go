// Package loader opens program images and maps them into fresh address
// spaces. Images are built into the kernel: each has a text blob that
// is copied into the address space and a Go entry function that the
// thread runs when control reaches the entry point.
package loader

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"os161/config"
	db "os161/debug"
	"os161/proc"
	"os161/serr"
	"os161/vm"
)

const NCACHE = 32

type Image struct {
	Path    string
	Text    []byte
	Main    proc.Tmain
	Corrupt bool // fails to load; for exercising exec's error path
}

func (img *Image) String() string {
	return fmt.Sprintf("{image %v text %d}", img.Path, len(img.Text))
}

type Loader interface {
	Open(path string) (*Image, error)
	Load(img *Image, as vm.AddrSpace) (vm.Tva, error)
}

// BinLoader serves images from an in-kernel registry, keeping recently
// opened ones in an LRU cache.
type BinLoader struct {
	sync.Mutex
	bins  map[string]*Image
	cache *lru.Cache[string, *Image]
	nopen int
}

func NewBinLoader() *BinLoader {
	c, err := lru.New[string, *Image](NCACHE)
	if err != nil {
		db.DFatalf("lru.New: %v", err)
	}
	return &BinLoader{
		bins:  make(map[string]*Image),
		cache: c,
	}
}

func (bl *BinLoader) Register(img *Image) {
	bl.Lock()
	defer bl.Unlock()

	if len(img.Text) == 0 {
		img.Text = []byte(img.Path)
	}
	bl.bins[img.Path] = img
	bl.cache.Remove(img.Path)
	db.DPrintf(db.LOADER, "Register %v", img)
}

func (bl *BinLoader) Unregister(path string) {
	bl.Lock()
	defer bl.Unlock()

	delete(bl.bins, path)
	bl.cache.Remove(path)
}

func (bl *BinLoader) Paths() []string {
	bl.Lock()
	defer bl.Unlock()

	ps := make([]string, 0, len(bl.bins))
	for p := range bl.bins {
		ps = append(ps, p)
	}
	return ps
}

func (bl *BinLoader) Open(path string) (*Image, error) {
	if img, ok := bl.cache.Get(path); ok {
		return img, nil
	}
	bl.Lock()
	defer bl.Unlock()

	bl.nopen++
	img, ok := bl.bins[path]
	if !ok {
		db.DPrintf(db.LOADER_ERR, "Open %v: not found", path)
		return nil, serr.NewErr(serr.TErrNotfound, path)
	}
	bl.cache.Add(path, img)
	return img, nil
}

// Number of opens that missed the cache.
func (bl *BinLoader) Nopen() int {
	bl.Lock()
	defer bl.Unlock()
	return bl.nopen
}

// Load maps img's text into as and returns the entry point.
func (bl *BinLoader) Load(img *Image, as vm.AddrSpace) (vm.Tva, error) {
	if img.Corrupt {
		return 0, serr.NewErr(serr.TErrNoExec, img.Path)
	}
	text := vm.Tva(config.Conf.VM.TEXT_BASE)
	if err := as.DefineRegion(text, uint64(len(img.Text)), false); err != nil {
		return 0, errors.Wrapf(err, "define text of %v", img.Path)
	}
	if err := as.Write(text, img.Text); err != nil {
		return 0, errors.Wrapf(err, "load text of %v", img.Path)
	}
	heap := vm.Tva(config.Conf.VM.HEAP_BASE)
	sz := uint64(config.Conf.VM.HEAP_PAGES * config.Conf.VM.PGSIZE)
	if err := as.DefineRegion(heap, sz, true); err != nil {
		return 0, errors.Wrapf(err, "define heap of %v", img.Path)
	}
	db.DPrintf(db.LOADER, "Load %v at %v", img, text)
	return text, nil
}
