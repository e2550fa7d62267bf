package test

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"

	"os161/config"
	db "os161/debug"
	"os161/kernel"
)

//
// Boots an in-process kernel for a test. With --lockdebug, process
// synchronizers use deadlock-detecting mutexes.
//

var lockDebug bool
var maxProcs int

func init() {
	flag.BoolVar(&lockDebug, "lockdebug", false, "Deadlock-detecting PCB locks")
	flag.IntVar(&maxProcs, "maxprocs", 0, "Override proc.max_procs")
}

type Tstate struct {
	*kernel.Kernel
	T    *testing.T
	conf *config.Config
}

func NewTstate(t *testing.T) *Tstate {
	return NewTstateParam(t, kernel.NewParam())
}

// NewTstateConfig boots a kernel with YAML overrides of the default
// configuration, e.g. "exec:\n  arg_max: 128\n".
func NewTstateConfig(t *testing.T, yml string) *Tstate {
	old := config.Conf
	if _, err := config.Load(yml); err != nil {
		db.DFatalf("NewTstateConfig %q: %v", yml, err)
	}
	ts := NewTstateParam(t, kernel.NewParam())
	ts.conf = old
	return ts
}

func NewTstateParam(t *testing.T, param *kernel.Param) *Tstate {
	ts := &Tstate{T: t, conf: config.Conf}
	if lockDebug || maxProcs != 0 {
		if param.Config == nil {
			param.Config = make(map[string]interface{})
		}
		p := map[string]interface{}{"lock_debug": lockDebug}
		if maxProcs != 0 {
			p["max_procs"] = maxProcs
		}
		param.Config["proc"] = p
	}
	k, err := kernel.NewKernel(param)
	if err != nil {
		db.DFatalf("NewKernel: %v", err)
	}
	ts.Kernel = k
	db.DPrintf(db.TEST, "NewTstate %v", ts.T.Name())
	return ts
}

// Shutdown stops the kernel, checks that nothing leaked, and restores
// the configuration the test started with.
func (ts *Tstate) Shutdown() {
	db.DPrintf(db.TEST, "Shutdown")
	defer db.DPrintf(db.TEST, "Done Shutdown")
	err := ts.Kernel.Shutdown()
	assert.Nil(ts.T, err, "Shutdown")
	config.Conf = ts.conf
}
