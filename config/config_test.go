package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"os161/config"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, 65536, config.Conf.Exec.ARG_MAX)
	assert.Equal(t, uint64(0x80000000), config.Conf.VM.USER_STACK_TOP)
	assert.Equal(t, 4096, config.Conf.VM.PGSIZE)
}

func TestLoadOverlay(t *testing.T) {
	old := config.Conf
	defer func() { config.Conf = old }()

	c, err := config.Load("exec:\n  arg_max: 128\n")
	assert.Nil(t, err)
	assert.Equal(t, 128, c.Exec.ARG_MAX)
	assert.Equal(t, 1024, c.Exec.PATH_MAX, "untouched field keeps default")
	assert.Equal(t, c, config.Conf)
}

func TestDecode(t *testing.T) {
	old := config.Conf
	defer func() { config.Conf = old }()

	c, err := config.Load("")
	assert.Nil(t, err)
	err = config.Decode(c, map[string]interface{}{
		"proc": map[string]interface{}{"max_procs": 4},
	})
	assert.Nil(t, err)
	assert.Equal(t, 4, c.Proc.MAX_PROCS)
	assert.Equal(t, 4096, c.VM.PGSIZE)
}
