package config

import (
	"io"
	"log"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	db "os161/debug"
)

// Default params
var defaults = `
proc:
  max_procs: 256
  lock_debug: false

exec:
  arg_max: 65536
  path_max: 1024
  max_args: 1024

vm:
  pgsize: 4096
  stack_pages: 18
  user_stack_top: 0x80000000
  text_base: 0x400000
  heap_base: 0x10000000
  heap_pages: 32
  max_pages: 4096
`

type Config struct {
	Proc struct {
		// Maximum number of pids in use (live processes plus unreaped exits).
		MAX_PROCS int `yaml:"max_procs" mapstructure:"max_procs"`
		// Use deadlock-detecting mutexes for process synchronizers.
		LOCK_DEBUG bool `yaml:"lock_debug" mapstructure:"lock_debug"`
	} `yaml:"proc" mapstructure:"proc"`
	Exec struct {
		// Maximum size of the argument block laid out on the user stack.
		ARG_MAX int `yaml:"arg_max" mapstructure:"arg_max"`
		// Maximum length of a program path, including the terminating NUL.
		PATH_MAX int `yaml:"path_max" mapstructure:"path_max"`
		// Maximum number of argv entries copied in from user space.
		MAX_ARGS int `yaml:"max_args" mapstructure:"max_args"`
	} `yaml:"exec" mapstructure:"exec"`
	VM struct {
		PGSIZE int `yaml:"pgsize" mapstructure:"pgsize"`
		// Number of pages in a user stack.
		STACK_PAGES int `yaml:"stack_pages" mapstructure:"stack_pages"`
		// First address above the user stack.
		USER_STACK_TOP uint64 `yaml:"user_stack_top" mapstructure:"user_stack_top"`
		// Where loaded program text starts.
		TEXT_BASE uint64 `yaml:"text_base" mapstructure:"text_base"`
		// Start of the writable data region every loaded image gets.
		HEAP_BASE uint64 `yaml:"heap_base" mapstructure:"heap_base"`
		HEAP_PAGES int    `yaml:"heap_pages" mapstructure:"heap_pages"`
		// Per-address-space page budget; exceeding it is out of memory.
		MAX_PAGES int `yaml:"max_pages" mapstructure:"max_pages"`
	} `yaml:"vm" mapstructure:"vm"`
}

var Conf *Config

func init() {
	Conf = ReadConfig(defaults)
}

func ReadConfig(params string) *Config {
	config := &Config{}
	d := yaml.NewDecoder(strings.NewReader(params))
	if err := d.Decode(&config); err != nil {
		log.Fatalf("Yalm decode %v err %v\n", params, err)
	}
	return config
}

// Load overlays params on top of the defaults and makes the result the
// current configuration.
func Load(params string) (*Config, error) {
	config := ReadConfig(defaults)
	d := yaml.NewDecoder(strings.NewReader(params))
	if err := d.Decode(config); err != nil && err != io.EOF {
		return nil, err
	}
	db.DPrintf(db.CONFIG, "Load %+v", config)
	Conf = config
	return config, nil
}

// Decode overlays a nested map of overrides (e.g., from boot params)
// on top of config.
func Decode(config *Config, m map[string]interface{}) error {
	return mapstructure.Decode(m, config)
}
