package kernel

import (
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Boot parameters, read from a YAML file.
type Param struct {
	// Program to run at boot, with its argv; none if empty.
	Init []string `yaml:"init"`
	// Debug selectors to enable, e.g. "EXIT;WAIT".
	Debug string `yaml:"debug"`
	// Physical memory, in pages.
	Npages int `yaml:"npages"`
	// Overrides of the kernel configuration, e.g. {proc: {max_procs: 16}}.
	Config map[string]interface{} `yaml:"config"`
}

const NPAGES = 1 << 16

func NewParam() *Param {
	return &Param{Npages: NPAGES}
}

func ReadParam(pn string) (*Param, error) {
	file, err := os.Open(pn)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return decodeParam(file)
}

func ParseParam(s string) (*Param, error) {
	return decodeParam(strings.NewReader(s))
}

func decodeParam(r io.Reader) (*Param, error) {
	param := NewParam()
	d := yaml.NewDecoder(r)
	if err := d.Decode(param); err != nil && err != io.EOF {
		return nil, err
	}
	return param, nil
}
