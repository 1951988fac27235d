package catalog

import (
	"bytes"
	_ "embed"
)

//go:embed content.yml
var defaultContent []byte

// Default builds a fresh Registry from the embedded content.
func Default() (*Registry, error) {
	return Parse(bytes.NewReader(defaultContent))
}

// MustDefault is Default for program start-up and tests.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}
