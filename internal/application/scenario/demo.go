package scenario

import (
	_ "embed"
)

//go:embed builtin/demo.yaml
var demoYAML []byte

// Demo returns the built-in demonstration scenario.
func Demo() (*File, error) {
	return Parse(demoYAML)
}

// DemoSource returns the YAML of the built-in scenario.
func DemoSource() []byte {
	out := make([]byte, len(demoYAML))
	copy(out, demoYAML)
	return out
}
