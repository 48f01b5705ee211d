// Package backend defines the execution-mode token shared by the numeric
// kernels. The mode is a static configuration choice resolved once before a
// run; kernels that do not support a requested mode reject the configuration
// instead of silently degrading.
package backend

import "fmt"

// Mode selects a kernel implementation.
type Mode int

const (
	// Reference is the plain Go implementation, complete for every kernel.
	Reference Mode = iota
	// AcceleratedCompiled is the tight-loop implementation that trades
	// features for throughput (the trajectory variant skips sky coordinates).
	AcceleratedCompiled
	// AcceleratedNative is the preallocated chunked implementation with the
	// same feature set as AcceleratedCompiled.
	AcceleratedNative
)

var names = map[Mode]string{
	Reference:           "reference",
	AcceleratedCompiled: "accelerated-compiled",
	AcceleratedNative:   "accelerated-native",
}

func (m Mode) String() string {
	if s, ok := names[m]; ok {
		return s
	}
	return fmt.Sprintf("backend.Mode(%d)", int(m))
}

// Parse converts a token string to a Mode. Tokens are case-sensitive.
func Parse(s string) (Mode, error) {
	for m, name := range names {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown backend mode %q (want reference, accelerated-compiled, or accelerated-native)", s)
}

// Valid reports whether m is a defined mode.
func Valid(m Mode) bool {
	_, ok := names[m]
	return ok
}
