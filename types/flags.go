package types

import (
	"fmt"
	"strings"
)

// Flag is a mark altering how a test case is scheduled.
type Flag uint8

const (
	// FlagDisabled marks a test that is reported as disabled and never invoked.
	FlagDisabled Flag = 1 << iota
	// FlagNoParallel marks a test that runs on the serial executor.
	FlagNoParallel
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagDisabled, "disabled"},
	{FlagNoParallel, "no_parallel"},
}

func (f Flag) String() string {
	for _, fn := range flagNames {
		if fn.flag == f {
			return fn.name
		}
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// ParseFlag converts a flag name into a Flag.
func ParseFlag(name string) (Flag, error) {
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", name)
}

// Flags is a set of Flag values.
type Flags uint8

// NewFlags builds a set from individual flags.
func NewFlags(flags ...Flag) Flags {
	var fs Flags
	for _, f := range flags {
		fs = fs.With(f)
	}
	return fs
}

// Has reports whether f is part of the set.
func (fs Flags) Has(f Flag) bool {
	return fs&Flags(f) != 0
}

// With returns a copy of the set with f added.
func (fs Flags) With(f Flag) Flags {
	return fs | Flags(f)
}

func (fs Flags) String() string {
	var names []string
	for _, fn := range flagNames {
		if fs.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return "[" + strings.Join(names, ",") + "]"
}
