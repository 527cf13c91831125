// Package volume resolves the wildcard root specifiers into the mounted
// volumes that can be watched for changes.
package volume

import (
	"fmt"
	"os"
	"strings"
)

// Set names a wildcard selection of volumes.
type Set int

const (
	// All selects every mounted volume that supports change notification.
	All Set = iota
	// ExceptSystem is All without the volume hosting the OS installation.
	ExceptSystem
)

func (s Set) String() string {
	switch s {
	case All:
		return "all"
	case ExceptSystem:
		return "except-system"
	}
	return fmt.Sprintf("set(%d)", int(s))
}

// Enumerator resolves a Set into concrete roots. The guard depends on this
// interface so tests can substitute a fixed volume table.
type Enumerator interface {
	Resolve(set Set) ([]string, error)
}

// System enumerates the volumes of the running OS.
type System struct{}

// Resolve returns the roots selected by set, each with a trailing separator,
// in the order the OS reports them.
func (System) Resolve(set Set) ([]string, error) {
	return resolve(set)
}

// Resolve is System{}.Resolve.
func Resolve(set Set) ([]string, error) {
	return resolve(set)
}

func withSeparator(root string) string {
	if strings.HasSuffix(root, string(os.PathSeparator)) {
		return root
	}
	return root + string(os.PathSeparator)
}

func without(roots []string, system string) []string {
	out := roots[:0]
	for _, r := range roots {
		if r != system {
			out = append(out, r)
		}
	}
	return out
}
