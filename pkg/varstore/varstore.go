// Package varstore is the boot manager's view of persistent boot
// configuration: a read-only key/value store addressed by variable name.
package varstore

import (
	"errors"
)

// ErrNotFound is returned by Read when the variable does not exist.
var ErrNotFound = errors.New("variable not found")

// Store is a source of boot variables.
type Store interface {
	// Read returns the contents of the named variable, or ErrNotFound.
	Read(name string) ([]byte, error)
	// BootEntryNames lists the names of all BootXXXX variables. The order
	// is unspecified.
	BootEntryNames() ([]string, error)
}
