// Package recovery decides what happens when no boot option could take
// the machine over.
package recovery

// Recoverer handles a boot failure. message describes what failed.
type Recoverer interface {
	Recover(message string) error
}
