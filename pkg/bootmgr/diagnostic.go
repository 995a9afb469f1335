package bootmgr

import "fmt"

// DiagnosticKind classifies a problem found while enumerating.
type DiagnosticKind int

const (
	// MalformedOption is a boot entry whose record failed to decode.
	MalformedOption DiagnosticKind = iota
	// DuplicateNumber is a boot entry whose number was already taken by a
	// lexically earlier variable name. The later entry is dropped.
	DuplicateNumber
	// UnreadableVariable is a variable the store failed to read for a
	// reason other than it not existing.
	UnreadableVariable
	// MalformedBootOrder is a BootOrder of odd length.
	MalformedBootOrder
	// MalformedBootNext is a BootNext that is not exactly one number.
	MalformedBootNext
)

func (k DiagnosticKind) String() string {
	switch k {
	case MalformedOption:
		return "malformed boot option"
	case DuplicateNumber:
		return "duplicate boot option number"
	case UnreadableVariable:
		return "unreadable variable"
	case MalformedBootOrder:
		return "malformed BootOrder"
	case MalformedBootNext:
		return "malformed BootNext"
	}
	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// Diagnostic is a non-fatal problem recorded by Enumerate.
type Diagnostic struct {
	Kind   DiagnosticKind
	Name   string
	Number uint16
	Err    error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %v", d.Name, d.Kind, d.Err)
}
