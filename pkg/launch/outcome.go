package launch

import (
	"fmt"

	"github.com/systemboot/bootmgr/pkg/bootmgr"
)

// State is a step of a single launch.
//
//	Idle -> Resolving -> Loading -> Running -> Succeeded | Failed
//	           |            |
//	      Unresolvable  LoadFailed
//
// An image that never returns leaves the launch in Running for good.
type State int

const (
	Idle State = iota
	Resolving
	Loading
	Running
	Succeeded
	Failed
	Unresolvable
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Loading:
		return "loading"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Unresolvable:
		return "unresolvable"
	case LoadFailed:
		return "load failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s >= Succeeded
}

// Result is the outcome of transferring control to an image.
type Result int

const (
	// NotStarted means control was never transferred.
	NotStarted Result = iota
	// DidNotReturn means control was transferred and has not come back.
	// A caller only ever observes it from inside OnStateChange, since a
	// launch that does not return never completes.
	DidNotReturn
	// ReturnedSuccess means the image handed control back reporting success.
	ReturnedSuccess
	// ReturnedFailure means the image handed control back reporting
	// failure, or the transfer itself failed.
	ReturnedFailure
)

func (r Result) String() string {
	switch r {
	case NotStarted:
		return "not started"
	case DidNotReturn:
		return "did not return"
	case ReturnedSuccess:
		return "returned success"
	case ReturnedFailure:
		return "returned failure"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Outcome describes a launch.
type Outcome struct {
	Option *bootmgr.BootOption
	State  State
	Result Result
	// Exit is set once the image has handed control back.
	Exit Exit
}

func (o *Outcome) String() string {
	return fmt.Sprintf("%s: %s (%s)", o.Option, o.State, o.Result)
}
