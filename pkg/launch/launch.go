// Package launch hands control to a boot option: it resolves the option's
// device path to a file, loads that file as an executable image and starts
// it, then reports what happened.
//
// Starting an image is not an ordinary call. An operating system loader
// takes the machine over and never returns; a utility may run and hand
// control back, successfully or not. Controller models all three outcomes
// and never tries a different option on its own: what to do after a failure
// is the caller's decision.
package launch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/systemboot/bootmgr/pkg/bootmgr"
)

var (
	// ErrDevicePathUnresolvable means the option's target could not be
	// found, e.g. because the disk it lives on was removed.
	ErrDevicePathUnresolvable = errors.New("device path unresolvable")
	// ErrLoadImage means the target was found but could not be loaded.
	ErrLoadImage = errors.New("load image failure")
	// ErrReturnedFailure means the image ran and handed control back
	// reporting failure.
	ErrReturnedFailure = errors.New("image returned failure")
	// ErrUnsupportedImage is the load failure for files that are neither a
	// kernel nor an executable this platform can run.
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Target is a resolved device path.
type Target struct {
	// Root is the directory the target's filesystem is mounted on.
	Root string
	// Path is the absolute path of the file to load, inside Root.
	Path string

	release func() error
}

// NewTarget returns a Target whose Release calls release, which may be nil.
func NewTarget(root, path string, release func() error) *Target {
	return &Target{Root: root, Path: path, release: release}
}

// Release gives back whatever resolving acquired, e.g. a mount. It is safe
// to call more than once.
func (t *Target) Release() error {
	if t.release == nil {
		return nil
	}
	release := t.release
	t.release = nil
	return release()
}

// Resolver maps a packed device path to a Target. On failure it must leave
// nothing acquired behind.
type Resolver interface {
	Resolve(devicePath []byte) (*Target, error)
}

// Loader turns a Target into a runnable Image, handing it the option's
// optional data unmodified. On failure it must leave nothing acquired
// behind. The returned Image must not depend on the Target staying
// available.
//
// ImageLoader gives kernels the optional data as their command line. An
// executable gets the raw bytes on file descriptor OptionalDataFD, and
// also gets them split into arguments when they read as text.
type Loader interface {
	Load(target *Target, optionalData []byte) (Image, error)
}

// Image is a loaded, ready to run boot target.
type Image interface {
	// Start transfers control to the image. Images that take over the
	// machine never return from Start.
	Start() (Exit, error)
	// Unload releases the loaded image. Called once Start has returned.
	Unload() error
}

// Exit is what an image reported when it handed control back.
type Exit struct {
	Status int
	Data   []byte
}

// Measurer records the option about to be started, e.g. into a TPM.
type Measurer interface {
	Measure(opt *bootmgr.BootOption) error
}

// Controller launches boot options. The zero value is not usable; Resolver
// and Loader are required.
type Controller struct {
	Resolver Resolver
	Loader   Loader
	// Measurer is optional. Measurement failures are logged, not fatal.
	Measurer Measurer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnStateChange, if set, is called on every state transition with the
	// outcome as it stands.
	OnStateChange func(*Outcome)
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Controller) enter(out *Outcome, s State) {
	out.State = s
	if s == Running {
		// from here on, the absence of a result is the result
		out.Result = DidNotReturn
	}
	if c.OnStateChange != nil {
		c.OnStateChange(out)
	}
}

// Launch starts one boot option. It returns only if the option could not
// be started or if the started image handed control back; the error is nil
// only for ReturnedSuccess.
func (c *Controller) Launch(opt *bootmgr.BootOption) (*Outcome, error) {
	log := c.logger().With("number", opt.Number, "description", opt.Description)
	out := &Outcome{Option: opt}
	c.enter(out, Idle)

	c.enter(out, Resolving)
	if len(opt.FilePathList) == 0 {
		c.enter(out, Unresolvable)
		err := fmt.Errorf("%s: %w: empty device path", opt.Name, ErrDevicePathUnresolvable)
		log.Error("cannot resolve boot option", "err", err)
		return out, err
	}
	target, err := c.Resolver.Resolve(opt.FilePathList)
	if err != nil {
		c.enter(out, Unresolvable)
		err = fmt.Errorf("%s: %w: %w", opt.Name, ErrDevicePathUnresolvable, err)
		log.Error("cannot resolve boot option", "err", err)
		return out, err
	}
	log.Debug("resolved boot option", "path", target.Path)

	c.enter(out, Loading)
	img, err := c.Loader.Load(target, opt.OptionalData)
	// the image, if any, is in memory now
	if rerr := target.Release(); rerr != nil {
		log.Warn("releasing boot target", "path", target.Path, "err", rerr)
	}
	if err != nil {
		c.enter(out, LoadFailed)
		lerr := &LoadError{Name: opt.Name, Err: err}
		log.Error("cannot load boot option", "err", lerr)
		return out, lerr
	}

	if c.Measurer != nil {
		if merr := c.Measurer.Measure(opt); merr != nil {
			log.Warn("cannot measure boot option", "err", merr)
		}
	}

	c.enter(out, Running)
	log.Info("starting boot option")
	exit, err := img.Start()

	// control came back
	if uerr := img.Unload(); uerr != nil {
		log.Warn("unloading image", "err", uerr)
	}
	out.Exit = exit
	if err == nil && exit.Status == 0 {
		out.Result = ReturnedSuccess
		c.enter(out, Succeeded)
		log.Info("boot option returned success")
		return out, nil
	}
	out.Result = ReturnedFailure
	c.enter(out, Failed)
	xerr := &ExitError{Name: opt.Name, Status: exit.Status, Data: exit.Data, Err: err}
	log.Error("boot option returned failure", "err", xerr)
	return out, xerr
}

// LoadError is returned when a resolved target could not be loaded.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Name, ErrLoadImage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrLoadImage) hold.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadImage
}

// ExitError is returned when a started image handed control back reporting
// failure. Err is set when control came back because the transfer itself
// failed rather than because the image exited.
type ExitError struct {
	Name   string
	Status int
	Data   []byte
	Err    error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Name, ErrReturnedFailure, e.Err)
	}
	return fmt.Sprintf("%s: %v: status %d", e.Name, ErrReturnedFailure, e.Status)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrReturnedFailure) hold.
func (e *ExitError) Is(target error) bool {
	return target == ErrReturnedFailure
}
