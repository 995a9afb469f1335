package launch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// exitDataSize bounds how much of an executable's stderr is kept as exit data.
const exitDataSize = 4096

// memfd returns an anonymous file holding the contents of r, positioned at
// its start.
func memfd(name string, r io.Reader) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	mem := os.NewFile(uintptr(fd), "memfd:"+name)
	if _, err := io.Copy(mem, r); err != nil {
		mem.Close()
		return nil, err
	}
	if _, err := mem.Seek(0, io.SeekStart); err != nil {
		mem.Close()
		return nil, err
	}
	return mem, nil
}

// loadExecutable copies the program and its optional data into memfds so
// it can run after the target's filesystem is released.
func loadExecutable(t *Target, f *os.File, optionalData []byte) (Image, error) {
	name := filepath.Base(t.Path)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	mem, err := memfd(name, f)
	if err != nil {
		return nil, fmt.Errorf("copying %s: %w", t.Path, err)
	}
	// exec refuses files that are open for writing
	prog, err := os.Open(fmt.Sprintf("/proc/self/fd/%d", mem.Fd()))
	mem.Close()
	if err != nil {
		return nil, err
	}
	data, err := memfd(name+"-optional-data", bytes.NewReader(optionalData))
	if err != nil {
		prog.Close()
		return nil, fmt.Errorf("optional data: %w", err)
	}
	return &processImage{
		prog: prog,
		data: data,
		name: name,
		args: strings.Fields(CommandLine(optionalData)),
	}, nil
}

type processImage struct {
	prog *os.File
	// data is handed to the program as OptionalDataFD
	data *os.File
	name string
	args []string
}

// Start runs the program with the console attached and waits for it.
func (p *processImage) Start() (Exit, error) {
	if _, err := p.data.Seek(0, io.SeekStart); err != nil {
		return Exit{}, err
	}
	cmd := exec.Command(fmt.Sprintf("/proc/self/fd/%d", p.prog.Fd()), p.args...)
	cmd.Args[0] = p.name
	tail := &tailBuffer{max: exitDataSize}
	cmd.Stdin, cmd.Stdout = os.Stdin, os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, tail)
	// ExtraFiles[0] becomes descriptor 3 in the child
	cmd.ExtraFiles = []*os.File{p.data}

	err := cmd.Run()
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return Exit{Status: ee.ExitCode(), Data: tail.Bytes()}, nil
	}
	if err != nil {
		return Exit{Data: tail.Bytes()}, err
	}
	return Exit{Data: tail.Bytes()}, nil
}

func (p *processImage) Unload() error {
	return errors.Join(p.prog.Close(), p.data.Close())
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) Bytes() []byte {
	if len(b.buf) == 0 {
		return nil
	}
	return append([]byte(nil), b.buf...)
}
