package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/systemboot/bootmgr/pkg/bootmgr"
)

var errNoVisibleOptions = errors.New("no boot options to choose from")

// runMenu prompts for one of the visible options until one takes the
// machine over or the user quits. Every round enumerates afresh, so a
// failed launch never leaves stale state behind.
func runMenu(in io.Reader, out io.Writer, enumerate func() (*bootmgr.Registry, error), l launcher) error {
	scanner := bufio.NewScanner(in)
	for {
		reg, err := enumerate()
		if err != nil {
			return err
		}
		opts := reg.VisibleOptions()
		if len(opts) == 0 {
			return errNoVisibleOptions
		}

		fmt.Fprintln(out, "Boot options:")
		for i, o := range opts {
			fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, o.Description, o.Name)
		}
		fmt.Fprint(out, "Select an option, or q to quit: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		choice := strings.TrimSpace(scanner.Text())
		if choice == "q" || choice == "quit" {
			return nil
		}
		i, err := strconv.Atoi(choice)
		if err != nil || i < 1 || i > len(opts) {
			fmt.Fprintf(out, "Invalid choice %q\n", choice)
			continue
		}

		opt := opts[i-1]
		fmt.Fprintf(out, "Booting %s\n", opt.Description)
		res, err := l.Launch(opt)
		if err != nil {
			fmt.Fprintf(out, "Boot failed: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", opt.Description, res.Result)
	}
}
