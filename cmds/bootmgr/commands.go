package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/systemboot/bootmgr/pkg/bootmgr"
	"github.com/systemboot/bootmgr/pkg/config"
	"github.com/systemboot/bootmgr/pkg/devicepath"
	"github.com/systemboot/bootmgr/pkg/launch"
	"github.com/systemboot/bootmgr/pkg/loadoption"
	"github.com/systemboot/bootmgr/pkg/measure"
	"github.com/systemboot/bootmgr/pkg/recovery"
	"github.com/systemboot/bootmgr/pkg/varstore"
)

// errNothingToBoot is returned by boot when neither BootNext nor an active
// ordered option exists.
var errNothingToBoot = errors.New("no bootable option")

type launcher interface {
	Launch(opt *bootmgr.BootOption) (*launch.Outcome, error)
}

type env struct {
	log        *slog.Logger
	store      varstore.Store
	controller launcher
	recoverer  recovery.Recoverer
}

func newEnv(cfg *config.Config, log *slog.Logger) *env {
	var store varstore.Store
	switch cfg.Store {
	case config.StoreVPD:
		store = varstore.NewVPD(cfg.VPDDir)
	default:
		store = varstore.NewEFIVarFS(cfg.EFIVarsDir)
	}

	resolver := launch.NewDevicePathResolver()
	resolver.MountBase = cfg.MountBase
	resolver.Logger = log
	c := &launch.Controller{
		Resolver: resolver,
		Loader:   &launch.ImageLoader{Logger: log},
		Logger:   log,
		OnStateChange: func(o *launch.Outcome) {
			log.Debug("launch state", "name", o.Option.Name, "state", o.State)
		},
	}
	if cfg.Measure.Enabled {
		m := measure.NewTPMMeasurer()
		m.Device = cfg.Measure.Device
		m.PCR = cfg.Measure.PCR
		m.Logger = log
		c.Measurer = m
	}

	var rec recovery.Recoverer
	if cfg.Recovery.Permissive {
		rec = recovery.PermissiveRecoverer{Logger: log}
	} else {
		rec = recovery.SecureRecoverer{Reboot: cfg.Recovery.Reboot, Sync: cfg.Recovery.Sync, Logger: log}
	}
	return &env{log: log, store: store, controller: c, recoverer: rec}
}

func (e *env) enumerate() (*bootmgr.Registry, error) {
	reg, err := bootmgr.Enumerate(e.store, bootmgr.WithLogger(e.log))
	if err != nil {
		return nil, err
	}
	for _, d := range reg.Diagnostics() {
		e.log.Warn("ignoring boot variable", "name", d.Name, "problem", d.Kind, "err", d.Err)
	}
	return reg, nil
}

// parseNumber accepts a variable name (Boot0001) or a bare hex number.
func parseNumber(s string) (uint16, error) {
	if n, ok := loadoption.ParseBootName(s); ok {
		return n, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid boot option number %q", s)
	}
	return uint16(n), nil
}

func formatOrder(order []uint16) string {
	parts := make([]string, len(order))
	for i, n := range order {
		parts[i] = fmt.Sprintf("%04X", n)
	}
	return strings.Join(parts, ",")
}

func devicePathString(b []byte) string {
	p, err := devicepath.Parse(b)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return p.String()
}

func (e *env) list(w io.Writer, all bool) error {
	reg, err := e.enumerate()
	if err != nil {
		return err
	}
	return listOptions(w, reg, all)
}

// listOptions prints the registry the way efibootmgr does: a header, then
// one line per option with * marking active ones.
func listOptions(w io.Writer, reg *bootmgr.Registry, all bool) error {
	if next, ok := reg.Next(); ok {
		fmt.Fprintf(w, "BootNext: %04X\n", next.Number)
	}
	fmt.Fprintf(w, "BootOrder: %s\n", formatOrder(reg.Order()))

	opts := reg.VisibleOptions()
	if all {
		opts = reg.Ordered()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range opts {
		mark := " "
		if o.IsActive() {
			mark = "*"
		}
		note := ""
		if o.IsHidden() {
			note = " (hidden)"
		}
		fmt.Fprintf(tw, "%s%s\t%s%s\t%s\n", o.Name, mark, o.Description, note, devicePathString(o.FilePathList))
	}
	return tw.Flush()
}

func (e *env) show(w io.Writer, arg string) error {
	n, err := parseNumber(arg)
	if err != nil {
		return err
	}
	reg, err := e.enumerate()
	if err != nil {
		return err
	}
	return showOption(w, reg, n)
}

func showOption(w io.Writer, reg *bootmgr.Registry, n uint16) error {
	o, err := reg.ByNumber(n)
	if err != nil {
		return fmt.Errorf("%s: %w", loadoption.BootName(n), err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", o.Name)
	fmt.Fprintf(tw, "Description:\t%s\n", o.Description)
	fmt.Fprintf(tw, "Attributes:\t%s\n", o.Attributes)
	fmt.Fprintf(tw, "Device path:\t%s\n", devicePathString(o.FilePathList))
	if len(o.OptionalData) > 0 {
		fmt.Fprintf(tw, "Optional data:\t%s\n", humanize.IBytes(uint64(len(o.OptionalData))))
		if cmdline := launch.CommandLine(o.OptionalData); cmdline != "" {
			fmt.Fprintf(tw, "Command line:\t%s\n", cmdline)
		}
	}
	for _, d := range reg.Diagnostics() {
		if d.Number == n {
			fmt.Fprintf(tw, "Problem:\t%s\n", d)
		}
	}
	return tw.Flush()
}

// pickDefault is BootNext if set, else the first active option in boot
// order.
func pickDefault(reg *bootmgr.Registry) (*bootmgr.BootOption, error) {
	if next, ok := reg.Next(); ok {
		return next, nil
	}
	for _, o := range reg.Ordered() {
		if o.IsActive() {
			return o, nil
		}
	}
	return nil, errNothingToBoot
}

func (e *env) boot(arg string, withRecovery bool) error {
	err := e.bootOnce(arg)
	if err != nil && withRecovery {
		// a recoverer that returns leaves the boot failed
		return errors.Join(err, e.recoverer.Recover(err.Error()))
	}
	return err
}

func (e *env) bootOnce(arg string) error {
	reg, err := e.enumerate()
	if err != nil {
		return err
	}
	var opt *bootmgr.BootOption
	if arg == "" {
		opt, err = pickDefault(reg)
	} else {
		var n uint16
		if n, err = parseNumber(arg); err == nil {
			opt, err = reg.ByNumber(n)
		}
	}
	if err != nil {
		return err
	}
	out, err := e.controller.Launch(opt)
	if err != nil {
		return err
	}
	e.log.Info("boot option returned", "name", opt.Name, "result", out.Result)
	return nil
}
