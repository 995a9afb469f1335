// Package bootmgr builds the boot manager's view of the configured boot
// options: every BootXXXX variable decoded, ordered by BootOrder, with hidden
// entries filtered out of the interactive listing.
package bootmgr

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/systemboot/bootmgr/pkg/loadoption"
	"github.com/systemboot/bootmgr/pkg/varstore"
)

// ErrNotFound is returned by ByNumber for numbers with no decoded option.
var ErrNotFound = errors.New("boot option not found")

// BootOption is a decoded boot entry together with its number.
type BootOption struct {
	Number uint16
	// Name is the variable the option was read from.
	Name string
	loadoption.LoadOption
}

func (o *BootOption) String() string {
	return fmt.Sprintf("Boot%04X %q", o.Number, o.Description)
}

// Registry is an immutable snapshot of the boot options in a store. Build a
// new one with Enumerate to pick up changes. Callers must not modify the
// returned options.
type Registry struct {
	options map[uint16]*BootOption
	order   []uint16
	ordered []*BootOption
	visible []*BootOption
	next    *BootOption
	diags   []Diagnostic
}

type enumerateConfig struct {
	logger *slog.Logger
}

// Option configures Enumerate.
type Option func(*enumerateConfig)

// WithLogger sets the logger diagnostics are reported to. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *enumerateConfig) {
		c.logger = l
	}
}

// Enumerate reads every boot option from store and builds a Registry.
//
// Problems with individual variables never fail the call: a corrupt entry
// must not make the remaining ones unbootable. They are logged and recorded
// as diagnostics instead. The only error returned is a failure to list the
// store's boot entries at all.
func Enumerate(store varstore.Store, opts ...Option) (*Registry, error) {
	cfg := enumerateConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	b := &builder{
		log: cfg.logger,
		reg: &Registry{options: make(map[uint16]*BootOption)},
	}

	b.readOrder(store)

	names, err := store.BootEntryNames()
	if err != nil {
		return nil, fmt.Errorf("listing boot entries: %w", err)
	}
	// the store gives no ordering guarantee; sorting makes duplicate
	// resolution reproducible
	sort.Strings(names)
	for _, name := range names {
		b.readOption(store, name)
	}

	b.deriveViews()
	b.readNext(store)

	b.log.Debug("enumerated boot options",
		"options", len(b.reg.options),
		"ordered", len(b.reg.ordered),
		"visible", len(b.reg.visible),
		"diagnostics", len(b.reg.diags))
	return b.reg, nil
}

type builder struct {
	log *slog.Logger
	reg *Registry
}

func (b *builder) diag(d Diagnostic) {
	b.reg.diags = append(b.reg.diags, d)
	b.log.Warn(d.Kind.String(), "name", d.Name, "number", d.Number, "err", d.Err)
}

func (b *builder) readOrder(store varstore.Store) {
	data, err := store.Read(loadoption.BootOrderName)
	if err != nil {
		if !errors.Is(err, varstore.ErrNotFound) {
			b.diag(Diagnostic{Kind: UnreadableVariable, Name: loadoption.BootOrderName, Err: err})
		}
		return
	}
	order, trailing := loadoption.DecodeBootOrder(data)
	if trailing {
		b.diag(Diagnostic{
			Kind: MalformedBootOrder,
			Name: loadoption.BootOrderName,
			Err:  fmt.Errorf("odd length %d, trailing byte ignored", len(data)),
		})
	}
	b.reg.order = order
}

func (b *builder) readOption(store varstore.Store, name string) {
	number, ok := loadoption.ParseBootName(name)
	if !ok {
		b.log.Debug("ignoring variable that is not a boot entry", "name", name)
		return
	}
	if prev, ok := b.reg.options[number]; ok {
		b.diag(Diagnostic{
			Kind:   DuplicateNumber,
			Name:   name,
			Number: number,
			Err:    fmt.Errorf("number already claimed by %s", prev.Name),
		})
		return
	}
	data, err := store.Read(name)
	if err != nil {
		b.diag(Diagnostic{Kind: UnreadableVariable, Name: name, Number: number, Err: err})
		return
	}
	lo, err := loadoption.Decode(data)
	if err != nil {
		b.diag(Diagnostic{Kind: MalformedOption, Name: name, Number: number, Err: err})
		return
	}
	b.reg.options[number] = &BootOption{Number: number, Name: name, LoadOption: *lo}
}

func (b *builder) deriveViews() {
	seen := make(map[uint16]bool, len(b.reg.order))
	for _, n := range b.reg.order {
		opt, ok := b.reg.options[n]
		if !ok {
			b.log.Debug("BootOrder references missing option", "number", n)
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		b.reg.ordered = append(b.reg.ordered, opt)
		if !opt.IsHidden() {
			b.reg.visible = append(b.reg.visible, opt)
		}
	}
}

func (b *builder) readNext(store varstore.Store) {
	data, err := store.Read(loadoption.BootNextName)
	if err != nil {
		if !errors.Is(err, varstore.ErrNotFound) {
			b.diag(Diagnostic{Kind: UnreadableVariable, Name: loadoption.BootNextName, Err: err})
		}
		return
	}
	n, err := loadoption.DecodeBootNext(data)
	if err != nil {
		b.diag(Diagnostic{Kind: MalformedBootNext, Name: loadoption.BootNextName, Err: err})
		return
	}
	opt, ok := b.reg.options[n]
	if !ok {
		b.log.Debug("BootNext references missing option", "number", n)
		return
	}
	b.reg.next = opt
}

// Order returns the raw BootOrder, including numbers with no option.
func (r *Registry) Order() []uint16 {
	return append([]uint16(nil), r.order...)
}

// Ordered returns the options listed in BootOrder, in that order. Options
// missing from BootOrder are not included.
func (r *Registry) Ordered() []*BootOption {
	return append([]*BootOption(nil), r.ordered...)
}

// VisibleOptions returns Ordered without HIDDEN options.
func (r *Registry) VisibleOptions() []*BootOption {
	return append([]*BootOption(nil), r.visible...)
}

// All returns every decoded option sorted by number.
func (r *Registry) All() []*BootOption {
	all := make([]*BootOption, 0, len(r.options))
	for _, o := range r.options {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number < all[j].Number })
	return all
}

// ByNumber looks up an option regardless of BootOrder and visibility.
func (r *Registry) ByNumber(n uint16) (*BootOption, error) {
	o, ok := r.options[n]
	if !ok {
		return nil, fmt.Errorf("%s: %w", loadoption.BootName(n), ErrNotFound)
	}
	return o, nil
}

// Next returns the option named by BootNext, if it is set and exists.
func (r *Registry) Next() (*BootOption, bool) {
	return r.next, r.next != nil
}

// Diagnostics returns the problems found while enumerating.
func (r *Registry) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), r.diags...)
}
