package bootmgr

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/systemboot/bootmgr/pkg/loadoption"
	"github.com/systemboot/bootmgr/pkg/varstore"
)

var quiet = WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func encode(t *testing.T, attrs loadoption.Attributes, desc string) []byte {
	b, err := loadoption.Encode(&loadoption.LoadOption{
		Attributes:   attrs,
		Description:  desc,
		FilePathList: []byte{0x7f, 0xff, 0x04, 0x00},
	})
	require.NoError(t, err)
	return b
}

func descriptions(opts []*BootOption) []string {
	var out []string
	for _, o := range opts {
		out = append(out, o.Description)
	}
	return out
}

func numbers(opts []*BootOption) []uint16 {
	var out []uint16
	for _, o := range opts {
		out = append(out, o.Number)
	}
	return out
}

func TestEnumerateOrderedAndVisible(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{0, 2, 1}))
	store.Set("Boot0000", encode(t, loadoption.Active, "A"))
	store.Set("Boot0001", encode(t, loadoption.Active|loadoption.Hidden, "B"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Equal(t, []uint16{0, 1}, numbers(reg.Ordered()))
	require.Equal(t, []uint16{0}, numbers(reg.VisibleOptions()))
	require.Equal(t, []string{"A"}, descriptions(reg.VisibleOptions()))
	require.Equal(t, []uint16{0, 2, 1}, reg.Order())
	require.Empty(t, reg.Diagnostics())
}

func TestByNumberFindsEntriesOutsideBootOrder(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{1}))
	store.Set("Boot0001", encode(t, loadoption.Active, "in order"))
	store.Set("Boot0007", encode(t, loadoption.Active, "not in order"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Equal(t, []uint16{1}, numbers(reg.Ordered()))

	o, err := reg.ByNumber(7)
	require.NoError(t, err)
	require.Equal(t, "not in order", o.Description)
	require.Equal(t, "Boot0007", o.Name)

	_, err = reg.ByNumber(8)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, []uint16{1, 7}, numbers(reg.All()))
}

func TestVisibleNeverIncludesHidden(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{3, 2, 1}))
	store.Set("Boot0001", encode(t, loadoption.Active, "one"))
	store.Set("Boot0002", encode(t, loadoption.Hidden, "two"))
	store.Set("Boot0003", encode(t, loadoption.Active|loadoption.Hidden, "three"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Equal(t, []uint16{3, 2, 1}, numbers(reg.Ordered()))
	require.Equal(t, []string{"one"}, descriptions(reg.VisibleOptions()))
}

func TestMissingBootOrderIsEmpty(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("Boot0001", encode(t, loadoption.Active, "one"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Empty(t, reg.Ordered())
	require.Empty(t, reg.VisibleOptions())
	require.Empty(t, reg.Diagnostics())
	_, err = reg.ByNumber(1)
	require.NoError(t, err)
}

func TestRepeatedNumberInBootOrder(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{1, 2, 1}))
	store.Set("Boot0001", encode(t, loadoption.Active, "one"))
	store.Set("Boot0002", encode(t, loadoption.Active, "two"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Equal(t, []uint16{1, 2}, numbers(reg.Ordered()))
}

func TestMalformedEntryIsSkipped(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{0, 1, 2}))
	store.Set("Boot0000", encode(t, loadoption.Active, "good"))
	store.Set("Boot0001", []byte{0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 'x', 0x00, 0x00, 0x00})
	store.Set("Boot0002", []byte{0x01})

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, descriptions(reg.VisibleOptions()))

	diags := reg.Diagnostics()
	require.Len(t, diags, 2)
	require.Equal(t, MalformedOption, diags[0].Kind)
	require.Equal(t, "Boot0001", diags[0].Name)
	require.ErrorIs(t, diags[0].Err, loadoption.ErrTruncated)
	require.Equal(t, MalformedOption, diags[1].Kind)
	require.Equal(t, uint16(2), diags[1].Number)
}

func TestDuplicateNumberKeepsLexicallyFirst(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{0xA}))
	store.Set("Boot000a", encode(t, loadoption.Active, "lower"))
	store.Set("Boot000A", encode(t, loadoption.Active, "upper"))

	for i := 0; i < 10; i++ {
		reg, err := Enumerate(store, quiet)
		require.NoError(t, err)
		o, err := reg.ByNumber(0xA)
		require.NoError(t, err)
		// "Boot000A" sorts before "Boot000a"
		require.Equal(t, "upper", o.Description)
		require.Equal(t, []string{"upper"}, descriptions(reg.VisibleOptions()))

		diags := reg.Diagnostics()
		require.Len(t, diags, 1)
		require.Equal(t, DuplicateNumber, diags[0].Kind)
		require.Equal(t, "Boot000a", diags[0].Name)
	}
}

func TestOddBootOrder(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", []byte{0x01, 0x00, 0x02})
	store.Set("Boot0001", encode(t, loadoption.Active, "one"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Equal(t, []uint16{1}, numbers(reg.Ordered()))
	require.Len(t, reg.Diagnostics(), 1)
	require.Equal(t, MalformedBootOrder, reg.Diagnostics()[0].Kind)
}

func TestBootNext(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{1}))
	store.Set("Boot0001", encode(t, loadoption.Active, "one"))
	store.Set("Boot0002", encode(t, loadoption.Active|loadoption.Hidden, "once"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	_, ok := reg.Next()
	require.False(t, ok)

	store.Set("BootNext", []byte{0x02, 0x00})
	reg, err = Enumerate(store, quiet)
	require.NoError(t, err)
	next, ok := reg.Next()
	require.True(t, ok)
	require.Equal(t, "once", next.Description)

	store.Set("BootNext", []byte{0x09, 0x00})
	reg, err = Enumerate(store, quiet)
	require.NoError(t, err)
	_, ok = reg.Next()
	require.False(t, ok)

	store.Set("BootNext", []byte{0x09})
	reg, err = Enumerate(store, quiet)
	require.NoError(t, err)
	_, ok = reg.Next()
	require.False(t, ok)
	require.Equal(t, MalformedBootNext, reg.Diagnostics()[0].Kind)
}

type flakyStore struct {
	*varstore.Memory
	readErr map[string]error
	listErr error
}

func (s *flakyStore) Read(name string) ([]byte, error) {
	if err, ok := s.readErr[name]; ok {
		return nil, err
	}
	return s.Memory.Read(name)
}

func (s *flakyStore) BootEntryNames() ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	names, err := s.Memory.BootEntryNames()
	// a corrupted store may list the same name twice
	return append(names, names...), err
}

func TestUnreadableVariables(t *testing.T) {
	mem := varstore.NewMemory()
	mem.Set("Boot0001", encode(t, loadoption.Active, "one"))
	mem.Set("Boot0002", encode(t, loadoption.Active, "two"))
	store := &flakyStore{
		Memory: mem,
		readErr: map[string]error{
			"BootOrder": errors.New("EIO"),
			"Boot0002":  errors.New("EIO"),
		},
	}

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	require.Empty(t, reg.Ordered())
	require.Equal(t, []uint16{1}, numbers(reg.All()))

	var kinds []DiagnosticKind
	for _, d := range reg.Diagnostics() {
		kinds = append(kinds, d.Kind)
	}
	// listed twice: the second Boot0001 is a duplicate, the second
	// Boot0002 fails to read again
	require.Equal(t, []DiagnosticKind{UnreadableVariable, DuplicateNumber, UnreadableVariable, UnreadableVariable}, kinds)
}

func TestListFailure(t *testing.T) {
	store := &flakyStore{Memory: varstore.NewMemory(), listErr: errors.New("EIO")}
	_, err := Enumerate(store, quiet)
	require.Error(t, err)
}

func TestSnapshotIsIndependentOfStore(t *testing.T) {
	store := varstore.NewMemory()
	store.Set("BootOrder", loadoption.EncodeBootOrder([]uint16{1}))
	store.Set("Boot0001", encode(t, loadoption.Active, "one"))

	reg, err := Enumerate(store, quiet)
	require.NoError(t, err)
	store.Delete("Boot0001")
	store.Set("BootOrder", nil)

	require.Equal(t, []string{"one"}, descriptions(reg.VisibleOptions()))
	v := reg.VisibleOptions()
	v[0] = nil
	require.NotNil(t, reg.VisibleOptions()[0])
}
