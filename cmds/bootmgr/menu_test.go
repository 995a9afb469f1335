package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/systemboot/bootmgr/pkg/bootmgr"
	"github.com/systemboot/bootmgr/pkg/varstore"
)

func TestMenuLaunchesChoice(t *testing.T) {
	e, l, _ := testEnv(t, testStore(t))
	var out bytes.Buffer

	// visible order is Old kernel, Fedora
	require.NoError(t, runMenu(strings.NewReader("2\nq\n"), &out, e.enumerate, l))
	require.Equal(t, []uint16{0}, l.launched)
	require.Contains(t, out.String(), "[1] Old kernel (Boot0002)")
	require.Contains(t, out.String(), "[2] Fedora (Boot0000)")
	require.Contains(t, out.String(), "Fedora: returned success")
}

func TestMenuReturnsAfterFailure(t *testing.T) {
	e, l, _ := testEnv(t, testStore(t))
	l.err = errors.New("device path unresolvable")
	var out bytes.Buffer

	require.NoError(t, runMenu(strings.NewReader("1\n1\n"), &out, e.enumerate, l))
	require.Equal(t, []uint16{2, 2}, l.launched)
	require.Equal(t, 2, strings.Count(out.String(), "Boot failed: device path unresolvable"))
	require.Equal(t, 3, strings.Count(out.String(), "Boot options:"))
}

func TestMenuRejectsBadChoice(t *testing.T) {
	e, l, _ := testEnv(t, testStore(t))
	var out bytes.Buffer

	require.NoError(t, runMenu(strings.NewReader("9\nfoo\nquit\n"), &out, e.enumerate, l))
	require.Empty(t, l.launched)
	require.Contains(t, out.String(), `Invalid choice "9"`)
	require.Contains(t, out.String(), `Invalid choice "foo"`)
}

func TestMenuSeesFreshSnapshot(t *testing.T) {
	store := testStore(t)
	e, l, _ := testEnv(t, store)
	var out bytes.Buffer

	calls := 0
	enumerate := func() (*bootmgr.Registry, error) {
		calls++
		if calls == 2 {
			setOption(t, store, 5, 1, "USB stick", nil)
			store.Set("BootOrder", []byte{5, 0, 2, 0, 0, 0, 1, 0})
		}
		return e.enumerate()
	}
	require.NoError(t, runMenu(strings.NewReader("x\n1\nq\n"), &out, enumerate, l))
	require.Equal(t, []uint16{5}, l.launched)
}

func TestMenuNothingVisible(t *testing.T) {
	e, l, _ := testEnv(t, varstore.NewMemory())
	require.ErrorIs(t, runMenu(strings.NewReader("1\n"), &bytes.Buffer{}, e.enumerate, l), errNoVisibleOptions)
}
