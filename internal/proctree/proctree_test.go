package proctree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/777genius/agent-toast/internal/desktop"
)

type fakeWindows struct {
	windows []desktop.Window
	err     error
	console *desktop.Window
	asked   [][]uint32
}

func (f *fakeWindows) TopLevelWindows(pids []uint32) ([]desktop.Window, error) {
	f.asked = append(f.asked, pids)
	return f.windows, f.err
}

func (f *fakeWindows) ConsoleWindow([]uint32) (desktop.Window, bool) {
	if f.console == nil {
		return desktop.Window{}, false
	}
	return *f.console, true
}

func staticTable(t Table) func() (Table, error) {
	return func() (Table, error) { return t, nil }
}

// linear builds pid n -> n+1 -> ... for count processes.
func linear(start uint32, count int) MapTable {
	table := MapTable{}
	for i := 0; i < count; i++ {
		pid := start + uint32(i)
		table[pid] = Process{PID: pid, PPID: pid + 1, Exe: "node.exe"}
	}
	return table
}

func assertNoRepeats(t *testing.T, c Chain) {
	t.Helper()
	seen := map[uint32]bool{}
	for _, pid := range c {
		assert.False(t, seen[pid], "pid %d repeated in %v", pid, c)
		seen[pid] = true
	}
}

func TestChainStopsAtDepthBound(t *testing.T) {
	r := NewResolverWith(staticTable(linear(100, 50)), &fakeWindows{}, MaxDepth)
	c := r.Chain(100)
	assert.Len(t, c, MaxDepth)
	assert.Equal(t, uint32(100), c[0])
	assert.Equal(t, uint32(119), c[MaxDepth-1])
	assertNoRepeats(t, c)
}

func TestChainCycleGuard(t *testing.T) {
	table := MapTable{
		10: {PID: 10, PPID: 11},
		11: {PID: 11, PPID: 12},
		12: {PID: 12, PPID: 10},
	}
	c := NewResolverWith(staticTable(table), &fakeWindows{}, MaxDepth).Chain(10)
	assert.Equal(t, Chain{10, 11, 12}, c)
}

func TestChainSelfParent(t *testing.T) {
	table := MapTable{4: {PID: 4, PPID: 4}}
	c := NewResolverWith(staticTable(table), &fakeWindows{}, MaxDepth).Chain(4)
	assert.Equal(t, Chain{4}, c)
}

func TestChainStopsBeforeBlockedExe(t *testing.T) {
	table := MapTable{
		300: {PID: 300, PPID: 200, Exe: "claude.exe"},
		200: {PID: 200, PPID: 100, Exe: "WindowsTerminal.exe"},
		100: {PID: 100, PPID: 4, Exe: "Explorer.EXE"},
	}
	c := NewResolverWith(staticTable(table), &fakeWindows{}, MaxDepth).Chain(300)
	assert.Equal(t, Chain{300, 200}, c)
}

func TestChainUnknownPid(t *testing.T) {
	c := NewResolverWith(staticTable(MapTable{}), &fakeWindows{}, MaxDepth).Chain(999)
	assert.Equal(t, Chain{999}, c)
}

func TestChainStopsAtMissingParent(t *testing.T) {
	// 50's parent exited before the snapshot was taken
	table := MapTable{
		100: {PID: 100, PPID: 50, Exe: "bash"},
		50:  {PID: 50, PPID: 1, Exe: "kitty"},
	}
	c := NewResolverWith(staticTable(table), &fakeWindows{}, MaxDepth).Chain(100)
	assert.Equal(t, Chain{100, 50}, c)
}

func TestChainWalksPartialSnapshot(t *testing.T) {
	partial := func() (Table, error) {
		return MapTable{
			42: {PID: 42, PPID: 41, Exe: "claude.exe"},
			41: {PID: 41, PPID: 0, Exe: "WindowsTerminal.exe"},
		}, errors.New("Process32Next: access denied")
	}
	c := NewResolverWith(partial, &fakeWindows{}, MaxDepth).Chain(42)
	assert.Equal(t, Chain{42, 41}, c)
}

func TestChainZeroPid(t *testing.T) {
	assert.Nil(t, NewResolverWith(staticTable(MapTable{}), &fakeWindows{}, MaxDepth).Chain(0))
}

func TestChainSnapshotFailure(t *testing.T) {
	failing := func() (Table, error) { return nil, errors.New("access denied") }
	c := NewResolverWith(failing, &fakeWindows{}, MaxDepth).Chain(42)
	assert.Equal(t, Chain{42}, c)
}

func TestChainPropertyManyShapes(t *testing.T) {
	// every pid in a table with random-looking parent links terminates
	// within the bound and never repeats
	table := MapTable{}
	for pid := uint32(1); pid <= 200; pid++ {
		table[pid] = Process{PID: pid, PPID: (pid*37 + 11) % 200}
	}
	r := NewResolverWith(staticTable(table), &fakeWindows{}, MaxDepth)
	for pid := uint32(1); pid <= 200; pid++ {
		c := r.Chain(pid)
		assert.LessOrEqual(t, len(c), MaxDepth)
		assertNoRepeats(t, c)
	}
}

func TestNewResolverWithClampsDepth(t *testing.T) {
	r := NewResolverWith(staticTable(linear(1, 100)), &fakeWindows{}, 500)
	assert.Len(t, r.Chain(1), MaxDepth)

	r = NewResolverWith(staticTable(linear(1, 100)), &fakeWindows{}, 3)
	assert.Len(t, r.Chain(1), 3)
}

func TestFindWindowClosestAncestorWins(t *testing.T) {
	fw := &fakeWindows{windows: []desktop.Window{
		// enumeration order puts the far ancestor first
		{Handle: 0xA, PID: 3, Title: "Visual Studio Code", Visible: true},
		{Handle: 0xB, PID: 2, Title: "Windows Terminal", Visible: true},
	}}
	r := NewResolverWith(staticTable(MapTable{}), fw, MaxDepth)

	w, ok := r.FindWindow(Chain{1, 2, 3}, "")
	require.True(t, ok)
	assert.Equal(t, desktop.Handle(0xB), w.Handle)
}

func TestFindWindowSkipsNonCandidates(t *testing.T) {
	fw := &fakeWindows{windows: []desktop.Window{
		{Handle: 1, PID: 1, Title: "", Visible: true},
		{Handle: 2, PID: 1, Title: "hidden", Visible: false},
		{Handle: 3, PID: 1, Title: "tool", Visible: true, Tool: true},
		{Handle: 4, PID: 2, Title: "real", Visible: true},
		{Handle: 5, PID: 99, Title: "stranger", Visible: true},
	}}
	w, ok := NewResolverWith(staticTable(MapTable{}), fw, MaxDepth).FindWindow(Chain{1, 2}, "")
	require.True(t, ok)
	assert.Equal(t, desktop.Handle(4), w.Handle)
}

func TestFindWindowTitleHintPreferred(t *testing.T) {
	fw := &fakeWindows{windows: []desktop.Window{
		{Handle: 1, PID: 1, Title: "other-project - Terminal", Visible: true},
		{Handle: 2, PID: 2, Title: "my-app - Visual Studio Code", Visible: true},
	}}
	w, ok := NewResolverWith(staticTable(MapTable{}), fw, MaxDepth).FindWindow(Chain{1, 2}, "My-App")
	require.True(t, ok)
	assert.Equal(t, desktop.Handle(2), w.Handle)
}

func TestResolveFallsBackToConsole(t *testing.T) {
	fw := &fakeWindows{console: &desktop.Window{Handle: 0x77, Title: "Windows PowerShell"}}
	table := MapTable{5: {PID: 5, PPID: 6}, 6: {PID: 6, PPID: 0}}

	res := NewResolverWith(staticTable(table), fw, MaxDepth).Resolve(5, "")
	assert.Equal(t, Chain{5, 6}, res.Chain)
	assert.Equal(t, desktop.Handle(0x77), res.Window)
	assert.Equal(t, "Windows PowerShell", res.Title)
	assert.Equal(t, [][]uint32{{5, 6}}, fw.asked)
}

func TestResolveNoWindowKeepsChain(t *testing.T) {
	fw := &fakeWindows{err: desktop.ErrUnsupported}
	table := MapTable{5: {PID: 5, PPID: 6}, 6: {PID: 6, PPID: 0}}

	res := NewResolverWith(staticTable(table), fw, MaxDepth).Resolve(5, "")
	assert.Equal(t, Chain{5, 6}, res.Chain)
	assert.Zero(t, res.Window)
	assert.Empty(t, res.Title)
}

func TestChainContainsAndIndex(t *testing.T) {
	c := Chain{7, 8, 9}
	assert.True(t, c.Contains(8))
	assert.False(t, c.Contains(1))
	assert.Equal(t, 2, c.Index(9))
	assert.Equal(t, -1, c.Index(1))
	assert.False(t, Chain(nil).Contains(0))
}
