// ABOUTME: Resolves a process id to its ancestor chain and the window that best represents it.
// ABOUTME: Runs in the short-lived CLI before the process that invoked it can exit.
package proctree

import (
	"os"
	"strings"

	"github.com/777genius/agent-toast/internal/desktop"
	"github.com/777genius/agent-toast/internal/logging"
)

// MaxDepth bounds the ancestor walk.
const MaxDepth = 20

// Process is one row of a process table snapshot.
type Process struct {
	PID  uint32
	PPID uint32
	Exe  string
}

// Table is a point-in-time view of running processes.
type Table interface {
	Lookup(pid uint32) (Process, bool)
}

// MapTable is a Table backed by a map.
type MapTable map[uint32]Process

func (m MapTable) Lookup(pid uint32) (Process, bool) {
	p, ok := m[pid]
	return p, ok
}

// Chain is an ordered list of process ids from the origin to its ancestors.
type Chain []uint32

func (c Chain) Contains(pid uint32) bool {
	for _, p := range c {
		if p == pid {
			return true
		}
	}
	return false
}

// Index returns the position of pid in the chain or -1.
func (c Chain) Index(pid uint32) int {
	for i, p := range c {
		if p == pid {
			return i
		}
	}
	return -1
}

// ParentPID returns the pid of the process that launched us.
func ParentPID() uint32 {
	return uint32(os.Getppid())
}

// Resolution is the outcome of resolving a pid.
type Resolution struct {
	Chain  Chain
	Window desktop.Handle
	Title  string
}

// WindowSource enumerates top-level windows owned by a set of processes.
type WindowSource interface {
	TopLevelWindows(pids []uint32) ([]desktop.Window, error)
	ConsoleWindow(chain []uint32) (desktop.Window, bool)
}

// blockedExes end the walk: above them is session infrastructure whose
// windows never represent the caller.
var blockedExes = map[string]bool{
	"explorer.exe": true,
	"winlogon.exe": true,
	"csrss.exe":    true,
	"services.exe": true,
	"svchost.exe":  true,
	"systemd":      true,
	"init":         true,
}

// Resolver walks process ancestry and picks the closest window.
type Resolver struct {
	snapshot func() (Table, error)
	windows  WindowSource
	maxDepth int
}

// NewResolver uses the live process table and desktop bindings.
func NewResolver() *Resolver {
	return &Resolver{snapshot: Snapshot, windows: desktop.System{}, maxDepth: MaxDepth}
}

// NewResolverWith builds a resolver over explicit sources.
func NewResolverWith(snapshot func() (Table, error), windows WindowSource, maxDepth int) *Resolver {
	if maxDepth <= 0 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	return &Resolver{snapshot: snapshot, windows: windows, maxDepth: maxDepth}
}

// Chain walks from pid towards the root. A snapshot that fails part way is
// still walked. It stops when the parent is missing from the table or zero, when a pid repeats, at a blocked executable, or at the depth
// bound. The origin pid is always the first element when non-zero.
func (r *Resolver) Chain(pid uint32) Chain {
	if pid == 0 {
		return nil
	}

	table, err := r.snapshot()
	if err != nil {
		logging.Warn("process snapshot failed: %v", err)
		if table == nil {
			return Chain{pid}
		}
	}
	return walk(table, pid, r.maxDepth)
}

func walk(table Table, pid uint32, maxDepth int) Chain {
	chain := Chain{pid}
	seen := map[uint32]bool{pid: true}

	current := pid
	for len(chain) < maxDepth {
		proc, ok := table.Lookup(current)
		if !ok {
			break
		}
		parent := proc.PPID
		if parent == 0 || parent == current || seen[parent] {
			break
		}
		pp, ok := table.Lookup(parent)
		if !ok || blockedExes[strings.ToLower(pp.Exe)] {
			break
		}
		chain = append(chain, parent)
		seen[parent] = true
		current = parent
	}
	return chain
}

// Resolve computes the chain for pid and the window that stands for it.
// Failures degrade to an empty window; the chain is always returned.
func (r *Resolver) Resolve(pid uint32, titleHint string) Resolution {
	res := Resolution{Chain: r.Chain(pid)}
	if len(res.Chain) == 0 {
		return res
	}

	if w, ok := r.FindWindow(res.Chain, titleHint); ok {
		res.Window = w.Handle
		res.Title = w.Title
		return res
	}

	if w, ok := r.windows.ConsoleWindow(res.Chain); ok {
		logging.Debug("using console host window %s for pid %d", w.Handle, pid)
		res.Window = w.Handle
		res.Title = w.Title
		return res
	}

	logging.Debug("no window found for pid %d (chain %v)", pid, res.Chain)
	return res
}

// FindWindow picks the best candidate owned by a process in chain. A window
// whose title contains titleHint wins first; otherwise the candidate of the
// closest ancestor wins. Enumeration order never breaks ties between
// processes.
func (r *Resolver) FindWindow(chain Chain, titleHint string) (desktop.Window, bool) {
	wins, err := r.windows.TopLevelWindows(chain)
	if err != nil {
		logging.Debug("window enumeration failed: %v", err)
		return desktop.Window{}, false
	}

	hint := strings.ToLower(strings.TrimSpace(titleHint))

	best, bestRank := desktop.Window{}, -1
	hinted, hintedRank := desktop.Window{}, -1
	for _, w := range wins {
		if !w.Candidate() {
			continue
		}
		rank := chain.Index(w.PID)
		if rank < 0 {
			continue
		}
		if bestRank < 0 || rank < bestRank {
			best, bestRank = w, rank
		}
		if hint != "" && strings.Contains(strings.ToLower(w.Title), hint) {
			if hintedRank < 0 || rank < hintedRank {
				hinted, hintedRank = w, rank
			}
		}
	}

	if hintedRank >= 0 {
		return hinted, true
	}
	return best, bestRank >= 0
}
