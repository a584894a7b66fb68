package patch

import (
	"sort"
	"sync"

	"github.com/psaab/netpatch/pkg/diff"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Logic turns one action into rows.
type Logic func(a *Action) []Yield

// Registry maps patch logic names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	logics map[string]Logic
}

// NewRegistry returns a registry with the built-in and vendor logics.
func NewRegistry() *Registry {
	r := &Registry{logics: make(map[string]Logic)}
	r.Register(rulebook.LogicDefault, Default)
	r.Register(rulebook.LogicOrdered, Ordered)
	r.Register(rulebook.LogicRewrite, Rewrite)
	r.Register(rulebook.LogicPermanent, Permanent)
	r.Register(rulebook.LogicIgnoreChanges, IgnoreChanges)
	r.Register(rulebook.LogicUndoRedo, UndoRedo)
	r.Register(rulebook.LogicDefaultInsteadUndo, DefaultInsteadUndo)
	registerVendorLogics(r)
	return r
}

// Register adds or replaces the logic called name.
func (r *Registry) Register(name string, l Logic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logics[name] = l
}

// Lookup returns the logic called name.
func (r *Registry) Lookup(name string) (Logic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logics[name]
	return l, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.logics))
	for name := range r.logics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func enterAll(out []Yield, nodes []*diff.Node) []Yield {
	for _, n := range nodes {
		out = append(out, Enter(n))
	}
	return out
}

// replace applies the added rows of a. When the key also lost rows, the
// first added row replaces them in place.
func replace(out []Yield, a *Action) []Yield {
	for i, n := range a.Added {
		y := Add(n)
		if i == 0 {
			for _, r := range a.Removed {
				y.Replaces = append(y.Replaces, text(r))
			}
		}
		out = append(out, y)
	}
	return out
}

// withRemoval is the default shape parameterized by how a removal is
// rendered: removals only happen when the key gained nothing, changed rows
// are entered and added rows applied.
func withRemoval(a *Action, remove func(n *diff.Node) Yield) []Yield {
	var out []Yield
	if len(a.Added) == 0 {
		for _, n := range a.Removed {
			out = append(out, remove(n))
		}
	}
	out = enterAll(out, a.Affected)
	out = enterAll(out, a.Moved)
	return replace(out, a)
}

// Default removes rows whose key disappeared, replaces rows whose key got
// a new value and descends into changed blocks.
func Default(a *Action) []Yield {
	return withRemoval(a, func(n *diff.Node) Yield { return Remove(a, n) })
}

// Ordered is Default except that moved rows are undone and applied again
// with their whole block.
func Ordered(a *Action) []Yield {
	var out []Yield
	if len(a.Added) == 0 {
		for _, n := range a.Removed {
			out = append(out, Remove(a, n))
		}
	}
	for _, n := range a.Moved {
		out = append(out, Remove(a, n))
	}
	out = enterAll(out, a.Affected)
	for _, n := range a.Moved {
		out = append(out, Readd(n))
	}
	return replace(out, a)
}

// Rewrite undoes every removed row and applies every added one.
func Rewrite(a *Action) []Yield {
	var out []Yield
	for _, n := range a.Removed {
		out = append(out, Remove(a, n))
	}
	out = enterAll(out, a.Affected)
	out = enterAll(out, a.Moved)
	for _, n := range a.Added {
		out = append(out, Add(n))
	}
	return out
}

// Permanent never deletes the row itself: a removed block stays and has its
// contents removed, a removed leaf gets its reverse form.
func Permanent(a *Action) []Yield {
	return withRemoval(a, func(n *diff.Node) Yield {
		if len(n.Children) > 0 {
			return Enter(n)
		}
		return Remove(a, n)
	})
}

// IgnoreChanges only adds and removes rows. Changes inside existing rows
// are left alone.
func IgnoreChanges(a *Action) []Yield {
	var out []Yield
	if len(a.Added) == 0 {
		for _, n := range a.Removed {
			out = append(out, Remove(a, n))
		}
	}
	return replace(out, a)
}

// UndoRedo undoes the old rows before applying new ones when a key changes
// value, for commands the device cannot overwrite in place.
func UndoRedo(a *Action) []Yield {
	if len(a.Added) == 0 || len(a.Removed) == 0 {
		return Default(a)
	}
	var out []Yield
	for _, n := range a.Removed {
		out = append(out, Remove(a, n))
	}
	out = enterAll(out, a.Affected)
	out = enterAll(out, a.Moved)
	for _, n := range a.Added {
		out = append(out, Add(n))
	}
	return out
}

// DefaultInsteadUndo resets removed rows with "default <row>".
func DefaultInsteadUndo(a *Action) []Yield {
	return withRemoval(a, func(n *diff.Node) Yield {
		t := text(n)
		return Yield{Dir: Undo, Row: "default " + t, Origin: t}
	})
}
