package diff

import (
	"sort"
	"sync"

	"github.com/psaab/netpatch/pkg/rulebook"
)

// Logic classifies the rows of one level.
type Logic func(in *Input) (Diff, error)

// Registry maps diff logic names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	logics map[string]Logic
}

// NewRegistry returns a registry holding the built-in logics.
func NewRegistry() *Registry {
	r := &Registry{logics: make(map[string]Logic)}
	r.Register(rulebook.LogicDefault, Default)
	r.Register(rulebook.LogicOrdered, Ordered)
	r.Register(rulebook.LogicRewrite, Rewrite)
	r.Register(rulebook.LogicMultiline, Multiline)
	r.Register(rulebook.LogicUndoRedo, UndoRedo)
	return r
}

// Register adds or replaces the logic called name. Vendor specific logics
// use "<vendor>.<name>".
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

// classified pairs a node with the entries it was built from.
type classified struct {
	node     *Node
	old, new *Entry
}

// classify is the common classification. Old-only rows are removed and
// new-only rows added. A row present on both sides is moved once any
// earlier common row appeared out of its old order, affected when its
// subtree changed and unchanged otherwise.
func classify(in *Input) ([]classified, error) {
	inNew := make(map[string]bool, len(in.New))
	for _, e := range in.New {
		inNew[e.ID] = true
	}
	oldPos := make(map[string]int, len(in.Old))
	for i, e := range in.Old {
		oldPos[e.ID] = i
	}

	var out []classified
	for _, e := range in.Old {
		if inNew[e.ID] {
			continue
		}
		n, err := in.Removed(e)
		if err != nil {
			return nil, err
		}
		out = append(out, classified{node: n, old: e})
	}

	prev := -1
	disorder := false
	for _, e := range in.New {
		pos, ok := oldPos[e.ID]
		if !ok {
			n, err := in.Added(e)
			if err != nil {
				return nil, err
			}
			out = append(out, classified{node: n, new: e})
			continue
		}
		if pos < prev {
			disorder = true
		}
		prev = pos

		old := in.Old[pos]
		op := Affected
		if disorder {
			op = Moved
		}
		children, err := in.Sub(old, e, op)
		if err != nil {
			return nil, err
		}
		n := &Node{Op: op, Row: e.Row, Children: children, Match: e.Match}
		if op == Moved {
			if n.Subtree, err = in.Sub(nil, e, Added); err != nil {
				return nil, err
			}
		} else if !children.HasChanges() {
			n.Op = Unchanged
		}
		out = append(out, classified{node: n, old: old, new: e})
	}
	return out, nil
}

func nodes(cs []classified) Diff {
	out := make(Diff, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.node)
	}
	return out
}

// settle turns a moved node into affected or unchanged depending on its
// subtree.
func settle(n *Node) {
	n.Op = Unchanged
	n.Subtree = nil
	if n.Children.HasChanges() {
		n.Op = Affected
	}
}

// Classify runs the common classification and keeps moved rows.
func Classify(in *Input) (Diff, error) {
	cs, err := classify(in)
	if err != nil {
		return nil, err
	}
	return nodes(cs), nil
}

// Default ignores row order: moved rows take the op of their parent. Below
// a moved row they stay moved; otherwise they are affected or unchanged
// depending on their subtree.
func Default(in *Input) (Diff, error) {
	cs, err := classify(in)
	if err != nil {
		return nil, err
	}
	parent := in.Parent()
	for _, c := range cs {
		if c.node.Op == Moved && parent != Moved {
			settle(c.node)
		}
	}
	return nodes(cs), nil
}

// Ordered keeps moved rows so the patch can re-sequence the block.
func Ordered(in *Input) (Diff, error) {
	return Classify(in)
}

// Rewrite drops the level when nothing changed and otherwise removes every
// old row and adds every new one.
func Rewrite(in *Input) (Diff, error) {
	cs, err := classify(in)
	if err != nil {
		return nil, err
	}
	if !nodes(cs).HasChanges() {
		return nil, nil
	}
	var out Diff
	for _, e := range in.Old {
		n, err := in.Removed(e)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	for _, e := range in.New {
		n, err := in.Added(e)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Multiline treats every block as one statement: a block that changed
// anywhere is removed as a whole and added again.
func Multiline(in *Input) (Diff, error) {
	cs, err := classify(in)
	if err != nil {
		return nil, err
	}
	var out Diff
	for _, c := range cs {
		if c.old == nil || c.new == nil {
			out = append(out, c.node)
			continue
		}
		if !c.node.Children.HasChanges() {
			settle(c.node)
			out = append(out, c.node)
			continue
		}
		rm, err := in.Removed(c.old)
		if err != nil {
			return nil, err
		}
		add, err := in.Added(c.new)
		if err != nil {
			return nil, err
		}
		out = append(out, rm, add)
	}
	return out, nil
}

// UndoRedo splits a moved row without inner changes into a removal and an
// addition. All removals are emitted before the rest so the device sees a
// remove pass followed by an add pass.
func UndoRedo(in *Input) (Diff, error) {
	cs, err := classify(in)
	if err != nil {
		return nil, err
	}
	var removes, rest Diff
	for _, c := range cs {
		n := c.node
		switch {
		case n.Op == Moved && !n.Children.HasChanges():
			rm, err := in.Removed(c.old)
			if err != nil {
				return nil, err
			}
			add, err := in.Added(c.new)
			if err != nil {
				return nil, err
			}
			removes = append(removes, rm)
			rest = append(rest, add)
		case n.Op == Moved:
			settle(n)
			rest = append(rest, n)
		case n.Op == Removed:
			removes = append(removes, n)
		default:
			rest = append(rest, n)
		}
	}
	return append(removes, rest...), nil
}
