// Package diff computes rule-driven differences between configuration trees.
//
// Every row is matched against the patching rules; the diff logic of the
// matched rule decides how the rows of one level are classified. Rows that
// share a logic are diffed together, so positional moves are only detected
// among rows of the same logic.
package diff

import (
	"strings"

	"github.com/psaab/netpatch/pkg/acl"
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Op is the kind of change a node records.
type Op int

// Ops sort Unchanged < Affected < Moved < Removed < Added when ties between
// nodes have to be broken.
const (
	Unchanged Op = iota
	Affected
	Moved
	Removed
	Added
)

func (o Op) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Affected:
		return "affected"
	case Moved:
		return "moved"
	case Removed:
		return "removed"
	case Added:
		return "added"
	default:
		return "unknown"
	}
}

// Sign returns the one-character prefix used when a diff is printed.
func (o Op) Sign() string {
	switch o {
	case Added:
		return "+"
	case Removed:
		return "-"
	case Moved:
		return ">"
	default:
		return " "
	}
}

// Node is one row of a diff.
type Node struct {
	Op       Op
	Row      string
	Children Diff
	// Match is the patching rule the row matched.
	Match *acl.Match
	// Subtree is set on moved rows only: the row's whole new block as added
	// nodes, for logics that re-create a moved row in its new place.
	Subtree Diff
}

// Diff is one level of a diff tree in emission order.
type Diff []*Node

// HasChanges reports whether any node below d adds, removes or moves a row.
func (d Diff) HasChanges() bool {
	for _, n := range d {
		switch n.Op {
		case Added, Removed, Moved:
			return true
		}
		if n.Children.HasChanges() {
			return true
		}
	}
	return false
}

// Walk calls fn for every node depth-first with the rows of its ancestors.
func (d Diff) Walk(fn func(path []string, n *Node)) {
	var walk func(path []string, d Diff)
	walk = func(path []string, d Diff) {
		for _, n := range d {
			fn(path, n)
			walk(append(path[:len(path):len(path)], n.Row), n.Children)
		}
	}
	walk(nil, d)
}

// Entry is one row of a level offered to a diff logic.
type Entry struct {
	// Row is the original row text, annotation included.
	Row string
	// ID identifies the row across old and new: the row text without its
	// annotation, lower-cased when the rule ignores case.
	ID    string
	Child *config.Tree
	Match *acl.Match
	// Rules scopes the row's children.
	Rules *rulebook.RuleSet
}

// Input is what a diff logic receives: the old and new rows of one level
// that matched rules using the logic, in tree order.
type Input struct {
	Old []*Entry
	New []*Entry
	// Stack holds the ops of the enclosing nodes, innermost last.
	Stack []Op

	d *differ
}

// Parent returns the op of the enclosing node. The root level behaves as if
// it were nested in an affected node.
func (in *Input) Parent() Op {
	if len(in.Stack) == 0 {
		return Affected
	}
	return in.Stack[len(in.Stack)-1]
}

// Sub diffs the children of old against the children of new. Either entry
// may be nil.
func (in *Input) Sub(old, new *Entry, op Op) (Diff, error) {
	var (
		oc, nc *config.Tree
		rules  *rulebook.RuleSet
	)
	if old != nil {
		oc, rules = old.Child, old.Rules
	}
	if new != nil {
		nc, rules = new.Child, new.Rules
	}
	return in.d.level(oc, nc, rules, append(in.Stack[:len(in.Stack):len(in.Stack)], op))
}

// Removed builds a node removing e and its whole subtree.
func (in *Input) Removed(e *Entry) (*Node, error) {
	children, err := in.Sub(e, nil, Removed)
	if err != nil {
		return nil, err
	}
	return &Node{Op: Removed, Row: e.Row, Children: children, Match: e.Match}, nil
}

// Added builds a node adding e and its whole subtree.
func (in *Input) Added(e *Entry) (*Node, error) {
	children, err := in.Sub(nil, e, Added)
	if err != nil {
		return nil, err
	}
	return &Node{Op: Added, Row: e.Row, Children: children, Match: e.Match}, nil
}

// Make diffs old against new under the patching rules. Rows no rule matches
// are left out. Neither tree is modified. A nil registry means the built-in
// logics.
func Make(old, new *config.Tree, rules *rulebook.RuleSet, reg *Registry) (Diff, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	d := &differ{reg: reg}
	return d.level(old, new, rules, nil)
}

type differ struct {
	reg *Registry
}

type group struct {
	logic string
	in    *Input
}

func (d *differ) level(old, new *config.Tree, rules *rulebook.RuleSet, stack []Op) (Diff, error) {
	oldEntries, err := entries(old, rules)
	if err != nil {
		return nil, err
	}
	newEntries, err := entries(new, rules)
	if err != nil {
		return nil, err
	}

	var groups []*group
	byLogic := make(map[string]*group)
	lookup := func(e *Entry) *group {
		name := e.Match.Rule.DiffLogic
		g, ok := byLogic[name]
		if !ok {
			g = &group{logic: name, in: &Input{Stack: stack, d: d}}
			byLogic[name] = g
			groups = append(groups, g)
		}
		return g
	}
	for _, e := range oldEntries {
		g := lookup(e)
		g.in.Old = append(g.in.Old, e)
	}
	for _, e := range newEntries {
		g := lookup(e)
		g.in.New = append(g.in.New, e)
	}

	var out Diff
	for _, g := range groups {
		logic, ok := d.reg.Lookup(g.logic)
		if !ok {
			return nil, &UnknownLogicError{Name: g.logic}
		}
		nodes, err := logic(g.in)
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

// entries matches the rows of t. Rows that collapse to the same ID are
// merged into the first one.
func entries(t *config.Tree, rules *rulebook.RuleSet) ([]*Entry, error) {
	var out []*Entry
	byID := make(map[string]*Entry)
	for _, row := range t.Rows() {
		text, _ := config.SplitAnnotation(row)
		m, children, err := acl.MatchRow(text, rules, false)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		id := text
		if m.Rule.IgnoreCase {
			id = strings.ToLower(text)
		}
		child, _ := t.Get(row)
		if prev, ok := byID[id]; ok {
			merged := prev.Child.Clone()
			if merged == nil {
				merged = config.New()
			}
			merged.Merge(child)
			prev.Child = merged
			continue
		}
		e := &Entry{Row: row, ID: id, Child: child, Match: m, Rules: children}
		byID[id] = e
		out = append(out, e)
	}
	return out, nil
}

// UnknownLogicError reports a rule referencing a diff logic that is not
// registered.
type UnknownLogicError struct {
	Name string
}

func (e *UnknownLogicError) Error() string {
	return "unknown diff logic " + e.Name
}
