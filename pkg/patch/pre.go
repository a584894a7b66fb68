// Package patch turns diffs into ordered vendor command trees.
//
// Diff nodes of one level are grouped per (rule, key) into an Action; the
// patch logic of the rule turns each Action into directional rows which are
// then ordered with the vendor's ordering rules.
package patch

import (
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/diff"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Action holds the diff nodes of one level that matched the same rule with
// the same key.
type Action struct {
	Rule *rulebook.Rule
	Key  string

	Added     []*diff.Node
	Removed   []*diff.Node
	Affected  []*diff.Node
	Moved     []*diff.Node
	Unchanged []*diff.Node
}

// Pre is a diff level grouped into actions in first-appearance order.
type Pre struct {
	Actions []*Action
}

// Empty reports whether p holds no action.
func (p *Pre) Empty() bool {
	return p == nil || len(p.Actions) == 0
}

type actionKey struct {
	rule *rulebook.Rule
	key  string
}

// MakePre groups one diff level. Children are grouped lazily when a logic
// descends into them.
func MakePre(d diff.Diff) *Pre {
	p := &Pre{}
	byKey := make(map[actionKey]*Action)
	for _, n := range d {
		if n.Match == nil {
			continue
		}
		k := actionKey{rule: n.Match.Rule, key: n.Match.Key}
		a, ok := byKey[k]
		if !ok {
			a = &Action{Rule: n.Match.Rule, Key: n.Match.Key}
			byKey[k] = a
			p.Actions = append(p.Actions, a)
		}
		switch n.Op {
		case diff.Added:
			a.Added = append(a.Added, n)
		case diff.Removed:
			a.Removed = append(a.Removed, n)
		case diff.Affected:
			a.Affected = append(a.Affected, n)
		case diff.Moved:
			a.Moved = append(a.Moved, n)
		default:
			a.Unchanged = append(a.Unchanged, n)
		}
	}
	return p
}

// Dir is the direction of a generated row.
type Dir int

const (
	Apply Dir = iota
	Undo
	// SideEffect rows are commands the device needs besides the change
	// itself. They never open a block.
	SideEffect
)

func (d Dir) String() string {
	switch d {
	case Undo:
		return "undo"
	case SideEffect:
		return "side-effect"
	default:
		return "apply"
	}
}

func parseDir(s string) Dir {
	switch s {
	case "undo":
		return Undo
	case "side-effect":
		return SideEffect
	default:
		return Apply
	}
}

// Yield is one row produced by a patch logic.
type Yield struct {
	Dir Dir
	Row string
	// Origin is the configuration row the yield was derived from.
	Origin string
	// Children, when set, is patched into the row's block.
	Children *Pre
	// Container rows are only emitted when their block is not empty.
	Container bool
	// Replaces lists rows an applied row overwrites in place.
	Replaces []string
	// Removed is the block an undo row deletes along with the row.
	Removed *config.Tree
}

func text(n *diff.Node) string {
	t, _ := config.SplitAnnotation(n.Row)
	return t
}

// Enter yields n as a container for the changes below it.
func Enter(n *diff.Node) Yield {
	t := text(n)
	return Yield{Dir: Apply, Row: t, Origin: t, Children: MakePre(n.Children), Container: true}
}

// Add yields n applied together with its subtree.
func Add(n *diff.Node) Yield {
	t := text(n)
	y := Yield{Dir: Apply, Row: t, Origin: t}
	if len(n.Children) > 0 {
		y.Children = MakePre(n.Children)
	}
	return y
}

// Readd yields a moved row applied again with its whole new block, for
// logics that undo the row first.
func Readd(n *diff.Node) Yield {
	t := text(n)
	y := Yield{Dir: Apply, Row: t, Origin: t}
	if len(n.Subtree) > 0 {
		y.Children = MakePre(n.Subtree)
	}
	return y
}

// Remove yields the undo command of n. The subtree goes with the row.
func Remove(a *Action, n *diff.Node) Yield {
	t := text(n)
	return Yield{Dir: Undo, Row: a.Rule.Undo(t), Origin: t, Removed: block(n.Children)}
}

// block rebuilds the configuration rows of a diff level.
func block(d diff.Diff) *config.Tree {
	if len(d) == 0 {
		return nil
	}
	t := config.New()
	for _, n := range d {
		t.Set(text(n), block(n.Children))
	}
	return t
}
