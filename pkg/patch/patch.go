package patch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/psaab/netpatch/pkg/order"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// CommitRow follows every row whose rule sets force_commit.
const CommitRow = "commit"

// Options control patch generation.
type Options struct {
	// DoCommit emits force_commit rows followed by a commit. Without it
	// those rows are left out of the patch.
	DoCommit bool
	// Registry resolves logic names; the built-in logics when nil.
	Registry *Registry
}

// UnknownLogicError reports a rule referencing an unregistered patch logic.
type UnknownLogicError struct {
	Rule string
	Name string
}

func (e *UnknownLogicError) Error() string {
	return fmt.Sprintf("rule %q: unknown patch logic %q", e.Rule, e.Name)
}

// Make generates the patch for pre, ordering every level with o.
func Make(pre *Pre, o *order.Orderer, opts Options) (*Tree, error) {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	g := &generator{order: o, reg: reg, doCommit: opts.DoCommit}
	return g.level(pre, nil)
}

type generator struct {
	order    *order.Orderer
	reg      *Registry
	doCommit bool
}

type pending struct {
	y    Yield
	rule *rulebook.Rule
	ord  order.Order
	key  order.Key
}

func direction(d Dir) int {
	switch d {
	case Undo:
		return 0
	case Apply:
		return 1
	default:
		return 2
	}
}

func (g *generator) level(pre *Pre, scope *rulebook.RuleSet) (*Tree, error) {
	var rows []pending
	if pre != nil {
		for _, a := range pre.Actions {
			logic, ok := g.reg.Lookup(a.Rule.Logic)
			if !ok {
				return nil, &UnknownLogicError{Rule: a.Rule.ID, Name: a.Rule.Logic}
			}
			if a.Rule.ForceCommit && !g.doCommit {
				continue
			}
			for _, y := range logic(a) {
				ord := g.order.GetOrder(y.Row, y.Dir != Undo, scope)
				rows = append(rows, pending{
					y:    y,
					rule: a.Rule,
					ord:  ord,
					key: order.Key{
						Order:     ord.Signed(),
						Rule:      a.Rule.Index,
						Direction: direction(y.Dir),
						Pos:       len(rows),
					},
				})
			}
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].key.Less(rows[j].key) })

	out := &Tree{}
	for _, p := range rows {
		var child *Tree
		if p.y.Children != nil && p.y.Dir != SideEffect {
			var err error
			if child, err = g.level(p.y.Children, p.ord.Children); err != nil {
				return nil, err
			}
		}
		if p.y.Container && child.Len() == 0 && !p.rule.Parent {
			continue
		}
		switch {
		case p.rule.Parent && p.y.Dir == Apply && child == nil:
			child = &Tree{}
		case !p.rule.Parent && child.Len() == 0:
			child = nil
		}
		out.Add(&Item{Row: p.y.Row, Child: child, Removed: p.y.Removed, Context: itemContext(p)})
		if p.rule.ForceCommit {
			// Commits are not configuration rows: every forced row gets its own.
			out.Items = append(out.Items, &Item{Row: CommitRow, Context: map[string]string{
				CtxRule:      p.rule.ID,
				CtxDirection: SideEffect.String(),
			}})
		}
	}
	return out, nil
}

func itemContext(p pending) map[string]string {
	ctx := map[string]string{
		CtxRule:      p.rule.ID,
		CtxDirection: p.y.Dir.String(),
		CtxOrigin:    p.y.Origin,
		CtxOrder:     strconv.FormatFloat(p.key.Order, 'g', -1, 64),
	}
	if len(p.rule.Comments) > 0 {
		ctx[CtxComment] = strings.Join(p.rule.Comments, "; ")
	}
	if len(p.y.Replaces) > 0 {
		ctx[CtxReplaces] = strings.Join(p.y.Replaces, "\n")
	}
	return ctx
}
