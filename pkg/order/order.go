// Package order assigns configuration rows their position within a block
// from an ordering rulebook.
package order

import (
	"math"
	"sort"
	"strings"

	"github.com/psaab/netpatch/pkg/acl"
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Unmatched is the order of rows no rule matches: after every matched row
// and before the block exit.
const Unmatched = math.MaxFloat64

// Order is the resolved position of one row.
type Order struct {
	// Value is the declaration index of the matched rule plus one, so that
	// the first rule still has distinct forward and undo signs.
	Value float64
	// Forward is false for undo rows resolved against a reverse pattern.
	Forward bool
	// Children scopes the ordering of the row's children.
	Children *rulebook.RuleSet
	// Rule is nil for unmatched rows and block exits.
	Rule *rulebook.Rule
}

// Signed returns Value for forward rows and -Value otherwise, so undo rows
// sort ahead of everything applied in the same block.
func (o Order) Signed() float64 {
	if o.Forward {
		return o.Value
	}
	return -o.Value
}

// Orderer resolves row orders against one vendor's ordering rules. It holds
// no mutable state and is safe for concurrent use.
type Orderer struct {
	rules  *rulebook.RuleSet
	vendor config.Vendor
}

// New returns an Orderer for rules.
func New(rules *rulebook.RuleSet, vendor config.Vendor) *Orderer {
	return &Orderer{rules: rules, vendor: vendor}
}

// Rules returns the top level ordering rules.
func (o *Orderer) Rules() *rulebook.RuleSet {
	return o.rules
}

// Vendor returns the vendor the orderer was built for.
func (o *Orderer) Vendor() config.Vendor {
	return o.vendor
}

type candidate struct {
	rule    *rulebook.Rule
	forward bool
	score   acl.Score
}

// GetOrder resolves row within scope; a nil scope means the top level.
// Forward rows are matched with direct patterns. Undo rows are matched with
// reverse patterns, and with the direct patterns of rules declared in
// reverse form; they resolve forward when the rule sets order_reverse.
func (o *Orderer) GetOrder(row string, forward bool, scope *rulebook.RuleSet) Order {
	if scope == nil {
		scope = o.rules
	}
	text, _ := config.SplitAnnotation(row)
	if o.vendor.Exit != "" && text == o.vendor.Exit {
		return Order{Value: math.Inf(1), Forward: true, Children: &rulebook.RuleSet{}}
	}

	var cands []candidate
	if scope != nil {
		for _, group := range [][]*rulebook.Rule{scope.Local, scope.Global} {
			for _, r := range group {
				cands = append(cands, o.match(text, forward, r)...)
			}
		}
	}
	if len(cands) == 0 {
		return Order{Value: Unmatched, Forward: forward, Children: inherit(scope)}
	}

	win := cands[0]
	for _, c := range cands[1:] {
		if win.score.Less(c.score) {
			win = c
		}
	}

	globals := [][]*rulebook.Rule{scope.Global}
	for _, c := range cands {
		if c.rule.Children != nil {
			globals = append(globals, c.rule.Children.Global)
		}
	}
	children := (&rulebook.RuleSet{}).WithGlobals(globals...)
	if !win.rule.Global && win.rule.Children != nil {
		children.Local = win.rule.Children.Local
	}
	return Order{
		Value:    float64(win.rule.Index + 1),
		Forward:  win.forward,
		Children: children,
		Rule:     win.rule,
	}
}

func (o *Orderer) match(text string, forward bool, r *rulebook.Rule) []candidate {
	score := acl.Specificity(text, r)
	if forward {
		if r.Direct.MatchString(text) {
			return []candidate{{rule: r, forward: true, score: score}}
		}
		return nil
	}
	resolved := r.OrderReverse
	if r.Reverse.MatchString(text) {
		return []candidate{{rule: r, forward: resolved, score: score}}
	}
	if rev := o.vendor.Reverse; rev != "" && strings.HasPrefix(r.ID, rev+" ") && r.Direct.MatchString(text) {
		return []candidate{{rule: r, forward: resolved, score: score}}
	}
	return nil
}

// inherit keeps only the globals of scope for the children of an unmatched
// row.
func inherit(scope *rulebook.RuleSet) *rulebook.RuleSet {
	if scope == nil {
		return &rulebook.RuleSet{}
	}
	return &rulebook.RuleSet{Global: scope.Global}
}

// Key sorts sibling rows.
type Key struct {
	Order     float64
	Rule      int
	Direction int // 0 for undo, 1 for apply
	Pos       int
}

// Less orders keys by signed order, rule index, direction and position.
func (k Key) Less(o Key) bool {
	switch {
	case k.Order != o.Order:
		return k.Order < o.Order
	case k.Rule != o.Rule:
		return k.Rule < o.Rule
	case k.Direction != o.Direction:
		return k.Direction < o.Direction
	default:
		return k.Pos < o.Pos
	}
}

// KeyFor builds the sort key of a row resolved to ord.
func KeyFor(ord Order, forward bool, pos int) Key {
	k := Key{Order: ord.Signed(), Rule: math.MaxInt, Pos: pos}
	if ord.Rule != nil {
		k.Rule = ord.Rule.Index
	}
	if forward {
		k.Direction = 1
	}
	return k
}

// OrderConfig returns a copy of t with every block reordered. Rows starting
// with the vendor reverse keyword are ordered as undo rows. Ordering an
// already ordered tree returns an equal tree.
func (o *Orderer) OrderConfig(t *config.Tree) *config.Tree {
	return o.orderLevel(t, o.rules)
}

func (o *Orderer) orderLevel(t *config.Tree, scope *rulebook.RuleSet) *config.Tree {
	type item struct {
		row   string
		key   Key
		scope *rulebook.RuleSet
	}
	items := make([]item, 0, t.Len())
	for i, row := range t.Rows() {
		text, _ := config.SplitAnnotation(row)
		forward := o.vendor.Reverse == "" || !strings.HasPrefix(text, o.vendor.Reverse+" ")
		ord := o.GetOrder(row, forward, scope)
		items = append(items, item{row: row, key: KeyFor(ord, forward, i), scope: ord.Children})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].key.Less(items[j].key) })

	out := config.New()
	for _, it := range items {
		child, _ := t.Get(it.row)
		out.Set(it.row, o.orderLevel(child, it.scope))
	}
	return out
}
