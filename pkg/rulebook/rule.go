// Package rulebook compiles the declarative per-vendor rule texts that drive
// ACL filtering, diffing, patch generation and command ordering.
package rulebook

import (
	"strings"

	"github.com/psaab/netpatch/pkg/pattern"
)

// Kind selects the parameter schema of a rulebook text.
type Kind int

const (
	KindACL Kind = iota
	KindOrdering
	KindPatching
)

func (k Kind) String() string {
	switch k {
	case KindACL:
		return "acl"
	case KindOrdering:
		return "ordering"
	case KindPatching:
		return "patching"
	default:
		return "unknown"
	}
}

// RuleType distinguishes regular rules from ACL ignore rules.
type RuleType int

const (
	Normal RuleType = iota
	// Ignore rules swallow matching rows: the row counts as not matched.
	Ignore
)

// Built-in logic names. Vendor specific logics are registered under
// "<vendor>.<name>".
const (
	LogicDefault            = "default"
	LogicOrdered            = "ordered"
	LogicRewrite            = "rewrite"
	LogicMultiline          = "multiline"
	LogicUndoRedo           = "undo_redo"
	LogicPermanent          = "permanent"
	LogicIgnoreChanges      = "ignore_changes"
	LogicDefaultInsteadUndo = "default_instead_undo"
)

// Rule is one compiled rulebook declaration. Rules are immutable once
// compiled.
type Rule struct {
	// ID is the declared row text with parameters removed.
	ID string
	// Index is the declaration ordinal within the rulebook.
	Index int
	Type  RuleType

	Direct  *pattern.Pattern
	Reverse *pattern.Pattern

	Prio   int
	Global bool

	// CantDelete and Generators are positional: entry i comes from the
	// declaration made by generator i.
	CantDelete []bool
	Generators []string
	Comments   []string

	Logic        string
	DiffLogic    string
	IgnoreCase   bool
	Parent       bool
	ForceCommit  bool
	OrderReverse bool

	// Children is nil exactly when the rule is global or ignore.
	Children *RuleSet

	reverse string
}

// Undo renders the command that reverts row: the vendor reverse keyword is
// stripped when row already starts with it and prepended otherwise.
func (r *Rule) Undo(row string) string {
	return ToggleReverse(row, r.reverse)
}

// ReverseKeyword returns the vendor reverse keyword the rule was compiled with.
func (r *Rule) ReverseKeyword() string {
	return r.reverse
}

// AllCantDelete reports whether every declaration of the rule forbids deletion.
func (r *Rule) AllCantDelete() bool {
	if len(r.CantDelete) == 0 {
		return false
	}
	for _, f := range r.CantDelete {
		if !f {
			return false
		}
	}
	return true
}

// AnyCantDelete reports whether some declaration forbids deletion.
func (r *Rule) AnyCantDelete() bool {
	for _, f := range r.CantDelete {
		if f {
			return true
		}
	}
	return false
}

// ToggleReverse strips the reverse keyword from row when present and
// prepends it otherwise.
func ToggleReverse(row, reverse string) string {
	if reverse == "" {
		return row
	}
	if rest, ok := strings.CutPrefix(row, reverse+" "); ok {
		return strings.TrimLeft(rest, " ")
	}
	return reverse + " " + row
}

// RuleSet holds the rules visible at one nesting level. Global rules stay
// visible at every depth below the level that declared them.
type RuleSet struct {
	Local  []*Rule
	Global []*Rule
}

// Empty reports whether the set holds no rules.
func (rs *RuleSet) Empty() bool {
	return rs == nil || len(rs.Local)+len(rs.Global) == 0
}

// Lookup returns the rule with the given ID, searching local rules first.
func (rs *RuleSet) Lookup(id string) *Rule {
	if rs == nil {
		return nil
	}
	for _, r := range rs.Local {
		if r.ID == id {
			return r
		}
	}
	for _, r := range rs.Global {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// WithGlobals returns a set holding rs's local rules and the union of rs's
// globals with extra. Duplicates by ID keep the first occurrence.
func (rs *RuleSet) WithGlobals(extra ...[]*Rule) *RuleSet {
	out := &RuleSet{}
	if rs != nil {
		out.Local = rs.Local
	}
	seen := make(map[string]bool)
	add := func(rules []*Rule) {
		for _, r := range rules {
			if !seen[r.ID] {
				seen[r.ID] = true
				out.Global = append(out.Global, r)
			}
		}
	}
	if rs != nil {
		add(rs.Global)
	}
	for _, rules := range extra {
		add(rules)
	}
	return out
}
