package diff

import (
	"strings"

	"github.com/psaab/netpatch/pkg/acl"
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Format renders the changed part of d, one row per line prefixed by the
// op sign. Unchanged rows are omitted.
func (d Diff) Format() string {
	var b strings.Builder
	format(&b, d, 0)
	return b.String()
}

func format(b *strings.Builder, d Diff, depth int) {
	for _, n := range d {
		if n.Op == Unchanged {
			continue
		}
		b.WriteString(n.Op.Sign())
		b.WriteByte(' ')
		b.WriteString(strings.Repeat("  ", depth))
		text, _ := config.SplitAnnotation(n.Row)
		b.WriteString(text)
		b.WriteByte('\n')
		format(b, n.Children, depth+1)
	}
}

// Invert returns a copy of d with added and removed swapped.
func Invert(d Diff) Diff {
	if d == nil {
		return nil
	}
	out := make(Diff, 0, len(d))
	for _, n := range d {
		cp := *n
		switch n.Op {
		case Added:
			cp.Op = Removed
		case Removed:
			cp.Op = Added
		}
		cp.Children = Invert(n.Children)
		// The subtree of a moved row describes the new side.
		cp.Subtree = nil
		out = append(out, &cp)
	}
	return out
}

// FilterACL restricts d to the rows the ACL covers. A removal is
// suppressed when the row's ACL rule, or one of the rule's local child
// rules, is marked cant_delete: the row stays as context and its children
// are judged individually. The input is not modified.
func FilterACL(d Diff, rules *rulebook.RuleSet) (Diff, error) {
	var out Diff
	for _, n := range d {
		text, _ := config.SplitAnnotation(n.Row)
		m, children, err := acl.MatchRow(text, rules, false)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		kids, err := FilterACL(n.Children, children)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Children = kids
		if n.Op == Removed && protected(m.Rule) {
			settle(&cp)
		}
		out = append(out, &cp)
	}
	return out, nil
}

func protected(r *rulebook.Rule) bool {
	if r.AnyCantDelete() {
		return true
	}
	if r.Children == nil {
		return false
	}
	for _, c := range r.Children.Local {
		if c.AnyCantDelete() {
			return true
		}
	}
	return false
}
