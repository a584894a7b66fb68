package acl

import (
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Options control Filter.
type Options struct {
	// Fatal turns the first row the ACL does not allow into an *Error
	// instead of dropping it.
	Fatal bool
	// Exclusive fails rows that several generators mark as not deletable.
	Exclusive bool
}

// Filter returns the subset of t the ACL allows. Row order is preserved and
// the input is not modified.
func Filter(t *config.Tree, rules *rulebook.RuleSet, opts Options) (*config.Tree, error) {
	return filter(t, rules, nil, opts)
}

func filter(t *config.Tree, rules *rulebook.RuleSet, path []string, opts Options) (*config.Tree, error) {
	out := config.New()
	for _, row := range t.Rows() {
		m, children, err := MatchRow(row, rules, opts.Exclusive)
		if err != nil {
			return nil, err
		}
		if m == nil {
			if opts.Fatal {
				return nil, &Error{Path: append([]string(nil), path...), Row: row}
			}
			continue
		}
		child, _ := t.Get(row)
		sub, err := filter(child, children, append(path[:len(path):len(path)], row), opts)
		if err != nil {
			return nil, err
		}
		out.Set(row, sub)
	}
	return out, nil
}

// Forbidden is a row rejected by Check.
type Forbidden struct {
	Path []string
	Row  string
}

// Check lists every row of t the ACL does not allow. Children of a
// forbidden row are not reported separately.
func Check(t *config.Tree, rules *rulebook.RuleSet) ([]Forbidden, error) {
	var out []Forbidden
	var walk func(t *config.Tree, rules *rulebook.RuleSet, path []string) error
	walk = func(t *config.Tree, rules *rulebook.RuleSet, path []string) error {
		for _, row := range t.Rows() {
			m, children, err := MatchRow(row, rules, false)
			if err != nil {
				return err
			}
			if m == nil {
				out = append(out, Forbidden{Path: append([]string(nil), path...), Row: row})
				continue
			}
			child, _ := t.Get(row)
			if err := walk(child, children, append(path[:len(path):len(path)], row)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t, rules, nil); err != nil {
		return nil, err
	}
	return out, nil
}
