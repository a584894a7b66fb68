// Package acl matches configuration rows against compiled rule sets and
// restricts configuration trees to what an ACL allows.
//
// The same best-match logic selects patching rules for the diff engine, so
// it is written against rulebook.RuleSet rather than ACL rules only.
package acl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Error reports a row that no ACL rule allows.
type Error struct {
	Path []string
	Row  string
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("row %q is not allowed by ACL", e.Row)
	}
	return fmt.Sprintf("row %q under %q is not allowed by ACL", e.Row, strings.Join(e.Path, " / "))
}

// NotExclusiveError reports a row that several generators mark as not
// deletable.
type NotExclusiveError struct {
	Row        string
	Generators []string
	Rules      []string
}

func (e *NotExclusiveError) Error() string {
	return fmt.Sprintf("ACL not exclusive: %q is claimed by generators %s (rules %q)",
		e.Row, strings.Join(e.Generators, ", "), e.Rules)
}

// Match is the winning rule for a row.
type Match struct {
	Rule      *rulebook.Rule
	IsReverse bool
	// Key identifies the object the row configures (joined key captures).
	Key    string
	Values map[string]string
}

// Score orders candidate rules: priority first, then character overlap.
type Score struct {
	Prio    int
	Overlap float64
}

// Less reports whether s ranks below o.
func (s Score) Less(o Score) bool {
	if s.Prio != o.Prio {
		return s.Prio < o.Prio
	}
	return s.Overlap < o.Overlap
}

// Specificity scores how well rule fits row: the rule priority and the
// share of the row's distinct characters that also occur in the rule text.
func Specificity(row string, rule *rulebook.Rule) Score {
	return Score{Prio: rule.Prio, Overlap: Overlap(row, rule.ID)}
}

// Overlap returns |chars(row) ∩ chars(text)| / len(row).
func Overlap(row, text string) float64 {
	if len(row) == 0 {
		return 0
	}
	inText := make(map[rune]bool, len(text))
	for _, r := range text {
		inText[r] = true
	}
	seen := make(map[rune]bool, len(row))
	common := 0
	for _, r := range row {
		if seen[r] {
			continue
		}
		seen[r] = true
		if inText[r] {
			common++
		}
	}
	return float64(common) / float64(len(row))
}

type candidate struct {
	rule    *rulebook.Rule
	reverse bool
	key     string
	values  map[string]string
	score   Score
}

// Candidates returns every rule of rules matching row: forward patterns of
// local then global rules first, then reverse patterns in the same order.
func candidates(row string, rules *rulebook.RuleSet) []candidate {
	if rules == nil {
		return nil
	}
	text, _ := config.SplitAnnotation(row)
	var out []candidate
	for _, reverse := range []bool{false, true} {
		for _, group := range [][]*rulebook.Rule{rules.Local, rules.Global} {
			for _, r := range group {
				p := r.Direct
				if reverse {
					p = r.Reverse
				}
				res, ok := p.Match(text)
				if !ok {
					continue
				}
				out = append(out, candidate{
					rule:    r,
					reverse: reverse,
					key:     res.Key,
					values:  res.Values,
					score:   Specificity(text, r),
				})
			}
		}
	}
	return out
}

// best returns the index of the highest scoring candidate; the earliest
// wins ties.
func best(cands []candidate) int {
	win := 0
	for i := 1; i < len(cands); i++ {
		if cands[win].score.Less(cands[i].score) {
			win = i
		}
	}
	return win
}

// MatchRow finds the best rule for row. It returns a nil Match when no
// rule matches or when the best rule is an ignore rule. The returned rule
// set scopes the row's children: the winner's own rules when it is a local
// rule, plus the global rules of the parent and of every matching
// candidate's block.
//
// With exclusive set, MatchRow fails when more than one generator marks the
// row as not deletable.
func MatchRow(row string, rules *rulebook.RuleSet, exclusive bool) (*Match, *rulebook.RuleSet, error) {
	cands := candidates(row, rules)
	if len(cands) == 0 {
		return nil, nil, nil
	}
	if exclusive {
		if err := checkExclusive(row, cands); err != nil {
			return nil, nil, err
		}
	}

	w := cands[best(cands)]
	if w.rule.Type == rulebook.Ignore {
		return nil, nil, nil
	}

	var local *rulebook.RuleSet
	if !w.rule.Global {
		local = w.rule.Children
	}
	globals := [][]*rulebook.Rule{rules.Global}
	for _, c := range cands {
		if c.rule.Children != nil {
			globals = append(globals, c.rule.Children.Global)
		}
	}
	children := (&rulebook.RuleSet{}).WithGlobals(globals...)
	if local != nil {
		children.Local = local.Local
	}

	return &Match{
		Rule:      w.rule,
		IsReverse: w.reverse,
		Key:       w.key,
		Values:    w.values,
	}, children, nil
}

func checkExclusive(row string, cands []candidate) error {
	contributors := make(map[string]bool)
	cantDelete := make(map[string]bool)
	var rules []string
	for _, c := range cands {
		for i, gen := range c.rule.Generators {
			if gen == "" {
				continue
			}
			contributors[gen] = true
			if i < len(c.rule.CantDelete) && c.rule.CantDelete[i] {
				if !cantDelete[gen] {
					rules = append(rules, c.rule.ID)
				}
				cantDelete[gen] = true
			}
		}
	}
	if len(contributors) < 2 || len(cantDelete) < 2 {
		return nil
	}
	gens := make([]string, 0, len(cantDelete))
	for g := range cantDelete {
		gens = append(gens, g)
	}
	sort.Strings(gens)
	return &NotExclusiveError{Row: row, Generators: gens, Rules: rules}
}
