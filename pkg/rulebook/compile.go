package rulebook

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/pattern"
)

// CompileError wraps a rulebook compilation failure with its vendor and kind.
type CompileError struct {
	Vendor string
	Kind   Kind
	Source string // generator or file name, may be empty
	Err    error
}

func (e *CompileError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("compile %s %s rules (%s): %v", e.Vendor, e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("compile %s %s rules: %v", e.Vendor, e.Kind, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Source is one rule text together with the generator that supplied it.
type Source struct {
	Generator string
	Text      string
}

// Options tune compilation.
type Options struct {
	// Patterns memoizes row patterns. A private cache is used when nil.
	Patterns *pattern.Cache
	// Logics validates logic names. Only built-in names are accepted when nil.
	Logics LogicValidator
}

// FallbackID is the ID of the implicit catch-all patching rule.
const FallbackID = "~"

// CompileACL compiles ACL texts. Declarations from different sources with
// the same ID are merged; their cant_delete flags stay attributed to the
// generator that declared them.
func CompileACL(vendor config.Vendor, sources []Source, opts Options) (*RuleSet, error) {
	return compileSources(vendor, KindACL, sources, opts)
}

// CompileOrdering compiles an ordering rule text.
func CompileOrdering(vendor config.Vendor, text string, opts Options) (*RuleSet, error) {
	return compileSources(vendor, KindOrdering, []Source{{Text: text}}, opts)
}

// CompilePatching compiles a patching rule text. A global catch-all rule
// with default logics is appended unless the text declares one.
func CompilePatching(vendor config.Vendor, text string, opts Options) (*RuleSet, error) {
	rs, err := compileSources(vendor, KindPatching, []Source{{Text: text}}, opts)
	if err != nil {
		return nil, err
	}
	if rs.Lookup(FallbackID) == nil {
		c, _ := newCompiler(vendor, KindPatching, opts)
		fallback := &Rule{
			ID:        FallbackID,
			Index:     math.MaxInt32,
			Global:    true,
			Prio:      math.MinInt32,
			Logic:     LogicDefault,
			DiffLogic: LogicDefault,
			reverse:   vendor.Reverse,
		}
		if fallback.Direct, err = c.patterns.Compile(FallbackID, 0); err != nil {
			return nil, err
		}
		if fallback.Reverse, err = c.patterns.Compile(FallbackID, 0); err != nil {
			return nil, err
		}
		rs.Global = append(rs.Global, fallback)
	}
	return rs, nil
}

type compiler struct {
	vendor   config.Vendor
	kind     Kind
	patterns *pattern.Cache
	logics   LogicValidator
	next     int
}

func newCompiler(vendor config.Vendor, kind Kind, opts Options) (*compiler, error) {
	c := &compiler{vendor: vendor, kind: kind, patterns: opts.Patterns, logics: opts.Logics}
	if c.patterns == nil {
		p, err := pattern.NewCache(0, nil)
		if err != nil {
			return nil, err
		}
		c.patterns = p
	}
	if c.logics == nil {
		c.logics = builtinLogics{}
	}
	return c, nil
}

// input is one source's subtree at the level being compiled.
type input struct {
	tree      *config.Tree
	lines     map[string]int
	generator string
}

func compileSources(vendor config.Vendor, kind Kind, sources []Source, opts Options) (*RuleSet, error) {
	c, err := newCompiler(vendor, kind, opts)
	if err != nil {
		return nil, err
	}
	inputs := make([]input, 0, len(sources))
	for _, src := range sources {
		t, lines, err := parseTree(src.Text)
		if err != nil {
			return nil, &CompileError{Vendor: vendor.Name, Kind: kind, Source: src.Generator, Err: err}
		}
		inputs = append(inputs, input{tree: t, lines: lines, generator: src.Generator})
	}
	rs, err := c.compileLevel(inputs)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &CompileError{Vendor: vendor.Name, Kind: kind, Err: err}
	}
	return rs, nil
}

// pending accumulates every declaration of one rule ID at one level.
type pending struct {
	rule     *Rule
	children []input
}

func (c *compiler) compileLevel(inputs []input) (*RuleSet, error) {
	var order []string
	byID := make(map[string]*pending)

	for _, in := range inputs {
		for _, row := range in.tree.Rows() {
			d, err := parseDecl(row, in.lines[row], c.kind, c.logics)
			if err != nil {
				return nil, err
			}
			child, _ := in.tree.Get(row)
			p, ok := byID[d.text]
			if !ok {
				r, err := c.newRule(d)
				if err != nil {
					return nil, err
				}
				p = &pending{rule: r}
				byID[d.text] = p
				order = append(order, d.text)
			} else if (p.rule.Type == Ignore) != d.ignore {
				return nil, &config.ParserError{Line: d.line, Row: row, Msg: "rule declared both as ignore and normal"}
			}
			merge(p.rule, d, in.generator)
			if child.Len() > 0 {
				p.children = append(p.children, input{tree: child, lines: in.lines, generator: in.generator})
			}
		}
	}

	rs := &RuleSet{}
	for _, id := range order {
		p := byID[id]
		r := p.rule
		if r.IgnoreCase && r.Direct.Flags()&pattern.IgnoreCase == 0 {
			if err := c.compilePatterns(r, pattern.IgnoreCase); err != nil {
				return nil, err
			}
		}
		if r.Global || r.Type == Ignore {
			if len(p.children) > 0 {
				what := "global"
				if r.Type == Ignore {
					what = "ignore"
				}
				return nil, &config.ParserError{Row: id, Msg: what + " rule cannot have children"}
			}
		} else {
			children, err := c.compileLevel(p.children)
			if err != nil {
				return nil, err
			}
			r.Children = children
		}
		if r.Global {
			rs.Global = append(rs.Global, r)
		} else {
			rs.Local = append(rs.Local, r)
		}
	}
	return rs, nil
}

func (c *compiler) newRule(d *decl) (*Rule, error) {
	r := &Rule{
		ID:        d.text,
		Index:     c.next,
		Logic:     LogicDefault,
		DiffLogic: LogicDefault,
		reverse:   c.vendor.Reverse,
	}
	c.next++
	if d.ignore {
		r.Type = Ignore
	}
	var flags pattern.Flags
	if d.bool("ignore_case") {
		flags |= pattern.IgnoreCase
	}
	if err := c.compilePatterns(r, flags); err != nil {
		return nil, withLine(err, d.line)
	}
	return r, nil
}

func (c *compiler) compilePatterns(r *Rule, flags pattern.Flags) error {
	var err error
	if r.Direct, err = c.patterns.Compile(r.ID, flags); err != nil {
		return err
	}
	r.Reverse, err = c.patterns.Compile(ToggleReverse(r.ID, c.vendor.Reverse), flags)
	return err
}

func withLine(err error, line int) error {
	var pe *config.ParserError
	if errors.As(err, &pe) && pe.Line == 0 {
		cp := *pe
		cp.Line = line
		return &cp
	}
	return err
}

// merge folds one declaration into the rule accumulated for its ID.
func merge(r *Rule, d *decl, generator string) {
	r.Global = r.Global || d.bool("global")
	if p := d.int("prio"); len(r.Generators) == 0 || p > r.Prio {
		r.Prio = p
	}
	r.Generators = append(r.Generators, generator)
	r.CantDelete = append(r.CantDelete, d.bool("cant_delete"))
	if cm := strings.TrimSpace(d.params["comment"]); cm != "" {
		r.Comments = append(r.Comments, cm)
	}
	if l := d.params["logic"]; l != "" && l != LogicDefault {
		r.Logic = l
	}
	if l := d.params["diff_logic"]; l != "" && l != LogicDefault {
		r.DiffLogic = l
	}
	r.IgnoreCase = r.IgnoreCase || d.bool("ignore_case")
	r.Parent = r.Parent || d.bool("parent")
	r.ForceCommit = r.ForceCommit || d.bool("force_commit")
	r.OrderReverse = r.OrderReverse || d.bool("order_reverse")
}
