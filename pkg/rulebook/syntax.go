package rulebook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/psaab/netpatch/pkg/config"
)

type paramType int

const (
	boolParam paramType = iota
	intParam
	stringParam
	logicParam
	diffLogicParam
)

type paramSpec struct {
	typ paramType
	def string
}

var schemas = map[Kind]map[string]paramSpec{
	KindACL: {
		"global":      {typ: boolParam, def: "0"},
		"cant_delete": {typ: boolParam, def: "0"},
		"prio":        {typ: intParam, def: "0"},
		"comment":     {typ: stringParam},
	},
	KindOrdering: {
		"global":        {typ: boolParam, def: "0"},
		"prio":          {typ: intParam, def: "0"},
		"order_reverse": {typ: boolParam, def: "0"},
	},
	KindPatching: {
		"global":       {typ: boolParam, def: "0"},
		"prio":         {typ: intParam, def: "0"},
		"logic":        {typ: logicParam, def: LogicDefault},
		"diff_logic":   {typ: diffLogicParam, def: LogicDefault},
		"ignore_case":  {typ: boolParam, def: "0"},
		"parent":       {typ: boolParam, def: "0"},
		"force_commit": {typ: boolParam, def: "0"},
		"comment":      {typ: stringParam},
	},
}

// decl is one parsed declaration row.
type decl struct {
	text   string
	ignore bool
	params map[string]string
	line   int
}

func (d *decl) bool(name string) bool {
	v := d.params[name]
	return v == "1" || v == "true" || v == "yes"
}

func (d *decl) int(name string) int {
	n, _ := strconv.Atoi(d.params[name])
	return n
}

// parseTree parses rulebook text into a tree of raw declaration rows. The
// returned map records the first line each row was seen on.
func parseTree(text string) (*config.Tree, map[string]int, error) {
	lines := make(map[string]int)
	t, err := config.Parse(text, config.ParseOptions{
		Split: func(text string) ([]config.Line, error) {
			out := config.SplitLines(text, "")
			for i, l := range out {
				// Trailing comments are allowed after the declaration.
				if idx := strings.Index(l.Text, " #"); idx >= 0 {
					out[i].Text = strings.TrimRight(l.Text[:idx], " \t")
				}
				if _, ok := lines[out[i].Text]; !ok && out[i].Text != "" {
					lines[out[i].Text] = l.No
				}
			}
			return out, nil
		},
		Comments: []string{"#"},
	})
	if err != nil {
		return nil, nil, err
	}
	return t, lines, nil
}

// parseDecl splits a raw row into its pattern text and parameters,
// validating parameters against the schema of kind.
func parseDecl(row string, line int, kind Kind, v LogicValidator) (*decl, error) {
	d := &decl{line: line, params: make(map[string]string)}
	schema := schemas[kind]

	if rest, ok := strings.CutPrefix(row, "!"); ok {
		if kind != KindACL {
			return nil, &config.ParserError{Line: line, Row: row, Msg: "ignore rules are only allowed in ACL"}
		}
		d.ignore = true
		row = strings.TrimSpace(rest)
	}

	var words []string
	for _, tok := range strings.Fields(row) {
		if !strings.HasPrefix(tok, "%") {
			words = append(words, tok)
			continue
		}
		name, value, hasValue := strings.Cut(tok[1:], "=")
		spec, ok := schema[name]
		if !ok {
			return nil, &config.ParserError{Line: line, Row: row, Msg: fmt.Sprintf("unknown %s parameter %q", kind, name)}
		}
		if !hasValue {
			if spec.typ != boolParam {
				return nil, &config.ParserError{Line: line, Row: row, Msg: fmt.Sprintf("parameter %q needs a value", name)}
			}
			value = "1"
		}
		if err := checkParam(name, value, spec, v); err != nil {
			return nil, &config.ParserError{Line: line, Row: row, Msg: err.Error()}
		}
		d.params[name] = value
	}
	for name, spec := range schema {
		if _, ok := d.params[name]; !ok {
			d.params[name] = spec.def
		}
	}
	d.text = strings.Join(words, " ")
	if d.text == "" {
		return nil, &config.ParserError{Line: line, Row: row, Msg: "empty rule"}
	}
	return d, nil
}

func checkParam(name, value string, spec paramSpec, v LogicValidator) error {
	switch spec.typ {
	case boolParam:
		switch value {
		case "0", "1", "true", "false", "yes", "no":
			return nil
		}
		return fmt.Errorf("parameter %q: invalid boolean %q", name, value)
	case intParam:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("parameter %q: invalid integer %q", name, value)
		}
	case logicParam:
		if !v.ValidLogic(value) {
			return fmt.Errorf("unknown logic %q", value)
		}
	case diffLogicParam:
		if !v.ValidDiffLogic(value) {
			return fmt.Errorf("unknown diff logic %q", value)
		}
	}
	return nil
}

// LogicValidator decides which logic names a rulebook may reference.
type LogicValidator interface {
	ValidLogic(name string) bool
	ValidDiffLogic(name string) bool
}

// builtinLogics accepts the built-in logic names only.
type builtinLogics struct{}

func (builtinLogics) ValidLogic(name string) bool {
	switch name {
	case LogicDefault, LogicOrdered, LogicRewrite, LogicPermanent, LogicIgnoreChanges,
		LogicUndoRedo, LogicDefaultInsteadUndo:
		return true
	}
	return false
}

func (builtinLogics) ValidDiffLogic(name string) bool {
	switch name {
	case LogicDefault, LogicOrdered, LogicRewrite, LogicMultiline, LogicUndoRedo:
		return true
	}
	return false
}
