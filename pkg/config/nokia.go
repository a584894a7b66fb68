package config

import (
	"strings"
)

// nokiaDialect handles SR OS MD-CLI "info" output: blocks open with a
// trailing '{' and close with a lone '}', leaves carry no terminator. The
// "configure" root block is kept as a regular row.
type nokiaDialect struct{}

func (nokiaDialect) Vendor() Vendor {
	return Vendor{Name: "nokia", Reverse: "delete"}
}

func (nokiaDialect) Parse(text string) (*Tree, error) {
	return Parse(text, ParseOptions{
		Comments: []string{"#"},
		Split:    splitNokia,
	})
}

// splitNokia rewrites brace nesting into indentation so that the shared
// indentation stack builds the tree.
func splitNokia(text string) ([]Line, error) {
	var out []Line
	depth := 0
	for _, l := range SplitLines(text, "") {
		switch {
		case l.Text == "" || strings.HasPrefix(l.Text, "#"):
			continue
		case l.Text == "}":
			depth--
			if depth < 0 {
				return nil, &ParserError{Line: l.No, Row: l.Text, Msg: "unbalanced brace"}
			}
		case strings.HasSuffix(l.Text, "{"):
			row := strings.TrimSpace(strings.TrimSuffix(l.Text, "{"))
			out = append(out, Line{No: l.No, Indent: depth, Text: row})
			depth++
		default:
			out = append(out, Line{No: l.No, Indent: depth, Text: l.Text})
		}
	}
	if depth != 0 {
		return nil, &ParserError{Msg: "unexpected end of input, missing '}'"}
	}
	return out, nil
}

func (nokiaDialect) Join(t *Tree) string {
	var b strings.Builder
	formatBraces(&b, t, 0, "")
	return b.String()
}

func (d nokiaDialect) Normalize(text string) string {
	t, err := d.Parse(text)
	if err != nil {
		return text
	}
	return d.Join(t)
}

func (nokiaDialect) FormatPatch(cmds []*Command) string {
	var b strings.Builder
	formatBraceCommands(&b, cmds, 0, "")
	return b.String()
}

// Commands renders the patch as absolute MD-CLI paths.
func (nokiaDialect) Commands(cmds []*Command) []string {
	var out []string
	for _, path := range CmdPaths(cmds) {
		out = append(out, flatCommand(path, "delete", "/"))
	}
	for i, c := range out {
		if strings.HasPrefix(c, "delete ") {
			out[i] = "delete /" + strings.TrimPrefix(c, "delete ")
		}
	}
	return out
}
