package config

import (
	"fmt"
	"strings"
)

// juniperDialect handles Junos hierarchical syntax: blocks in braces,
// statements terminated by ';'. Patches are typed as flat set/delete
// commands.
type juniperDialect struct{}

func (juniperDialect) Vendor() Vendor {
	return Vendor{Name: "juniper", Reverse: "delete"}
}

func (juniperDialect) Parse(text string) (*Tree, error) {
	p := &braceParser{lex: NewLexer(text)}
	root := New()
	if err := p.parseBlock(root, false); err != nil {
		return nil, err
	}
	return root, nil
}

type braceParser struct {
	lex *Lexer
}

// parseBlock reads statements into t until '}' (nested) or EOF (top level).
func (p *braceParser) parseBlock(t *Tree, nested bool) error {
	var words []string
	for {
		tok := p.lex.Next()
		switch tok.Type {
		case TokenWord, TokenString:
			words = append(words, tok.Value)
		case TokenSemicolon:
			if len(words) == 0 {
				return &ParserError{Line: tok.Line, Row: ";", Msg: "empty statement"}
			}
			t.Child(strings.Join(words, " "))
			words = nil
		case TokenLBrace:
			if len(words) == 0 {
				return &ParserError{Line: tok.Line, Row: "{", Msg: "block without name"}
			}
			child := t.Child(strings.Join(words, " "))
			words = nil
			if err := p.parseBlock(child, true); err != nil {
				return err
			}
		case TokenRBrace:
			if !nested {
				return &ParserError{Line: tok.Line, Row: "}", Msg: "unbalanced brace"}
			}
			if len(words) > 0 {
				return &ParserError{Line: tok.Line, Row: strings.Join(words, " "), Msg: "missing ';'"}
			}
			return nil
		case TokenEOF:
			if nested {
				return &ParserError{Line: tok.Line, Msg: "unexpected end of input, missing '}'"}
			}
			if len(words) > 0 {
				return &ParserError{Line: tok.Line, Row: strings.Join(words, " "), Msg: "missing ';'"}
			}
			return nil
		default:
			return &ParserError{Line: tok.Line, Row: tok.Value, Msg: "unexpected token"}
		}
	}
}

// Join renders the tree as Junos hierarchical configuration text.
func (juniperDialect) Join(t *Tree) string {
	var b strings.Builder
	formatBraces(&b, t, 0, ";")
	return b.String()
}

func formatBraces(b *strings.Builder, t *Tree, indent int, term string) {
	prefix := strings.Repeat("    ", indent)
	for _, row := range t.Rows() {
		child, _ := t.Get(row)
		if child.Len() == 0 {
			fmt.Fprintf(b, "%s%s%s\n", prefix, row, term)
			continue
		}
		fmt.Fprintf(b, "%s%s {\n", prefix, row)
		formatBraces(b, child, indent+1, term)
		fmt.Fprintf(b, "%s}\n", prefix)
	}
}

func (d juniperDialect) Normalize(text string) string {
	t, err := d.Parse(text)
	if err != nil {
		return text
	}
	return d.Join(t)
}

func (juniperDialect) FormatPatch(cmds []*Command) string {
	var b strings.Builder
	formatBraceCommands(&b, cmds, 0, ";")
	return b.String()
}

func formatBraceCommands(b *strings.Builder, cmds []*Command, indent int, term string) {
	prefix := strings.Repeat("    ", indent)
	for _, c := range cmds {
		if !c.Block {
			fmt.Fprintf(b, "%s%s%s\n", prefix, c.Row, term)
			continue
		}
		fmt.Fprintf(b, "%s%s {\n", prefix, c.Row)
		formatBraceCommands(b, c.Children, indent+1, term)
		fmt.Fprintf(b, "%s}\n", prefix)
	}
}

// Commands renders the patch as flat "set"/"delete" commands.
func (juniperDialect) Commands(cmds []*Command) []string {
	var out []string
	for _, path := range CmdPaths(cmds) {
		out = append(out, flatCommand(path, "delete", "set "))
	}
	return out
}

// flatCommand turns a row path into one flat command. A path whose last row
// starts with reverse becomes a deletion of the path; everything else is
// prefixed with set.
func flatCommand(path []string, reverse, set string) string {
	last := path[len(path)-1]
	parents := path[:len(path)-1]
	if strings.HasPrefix(last, reverse+" ") {
		rest := append(append([]string(nil), parents...), strings.TrimPrefix(last, reverse+" "))
		return reverse + " " + strings.Join(rest, " ")
	}
	return set + strings.Join(path, " ")
}
