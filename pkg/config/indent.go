package config

import (
	"strings"
)

// indentDialect handles vendors whose blocks are expressed by indentation
// alone and closed with an explicit exit keyword when typed interactively.
type indentDialect struct {
	vendor   Vendor
	indent   string
	comments []string
	skip     map[string]bool
}

func newIndentDialect(v Vendor, indent string, comments []string, terminators ...string) *indentDialect {
	skip := make(map[string]bool, len(terminators))
	for _, t := range terminators {
		skip[t] = true
	}
	return &indentDialect{vendor: v, indent: indent, comments: comments, skip: skip}
}

func (d *indentDialect) Vendor() Vendor { return d.vendor }

func (d *indentDialect) Parse(text string) (*Tree, error) {
	return Parse(text, ParseOptions{
		Comments: d.comments,
		Skip:     func(text string) bool { return d.skip[text] },
	})
}

func (d *indentDialect) Join(t *Tree) string {
	return Join(t, d.indent)
}

func (d *indentDialect) Normalize(text string) string {
	t, err := d.Parse(text)
	if err != nil {
		return Normalize(text, d.comments)
	}
	// Whitespace inside rows is collapsed; indentation is canonical.
	out := New()
	collapse(t, out)
	return d.Join(out)
}

func collapse(src, dst *Tree) {
	for _, row := range src.Rows() {
		child, _ := src.Get(row)
		collapse(child, dst.Child(strings.Join(strings.Fields(row), " ")))
	}
}

func (d *indentDialect) FormatPatch(cmds []*Command) string {
	var b strings.Builder
	d.formatPatch(&b, cmds, 0)
	return b.String()
}

func (d *indentDialect) formatPatch(b *strings.Builder, cmds []*Command, depth int) {
	prefix := strings.Repeat(d.indent, depth)
	for _, c := range cmds {
		b.WriteString(prefix)
		b.WriteString(c.Row)
		b.WriteByte('\n')
		if c.Block {
			d.formatPatch(b, c.Children, depth+1)
			b.WriteString(prefix + d.indent + d.vendor.Exit + "\n")
		}
	}
}

func (d *indentDialect) Commands(cmds []*Command) []string {
	var out []string
	for _, c := range cmds {
		out = append(out, c.Row)
		if c.Block {
			out = append(out, d.Commands(c.Children)...)
			out = append(out, d.vendor.Exit)
		}
	}
	return out
}
