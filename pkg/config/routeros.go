package config

import (
	"strings"
)

// routerosDialect handles RouterOS exports: a "/menu path" line selects the
// menu the following commands apply to. Long lines are wrapped with a
// trailing backslash.
type routerosDialect struct{}

func (routerosDialect) Vendor() Vendor {
	return Vendor{Name: "routeros", Reverse: "remove"}
}

func (routerosDialect) Parse(text string) (*Tree, error) {
	return Parse(text, ParseOptions{
		Comments: []string{"#"},
		Split:    splitRouterOS,
	})
}

func splitRouterOS(text string) ([]Line, error) {
	var out []Line
	inMenu := false
	for _, l := range SplitLines(text, `\`) {
		if l.Text == "" || strings.HasPrefix(l.Text, "#") {
			continue
		}
		text := strings.Join(strings.Fields(l.Text), " ")
		if strings.HasPrefix(text, "/") {
			inMenu = true
			out = append(out, Line{No: l.No, Indent: 0, Text: text})
			continue
		}
		indent := 0
		if inMenu {
			indent = 1
		}
		out = append(out, Line{No: l.No, Indent: indent, Text: text})
	}
	return out, nil
}

func (routerosDialect) Join(t *Tree) string {
	var b strings.Builder
	for _, row := range t.Rows() {
		b.WriteString(row + "\n")
		child, _ := t.Get(row)
		for _, cmd := range child.Rows() {
			b.WriteString(cmd + "\n")
		}
	}
	return b.String()
}

func (d routerosDialect) Normalize(text string) string {
	t, err := d.Parse(text)
	if err != nil {
		return text
	}
	return d.Join(t)
}

func (d routerosDialect) FormatPatch(cmds []*Command) string {
	var b strings.Builder
	for _, c := range d.Commands(cmds) {
		b.WriteString(c + "\n")
	}
	return b.String()
}

func (routerosDialect) Commands(cmds []*Command) []string {
	var out []string
	for _, c := range cmds {
		out = append(out, c.Row)
		for _, sub := range c.Children {
			out = append(out, sub.Row)
		}
	}
	return out
}
