package config

import (
	"strings"
)

// Line is one logical configuration line.
type Line struct {
	No     int // 1-based number of the first physical line
	Indent int
	Text   string
}

// ParseOptions controls how raw text is broken into logical lines.
type ParseOptions struct {
	// Comments lists prefixes that mark a comment line.
	Comments []string
	// Continuation, when set, joins a line ending with it to the next line.
	Continuation string
	// Skip drops lines that carry no tree information (block terminators).
	Skip func(text string) bool
	// Split replaces the default splitter. It receives the raw text and
	// returns the logical lines, indentation already measured.
	Split func(text string) ([]Line, error)
}

// Parse converts indented text into a Tree. The first line sets the base
// indentation. Every following line must either go exactly one level deeper
// than the previous line, stay on the same level, or return to the level of
// one of its ancestors.
func Parse(text string, opts ParseOptions) (*Tree, error) {
	var (
		lines []Line
		err   error
	)
	if opts.Split != nil {
		lines, err = opts.Split(text)
	} else {
		lines = SplitLines(text, opts.Continuation)
	}
	if err != nil {
		return nil, err
	}
	return build(filterLines(lines, opts))
}

// SplitLines breaks text into logical lines and measures indentation.
// Lines ending with continuation are joined with the line that follows.
func SplitLines(text, continuation string) []Line {
	var out []Line
	physical := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i := 0; i < len(physical); i++ {
		raw := strings.TrimRight(physical[i], " \r")
		no := i + 1
		if continuation != "" {
			for strings.HasSuffix(raw, continuation) && i+1 < len(physical) {
				i++
				next := strings.TrimSpace(physical[i])
				raw = strings.TrimRight(strings.TrimSuffix(raw, continuation), " ") + " " + next
			}
		}
		body := strings.TrimLeft(raw, " \t")
		out = append(out, Line{No: no, Indent: indentWidth(raw[:len(raw)-len(body)]), Text: body})
	}
	return out
}

func indentWidth(prefix string) int {
	n := 0
	for _, ch := range prefix {
		if ch == '\t' {
			n += 8 - n%8
			continue
		}
		n++
	}
	return n
}

func filterLines(lines []Line, opts ParseOptions) []Line {
	out := lines[:0:0]
	for _, l := range lines {
		if l.Text == "" || isComment(l.Text, opts.Comments) {
			continue
		}
		if opts.Skip != nil && opts.Skip(l.Text) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isComment(text string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// build runs the indentation stack over already filtered lines.
func build(lines []Line) (*Tree, error) {
	root := New()
	if len(lines) == 0 {
		return root, nil
	}

	levels := []int{lines[0].Indent}
	parents := []*Tree{root}
	var last *Tree

	for _, l := range lines {
		top := len(levels) - 1
		switch {
		case l.Indent > levels[top]:
			if last == nil {
				return nil, &ParserError{Line: l.No, Row: l.Text, Msg: "Invalid indentation"}
			}
			levels = append(levels, l.Indent)
			parents = append(parents, last)
		case l.Indent < levels[top]:
			j := top - 1
			for j >= 0 && levels[j] != l.Indent {
				j--
			}
			if j < 0 {
				return nil, &ParserError{Line: l.No, Row: l.Text, Msg: "Invalid indentation"}
			}
			levels = levels[:j+1]
			parents = parents[:j+1]
		}
		last = parents[len(parents)-1].Child(l.Text)
	}
	return root, nil
}

// Join renders a tree as indented text using indent per nesting level.
func Join(t *Tree, indent string) string {
	var b strings.Builder
	t.Walk(func(path []string, row string, _ *Tree) bool {
		b.WriteString(strings.Repeat(indent, len(path)))
		b.WriteString(row)
		b.WriteByte('\n')
		return true
	})
	return b.String()
}

// Normalize drops comment and blank lines and collapses whitespace runs
// inside each line, keeping the leading indentation untouched.
func Normalize(text string, comments []string) string {
	var b strings.Builder
	for _, l := range SplitLines(text, "") {
		if l.Text == "" || isComment(l.Text, comments) {
			continue
		}
		b.WriteString(strings.Repeat(" ", l.Indent))
		b.WriteString(strings.Join(strings.Fields(l.Text), " "))
		b.WriteByte('\n')
	}
	return b.String()
}
