package cli

import (
	"io"
	"strings"

	"github.com/fatih/color"
)

// Painter colors diff and patch output. The zero value prints plain text.
type Painter struct {
	Enabled bool
}

var (
	addColor    = color.New(color.FgGreen)
	removeColor = color.New(color.FgRed)
	moveColor   = color.New(color.FgYellow)
	headerColor = color.New(color.Bold)
)

// Diff writes text produced by diff.Format or a unified diff, coloring
// lines by their leading sign.
func (p Painter) Diff(w io.Writer, text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		c := p.lineColor(line)
		if c == nil {
			io.WriteString(w, line)
			continue
		}
		c.Fprint(w, strings.TrimSuffix(line, "\n"))
		if strings.HasSuffix(line, "\n") {
			io.WriteString(w, "\n")
		}
	}
}

func (p Painter) lineColor(line string) *color.Color {
	if !p.Enabled {
		return nil
	}
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
		return headerColor
	case strings.HasPrefix(line, "+"):
		return addColor
	case strings.HasPrefix(line, "-"):
		return removeColor
	case strings.HasPrefix(line, ">"):
		return moveColor
	}
	return nil
}

// Patch writes a rendered patch, coloring rows that undo configuration.
func (p Painter) Patch(w io.Writer, text, reverse string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		row := strings.TrimSpace(line)
		if p.Enabled && reverse != "" && strings.HasPrefix(row, reverse+" ") {
			removeColor.Fprint(w, strings.TrimSuffix(line, "\n"))
			io.WriteString(w, "\n")
			continue
		}
		io.WriteString(w, line)
	}
}
