package config

import "fmt"

// ParserError reports malformed configuration or pattern text.
type ParserError struct {
	Line int    // 1-based line number, 0 when unknown
	Row  string // offending row
	Msg  string
}

func (e *ParserError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Row)
	}
	if e.Row != "" {
		return fmt.Sprintf("%s: %q", e.Msg, e.Row)
	}
	return e.Msg
}
