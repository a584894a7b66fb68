// Package config implements the configuration tree, the indentation based
// tree parser and the per-vendor dialects that parse and render device
// configuration text.
package config

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenLBrace     TokenType = iota // {
	TokenRBrace                      // }
	TokenSemicolon                   // ;
	TokenWord                        // unquoted word, [ and ] included
	TokenString                      // "quoted string", quotes kept
	TokenEOF
	TokenError
)

func (t TokenType) String() string {
	switch t {
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenSemicolon:
		return "';'"
	case TokenWord:
		return "word"
	case TokenString:
		return "string"
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "error"
	default:
		return "unknown"
	}
}

// Token is a single lexer token.
type Token struct {
	Type  TokenType
	Value string
	Line  int
}

func (t Token) String() string {
	if t.Type == TokenWord || t.Type == TokenString {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Lexer tokenizes curly-brace configuration text.
type Lexer struct {
	input string
	pos   int
	line  int
}

// NewLexer creates a new Lexer for the given input string.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

// Next returns the next token, advancing the position.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Line: l.line}
	}

	line := l.line
	switch ch := l.input[l.pos]; ch {
	case '{':
		l.pos++
		return Token{Type: TokenLBrace, Value: "{", Line: line}
	case '}':
		l.pos++
		return Token{Type: TokenRBrace, Value: "}", Line: line}
	case ';':
		l.pos++
		return Token{Type: TokenSemicolon, Value: ";", Line: line}
	case '[', ']':
		l.pos++
		return Token{Type: TokenWord, Value: string(ch), Line: line}
	case '"':
		return l.readString(line)
	default:
		return l.readWord(line)
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == '\n' {
			l.line++
			l.pos++
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.pos++
			continue
		}

		// Line comment: # ... \n
		if ch == '#' {
			l.skipLine()
			continue
		}

		// Block comment: /* ... */
		if strings.HasPrefix(l.input[l.pos:], "/*") {
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				end = len(l.input) - l.pos - 2
			} else {
				end += 2
			}
			l.line += strings.Count(l.input[l.pos:l.pos+2+end], "\n")
			l.pos += 2 + end
			continue
		}

		// Line comment: // ... \n
		if strings.HasPrefix(l.input[l.pos:], "//") {
			l.skipLine()
			continue
		}

		break
	}
}

func (l *Lexer) skipLine() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
	}
}

func (l *Lexer) readString(line int) Token {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '\n':
			l.line++
		case '"':
			l.pos++
			return Token{Type: TokenString, Value: l.input[start:l.pos], Line: line}
		}
		l.pos++
	}
	return Token{Type: TokenError, Value: "unterminated string", Line: line}
}

func (l *Lexer) readWord(line int) Token {
	start := l.pos
	for l.pos < len(l.input) && isWordChar(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: TokenWord, Value: l.input[start:l.pos], Line: line}
}

// isWordChar reports whether ch continues an unquoted word: anything but
// whitespace and the structural characters.
func isWordChar(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n', '{', '}', ';', '"', '[', ']':
		return false
	}
	return true
}
