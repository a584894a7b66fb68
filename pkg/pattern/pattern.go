// Package pattern compiles rulebook row patterns into matchers over single
// configuration rows.
//
// Pattern syntax:
//
//	*          one non-whitespace token, part of the rule key
//	*/re/      a token matching re, part of the rule key
//	<name>     a named value of word characters, not part of the key
//	~/re/      re spliced in verbatim, not captured
//	~          (last) the rest of the row, captured as a value; a bare
//	           "~" keys on the whole row
//	...        (last) anything may follow; "foo..." is a bare prefix
//	(?i)       match case-insensitively
//
// Unless the pattern ends with "~" or "...", a match must end at whitespace
// or at the end of the row. Whitespace runs match one or more whitespace
// characters.
package pattern

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/psaab/netpatch/pkg/config"
)

// Flags modify pattern compilation.
type Flags uint8

const (
	IgnoreCase Flags = 1 << iota
)

const (
	keyPrefix = "k_"
	restGroup = "rest"
)

// Pattern is an immutable compiled row pattern.
type Pattern struct {
	text  string
	flags Flags
	re    *regexp.Regexp
	keys  []int // subexpression indexes of key captures
}

// Result holds the captures of a successful match.
type Result struct {
	// Key joins the key captures; rows with equal keys describe the same
	// object.
	Key    string
	Values map[string]string
}

// Text returns the source text of the pattern.
func (p *Pattern) Text() string { return p.text }

// Flags returns the effective flags, inline (?i) included.
func (p *Pattern) Flags() Flags { return p.flags }

// Regexp returns the compiled expression.
func (p *Pattern) Regexp() *regexp.Regexp { return p.re }

// MatchString reports whether row matches.
func (p *Pattern) MatchString(row string) bool {
	return p.re.MatchString(row)
}

// Match matches row and extracts its captures.
func (p *Pattern) Match(row string) (*Result, bool) {
	m := p.re.FindStringSubmatch(row)
	if m == nil {
		return nil, false
	}
	res := &Result{}
	names := p.re.SubexpNames()
	keys := make([]string, 0, len(p.keys))
	for _, i := range p.keys {
		keys = append(keys, m[i])
	}
	res.Key = strings.Join(keys, " ")
	for i, name := range names {
		if name == "" || strings.HasPrefix(name, keyPrefix) {
			continue
		}
		if res.Values == nil {
			res.Values = make(map[string]string)
		}
		res.Values[name] = m[i]
	}
	if p.flags&IgnoreCase != 0 {
		res.Key = strings.ToLower(res.Key)
	}
	return res, true
}

// StripValues returns row without the text of its value captures, with
// whitespace collapsed. Rows the pattern does not match are returned as is.
func (p *Pattern) StripValues(row string) string {
	loc := p.re.FindStringSubmatchIndex(row)
	if loc == nil {
		return row
	}
	var b strings.Builder
	last := 0
	for i, name := range p.re.SubexpNames() {
		start, end := loc[2*i], loc[2*i+1]
		if name == "" || strings.HasPrefix(name, keyPrefix) || start < last {
			continue
		}
		b.WriteString(row[last:start])
		last = end
	}
	b.WriteString(row[last:])
	return strings.Join(strings.Fields(b.String()), " ")
}

// Compile compiles text. Use Cache.Compile when the same patterns are
// compiled repeatedly.
func Compile(text string, flags Flags) (*Pattern, error) {
	text, flags = normalize(text, flags)
	return compile(text, flags)
}

func normalize(text string, flags Flags) (string, Flags) {
	if strings.Contains(text, "(?i)") {
		text = strings.ReplaceAll(text, "(?i)", "")
		flags |= IgnoreCase
	}
	return strings.TrimSpace(text), flags
}

func compile(text string, flags Flags) (*Pattern, error) {
	var (
		b      strings.Builder
		suffix = `(?:\s|$)`
		nkeys  int
	)
	b.WriteString("^")
	if flags&IgnoreCase != 0 {
		b.WriteString("(?i)")
	}

	body := text
	switch {
	case body == "~":
		body = ""
		suffix = "(?P<" + keyPrefix + "0>.+)"
	case strings.HasSuffix(body, " ~"):
		body = strings.TrimSuffix(body, "~")
		suffix = "(?P<" + restGroup + ">.+)"
	case strings.HasSuffix(body, "..."):
		body = strings.TrimSuffix(body, "...")
		if trimmed := strings.TrimRight(body, " \t"); trimmed != body {
			// "foo ..." is "foo" followed by anything, "foo..." a bare prefix.
			body = trimmed
		} else {
			suffix = ""
		}
	}

	for i := 0; i < len(body); {
		ch := body[i]
		switch {
		case ch == ' ' || ch == '\t':
			for i < len(body) && (body[i] == ' ' || body[i] == '\t') {
				i++
			}
			b.WriteString(`\s+`)
		case ch == '*':
			re, n, err := slashed(body, i+1)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				re = `\S+`
			}
			b.WriteString("(?P<" + keyPrefix + strconv.Itoa(nkeys) + ">" + re + ")")
			nkeys++
			i += 1 + n
		case ch == '~' && i+1 < len(body) && body[i+1] == '/':
			re, n, err := slashed(body, i+1)
			if err != nil {
				return nil, err
			}
			b.WriteString("(?:" + re + ")")
			i += 1 + n
		case ch == '<':
			end := strings.IndexByte(body[i:], '>')
			if end < 0 {
				return nil, &config.ParserError{Row: text, Msg: "unterminated capture name"}
			}
			name := body[i+1 : i+end]
			if !isIdent(name) {
				return nil, &config.ParserError{Row: text, Msg: "invalid capture name " + strconv.Quote(name)}
			}
			b.WriteString("(?P<" + name + `>\w+)`)
			i += end + 1
		default:
			j := i
			for j < len(body) && !isSpecial(body, j) {
				j++
			}
			b.WriteString(regexp.QuoteMeta(body[i:j]))
			i = j
		}
	}
	b.WriteString(suffix)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &config.ParserError{Row: text, Msg: "invalid pattern: " + err.Error()}
	}
	p := &Pattern{text: text, flags: flags, re: re}
	for i, name := range re.SubexpNames() {
		if strings.HasPrefix(name, keyPrefix) {
			p.keys = append(p.keys, i)
		}
	}
	return p, nil
}

// slashed reads a /re/ run starting at body[i]. It returns the expression,
// the number of bytes consumed and no error when body[i] is not a slash.
// The closing slash is the last one before the next whitespace.
func slashed(body string, i int) (string, int, error) {
	if i >= len(body) || body[i] != '/' {
		return "", 0, nil
	}
	end := strings.IndexAny(body[i:], " \t")
	if end < 0 {
		end = len(body) - i
	}
	run := body[i : i+end]
	closing := strings.LastIndexByte(run, '/')
	if closing <= 0 {
		return "", 0, &config.ParserError{Row: body, Msg: "unterminated /regex/"}
	}
	return run[1:closing], closing + 1, nil
}

func isSpecial(body string, j int) bool {
	switch body[j] {
	case ' ', '\t', '*', '<':
		return true
	case '~':
		return j+1 < len(body) && body[j+1] == '/'
	}
	return false
}

func isIdent(s string) bool {
	if s == "" || strings.HasPrefix(s, keyPrefix) || s == restGroup {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
