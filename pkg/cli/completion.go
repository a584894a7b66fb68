package cli

import (
	"io"
	"strings"

	"github.com/psaab/netpatch/pkg/cmdtree"
)

// pipeFilters defines the available pipe filter names and descriptions.
var pipeFilters = []cmdtree.Candidate{
	{Name: "count", Desc: "Count lines"},
	{Name: "except", Desc: "Show only lines that do not match a pattern"},
	{Name: "last", Desc: "Display end of output only"},
	{Name: "match", Desc: "Show only lines that match a pattern"},
}

// completePipeFilter returns pipe filter candidates matching the partial
// after the last "|". handled is false when the line has no pipe.
func completePipeFilter(text string) (candidates []cmdtree.Candidate, handled bool) {
	idx := strings.LastIndex(text, "|")
	if idx < 0 {
		return nil, false
	}
	after := strings.TrimSpace(text[idx+1:])
	if after == "" {
		return pipeFilters, true
	}
	// A complete filter name is followed by free-form text.
	if strings.HasSuffix(text, " ") || strings.Contains(after, " ") {
		return nil, true
	}
	for _, f := range pipeFilters {
		if strings.HasPrefix(f.Name, after) {
			candidates = append(candidates, f)
		}
	}
	return candidates, true
}

// candidates returns what may follow text and the partial word being
// completed.
func (c *CLI) candidates(text string) ([]cmdtree.Candidate, string) {
	trailingSpace := strings.HasSuffix(text, " ")
	if cands, ok := completePipeFilter(text); ok {
		partial := ""
		if after := strings.TrimSpace(text[strings.LastIndex(text, "|")+1:]); !trailingSpace {
			partial = after
		}
		return cands, partial
	}
	words := strings.Fields(text)
	partial := ""
	if !trailingSpace && len(words) > 0 {
		partial = words[len(words)-1]
		words = words[:len(words)-1]
	}
	return cmdtree.CompleteFromTreeWithDesc(cmdtree.Tree, words, partial, c.store), partial
}

// completer implements readline.AutoCompleter over the command tree.
type completer struct {
	cli *CLI
	out func() io.Writer
}

func (cp *completer) Do(line []rune, pos int) ([][]rune, int) {
	cands, partial := cp.cli.candidates(string(line[:pos]))
	if len(cands) == 0 {
		return nil, 0
	}
	if len(cands) == 1 {
		suffix := cands[0].Name[len(partial):]
		return [][]rune{[]rune(suffix + " ")}, len(partial)
	}

	// Multiple matches: show descriptions above the prompt.
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	cmdtree.WriteHelp(cp.out(), cands)
	suffix := cmdtree.CommonPrefix(names)[len(partial):]
	if suffix == "" {
		return nil, 0
	}
	return [][]rune{[]rune(suffix)}, len(partial)
}
