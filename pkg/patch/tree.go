package patch

import (
	"strings"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Item context keys.
const (
	CtxRule      = "rule"
	CtxDirection = "direction"
	CtxOrigin    = "origin"
	CtxOrder     = "order"
	CtxComment   = "comment"
	// CtxReplaces lists, one per line, the rows an applied row replaces in
	// place.
	CtxReplaces = "replaces"
)

// Item is one command of a patch. Child is nil for commands that do not
// open a block.
type Item struct {
	Row     string
	Child   *Tree
	Context map[string]string
	// Removed holds the block an undo item deletes. It is not part of the
	// commands; Invert uses it to restore the block.
	Removed *config.Tree
}

// Direction returns the item's direction, Apply when unset.
func (it *Item) Direction() Dir {
	return parseDir(it.Context[CtxDirection])
}

// Origin returns the configuration row the item was generated from.
func (it *Item) Origin() string {
	if o := it.Context[CtxOrigin]; o != "" {
		return o
	}
	return it.Row
}

// Tree is an ordered patch. Rows are unique within one level.
type Tree struct {
	Items []*Item
	index map[string]int
}

// Len returns the number of items at this level.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Items)
}

// Add appends it. An item whose row is already present has its children
// merged into the existing one.
func (t *Tree) Add(it *Item) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[it.Row]; ok {
		prev := t.Items[i]
		switch {
		case prev.Child == nil:
			prev.Child = it.Child
		case it.Child != nil:
			for _, c := range it.Child.Items {
				prev.Child.Add(c)
			}
		}
		return
	}
	t.index[it.Row] = len(t.Items)
	t.Items = append(t.Items, it)
}

// Commands converts the patch into dialect commands.
func (t *Tree) Commands() []*config.Command {
	if t == nil {
		return nil
	}
	out := make([]*config.Command, 0, len(t.Items))
	for _, it := range t.Items {
		c := &config.Command{Row: it.Row}
		if it.Child != nil {
			c.Block = true
			c.Children = it.Child.Commands()
		}
		out = append(out, c)
	}
	return out
}

// String renders the patch with one space of indentation per level.
func (t *Tree) String() string {
	var b strings.Builder
	t.write(&b, 0)
	return b.String()
}

func (t *Tree) write(b *strings.Builder, depth int) {
	if t == nil {
		return
	}
	for _, it := range t.Items {
		b.WriteString(strings.Repeat(" ", depth))
		b.WriteString(it.Row)
		b.WriteByte('\n')
		it.Child.write(b, depth+1)
	}
}

// Invert returns the patch that reverts t: undone rows are applied again
// with the block they removed, applied leaf rows are undone and replaced
// rows restored. Blocks are kept and their contents inverted. Side effects
// are dropped.
func (t *Tree) Invert(v config.Vendor) *Tree {
	out := &Tree{}
	if t == nil {
		return out
	}
	for _, it := range t.Items {
		origin := it.Origin()
		switch it.Direction() {
		case SideEffect:
		case Undo:
			out.Add(&Item{Row: origin, Child: restore(it.Removed), Context: withContext(it.Context, Apply, origin, "")})
		default:
			if it.Child != nil {
				out.Add(&Item{Row: it.Row, Child: it.Child.Invert(v), Context: it.Context})
				continue
			}
			replaced := splitLines(it.Context[CtxReplaces])
			if len(replaced) == 0 {
				undo := rulebook.ToggleReverse(origin, v.Reverse)
				out.Add(&Item{Row: undo, Context: withContext(it.Context, Undo, origin, "")})
				continue
			}
			for i, row := range replaced {
				repl := ""
				if i == 0 {
					repl = origin
				}
				out.Add(&Item{Row: row, Context: withContext(it.Context, Apply, row, repl)})
			}
		}
	}
	return out
}

// restore turns removed configuration rows back into applied items.
func restore(t *config.Tree) *Tree {
	if t.Len() == 0 {
		return nil
	}
	out := &Tree{}
	for _, row := range t.Rows() {
		child, _ := t.Get(row)
		out.Add(&Item{Row: row, Child: restore(child), Context: map[string]string{
			CtxDirection: Apply.String(),
			CtxOrigin:    row,
		}})
	}
	return out
}

func withContext(ctx map[string]string, d Dir, origin, replaces string) map[string]string {
	out := make(map[string]string, len(ctx)+1)
	for k, v := range ctx {
		out[k] = v
	}
	out[CtxDirection] = d.String()
	out[CtxOrigin] = origin
	delete(out, CtxReplaces)
	if replaces != "" {
		out[CtxReplaces] = replaces
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// ApplyTo returns a copy of cfg with the patch applied: undone rows are
// deleted, applied rows created (taking the place of the rows they
// replace) and blocks entered. Side effects do not change the configuration.
func ApplyTo(cfg *config.Tree, p *Tree) *config.Tree {
	out := cfg.Clone()
	if out == nil {
		out = config.New()
	}
	apply(out, p)
	return out
}

func apply(t *config.Tree, p *Tree) {
	if p == nil {
		return
	}
	for _, it := range p.Items {
		origin := it.Origin()
		switch it.Direction() {
		case SideEffect:
		case Undo:
			t.Delete(origin)
		default:
			child := t.Child
			if replaced := splitLines(it.Context[CtxReplaces]); len(replaced) > 0 {
				for _, row := range replaced[1:] {
					t.Delete(row)
				}
				first := replaced[0]
				child = func(row string) *config.Tree { return t.Replace(first, row) }
			}
			apply(child(origin), it.Child)
		}
	}
}
