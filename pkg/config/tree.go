package config

import (
	"strings"
)

// Tree is an ordered configuration tree: each row maps to a child Tree.
// Row order mirrors the order on the device and is preserved by every
// operation. Rows are unique within one level.
type Tree struct {
	rows     []string
	children map[string]*Tree
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{children: make(map[string]*Tree)}
}

// Len returns the number of rows at this level.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns the rows at this level in order. The slice must not be modified.
func (t *Tree) Rows() []string {
	if t == nil {
		return nil
	}
	return t.rows
}

// Has reports whether row exists at this level.
func (t *Tree) Has(row string) bool {
	if t == nil {
		return false
	}
	_, ok := t.children[row]
	return ok
}

// Get returns the child tree of row.
func (t *Tree) Get(row string) (*Tree, bool) {
	if t == nil {
		return nil, false
	}
	c, ok := t.children[row]
	return c, ok
}

// Index returns the position of row at this level, or -1.
func (t *Tree) Index(row string) int {
	if t == nil {
		return -1
	}
	for i, r := range t.rows {
		if r == row {
			return i
		}
	}
	return -1
}

// Child returns the child tree of row, appending an empty one if the row
// does not exist yet.
func (t *Tree) Child(row string) *Tree {
	if c, ok := t.children[row]; ok {
		return c
	}
	c := New()
	t.rows = append(t.rows, row)
	t.children[row] = c
	return c
}

// Set stores child under row. An existing row keeps its position and has
// child merged into it.
func (t *Tree) Set(row string, child *Tree) {
	if child == nil {
		child = New()
	}
	if c, ok := t.children[row]; ok {
		c.Merge(child)
		return
	}
	t.rows = append(t.rows, row)
	t.children[row] = child
}

// Replace renames old to row in place, dropping old's subtree, and returns
// the new row's (empty) child. Without old, or when row already exists, it
// behaves like Child.
func (t *Tree) Replace(old, row string) *Tree {
	if _, ok := t.children[old]; !ok || old == row {
		return t.Child(row)
	}
	if _, ok := t.children[row]; ok {
		t.Delete(old)
		return t.children[row]
	}
	i := t.Index(old)
	delete(t.children, old)
	c := New()
	t.rows[i] = row
	t.children[row] = c
	return c
}

// Delete removes row and its subtree.
func (t *Tree) Delete(row string) {
	if _, ok := t.children[row]; !ok {
		return
	}
	delete(t.children, row)
	for i, r := range t.rows {
		if r == row {
			t.rows = append(t.rows[:i:i], t.rows[i+1:]...)
			break
		}
	}
}

// Merge unions other into t. Rows missing from t are appended in other's
// order; rows present in both have their children merged recursively.
func (t *Tree) Merge(other *Tree) {
	if other == nil {
		return
	}
	for _, row := range other.rows {
		oc := other.children[row]
		if c, ok := t.children[row]; ok {
			c.Merge(oc)
			continue
		}
		t.rows = append(t.rows, row)
		t.children[row] = oc.Clone()
	}
}

// Clone creates a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{
		rows:     append([]string(nil), t.rows...),
		children: make(map[string]*Tree, len(t.children)),
	}
	for row, child := range t.children {
		c.children[row] = child.Clone()
	}
	return c
}

// Equal reports whether a and b hold the same rows in the same order with
// equal subtrees. Nil and empty trees are equal.
func Equal(a, b *Tree) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i, row := range a.Rows() {
		if b.rows[i] != row {
			return false
		}
		if !Equal(a.children[row], b.children[row]) {
			return false
		}
	}
	return true
}

// Walk calls fn for every row depth-first with its path of parent rows.
// Returning false from fn skips the row's subtree.
func (t *Tree) Walk(fn func(path []string, row string, child *Tree) bool) {
	walk(t, nil, fn)
}

func walk(t *Tree, path []string, fn func([]string, string, *Tree) bool) {
	for _, row := range t.Rows() {
		child := t.children[row]
		if !fn(path, row, child) {
			continue
		}
		walk(child, append(path[:len(path):len(path)], row), fn)
	}
}

// Filter returns a copy of the tree holding only the given rows of this
// level, in tree order. Subtrees are shared, not copied.
func (t *Tree) Filter(keep func(row string) bool) *Tree {
	out := New()
	for _, row := range t.Rows() {
		if keep(row) {
			out.rows = append(out.rows, row)
			out.children[row] = t.children[row]
		}
	}
	return out
}

// String renders the tree with one space of indentation per level.
func (t *Tree) String() string {
	var b strings.Builder
	t.Walk(func(path []string, row string, _ *Tree) bool {
		b.WriteString(strings.Repeat(" ", len(path)))
		b.WriteString(row)
		b.WriteByte('\n')
		return true
	})
	return b.String()
}

// SplitAnnotation splits a row into its text and the generator annotation
// stored after a tab.
func SplitAnnotation(row string) (text, annotation string) {
	if i := strings.IndexByte(row, '\t'); i >= 0 {
		return row[:i], row[i+1:]
	}
	return row, ""
}

// StripAnnotations returns a copy of t with annotations removed from every
// row. Rows that collapse to the same text are merged.
func StripAnnotations(t *Tree) *Tree {
	out := New()
	for _, row := range t.Rows() {
		text, _ := SplitAnnotation(row)
		out.Set(text, StripAnnotations(t.children[row]))
	}
	return out
}
