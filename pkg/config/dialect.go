package config

import (
	"fmt"
	"sort"
)

// Vendor describes the command conventions of a device family.
type Vendor struct {
	Name string
	// Reverse is the keyword that negates a command ("undo", "no", "delete").
	Reverse string
	// Exit is the keyword that leaves a configuration block, empty when
	// blocks are closed by syntax.
	Exit string
}

// Command is a node of a rendered patch: a row and, for blocks, the
// commands executed inside it.
type Command struct {
	Row      string
	Block    bool
	Children []*Command
}

// Dialect parses and renders one vendor's configuration syntax.
type Dialect interface {
	Vendor() Vendor
	// Parse converts device configuration text into a Tree.
	Parse(text string) (*Tree, error)
	// Join renders a Tree back into device syntax.
	Join(t *Tree) string
	// FormatPatch renders patch commands as nested text for review.
	FormatPatch(cmds []*Command) string
	// Commands flattens patch commands into the order they are typed on the
	// device, block exits included.
	Commands(cmds []*Command) []string
	// Normalize canonicalizes raw text the way Join(Parse(text)) does.
	Normalize(text string) string
}

var dialects = map[string]Dialect{
	"huawei":   newIndentDialect(Vendor{Name: "huawei", Reverse: "undo", Exit: "quit"}, " ", []string{"#"}, "quit", "return"),
	"cisco":    newIndentDialect(Vendor{Name: "cisco", Reverse: "no", Exit: "exit"}, " ", []string{"!"}, "exit", "end"),
	"arista":   newIndentDialect(Vendor{Name: "arista", Reverse: "no", Exit: "exit"}, "   ", []string{"!"}, "exit", "end"),
	"juniper":  &juniperDialect{},
	"nokia":    &nokiaDialect{},
	"routeros": &routerosDialect{},
}

// Lookup returns the dialect registered for vendor.
func Lookup(vendor string) (Dialect, error) {
	d, ok := dialects[vendor]
	if !ok {
		return nil, fmt.Errorf("unsupported vendor %q", vendor)
	}
	return d, nil
}

// Vendors returns the names of all supported vendors, sorted.
func Vendors() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CmdPaths returns, for every command that carries no nested commands, the
// full path of rows leading to it (the command itself last).
func CmdPaths(cmds []*Command) [][]string {
	var out [][]string
	var walk func(path []string, cmds []*Command)
	walk = func(path []string, cmds []*Command) {
		for _, c := range cmds {
			p := append(path[:len(path):len(path)], c.Row)
			if len(c.Children) == 0 {
				out = append(out, p)
				continue
			}
			walk(p, c.Children)
		}
	}
	walk(nil, cmds)
	return out
}
