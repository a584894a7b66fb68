// Package cmdtree defines the command tree of the review shell. Tab
// completion, ? help and command resolution all derive from it.
package cmdtree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Inventory supplies dynamic completion values.
type Inventory interface {
	Devices() []string
}

// Node defines a completion tree node with description, children, and
// optional dynamic values.
type Node struct {
	Desc      string
	Children  map[string]*Node
	DynamicFn func(inv Inventory) []string
}

// Candidate holds a command name and its description for display.
type Candidate struct {
	Name string
	Desc string
}

func devices(inv Inventory) []string { return inv.Devices() }

// deviceArg is a node completing device names, optionally followed by
// children.
func deviceArg(desc string, children map[string]*Node) *Node {
	return &Node{Desc: desc, Children: children, DynamicFn: devices}
}

// Tree is the shell's command tree.
var Tree = map[string]*Node{
	"show": {Desc: "Show information", Children: map[string]*Node{
		"devices":  {Desc: "List devices and whether they have pending changes"},
		"running":  deviceArg("Show running configuration", nil),
		"desired":  deviceArg("Show desired configuration", nil),
		"compare":  deviceArg("Show text differences between running and desired", nil),
		"diff":     deviceArg("Show the rulebook diff between running and desired", nil),
		"patch":    deviceArg("Show the patch in vendor syntax", nil),
		"commands": deviceArg("Show the patch as typed on the device", nil),
		"paths":    deviceArg("Show the full path of every patch command", nil),
		"history":  deviceArg("Show committed configurations", nil),
		"ordered":  deviceArg("Show desired configuration in rulebook order", nil),
		"vendors":  {Desc: "List supported vendors"},
		"log":      {Desc: "Show recent log messages"},
	}},
	"load": {Desc: "Load configuration from a file", Children: map[string]*Node{
		"running": deviceArg("Load running configuration: load running DEVICE VENDOR FILE", nil),
		"desired": deviceArg("Load desired configuration: load desired DEVICE FILE", nil),
	}},
	"monitor": {Desc: "Follow new information as it arrives", Children: map[string]*Node{
		"log": {Desc: "Follow log messages: monitor log [MATCH]"},
	}},
	"commit":   deviceArg("Apply the patch to the running configuration", nil),
	"rollback": deviceArg("Reset desired configuration: rollback DEVICE [N]", nil),
	"save":     {Desc: "Save the store to disk"},
	"help":     {Desc: "Show help"},
	"quit":     {Desc: "Exit the shell"},
	"exit":     {Desc: "Exit the shell"},
}

// KeysFromTree returns a sorted list of keys from a Node map.
func KeysFromTree(tree map[string]*Node) []string {
	keys := KeysOf(tree)
	sort.Strings(keys)
	return keys
}

// HelpCandidates returns Candidates from a tree's children for help display.
func HelpCandidates(tree map[string]*Node) []Candidate {
	candidates := make([]Candidate, 0, len(tree))
	for name, node := range tree {
		candidates = append(candidates, Candidate{Name: name, Desc: node.Desc})
	}
	return candidates
}

// CompleteFromTreeWithDesc walks the tree returning the name+description
// pairs that may follow words and start with partial.
func CompleteFromTreeWithDesc(tree map[string]*Node, words []string, partial string, inv Inventory) []Candidate {
	current := tree
	var currentNode *Node
	dynamicConsumed := false
	for _, w := range words {
		dynamicConsumed = false
		node, ok := current[w]
		if !ok {
			// A dynamic value: stay at the same children level.
			if currentNode != nil && currentNode.DynamicFn != nil {
				dynamicConsumed = true
				continue
			}
			return nil
		}
		currentNode = node
		if node.Children == nil {
			if node.DynamicFn != nil && inv != nil {
				return dynamicCandidates(node, inv, partial)
			}
			return nil
		}
		current = node.Children
	}

	var candidates []Candidate
	for name, node := range current {
		if strings.HasPrefix(name, partial) {
			candidates = append(candidates, Candidate{Name: name, Desc: node.Desc})
		}
	}
	if !dynamicConsumed && currentNode != nil && currentNode.DynamicFn != nil && inv != nil {
		candidates = append(candidates, dynamicCandidates(currentNode, inv, partial)...)
	}
	return candidates
}

func dynamicCandidates(n *Node, inv Inventory, partial string) []Candidate {
	var out []Candidate
	for _, name := range FilterPrefix(n.DynamicFn(inv), partial) {
		out = append(out, Candidate{Name: name})
	}
	return out
}

// CompleteFromTree is CompleteFromTreeWithDesc without descriptions.
func CompleteFromTree(tree map[string]*Node, words []string, partial string, inv Inventory) []string {
	cands := CompleteFromTreeWithDesc(tree, words, partial, inv)
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	sort.Strings(out)
	return out
}

// Resolve expands unambiguous command prefixes ("sh dev" to "show devices")
// for the leading keyword words of line. Arguments are left alone.
func Resolve(words []string) ([]string, error) {
	out := append([]string(nil), words...)
	current := Tree
	for i, w := range out {
		if current == nil {
			break
		}
		if _, ok := current[w]; !ok {
			matches := FilterPrefix(KeysFromTree(current), w)
			switch len(matches) {
			case 0:
				if i == 0 {
					return nil, fmt.Errorf("unknown command: %s", w)
				}
				return out, nil
			case 1:
				out[i] = matches[0]
			default:
				return nil, fmt.Errorf("ambiguous command %q: %s", w, strings.Join(matches, ", "))
			}
		}
		node := current[out[i]]
		if node.DynamicFn != nil {
			break
		}
		current = node.Children
	}
	return out, nil
}

// WriteHelp prints aligned completion candidates to w in one write.
func WriteHelp(w io.Writer, candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	maxWidth := 20
	for _, c := range candidates {
		if len(c.Name)+2 > maxWidth {
			maxWidth = len(c.Name) + 2
		}
	}
	var sb strings.Builder
	sb.WriteString("Possible completions:\n")
	for _, c := range candidates {
		if c.Desc != "" {
			fmt.Fprintf(&sb, "  %-*s %s\n", maxWidth, c.Name, c.Desc)
		} else {
			fmt.Fprintf(&sb, "  %s\n", c.Name)
		}
	}
	io.WriteString(w, sb.String())
}

// CommonPrefix returns the longest shared prefix among the given strings.
func CommonPrefix(items []string) string {
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]
	for _, s := range items[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

// KeysOf returns an unsorted list of keys from a Node map.
func KeysOf(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// FilterPrefix returns only items that start with the given prefix.
func FilterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		return items
	}
	var result []string
	for _, item := range items {
		if strings.HasPrefix(item, prefix) {
			result = append(result, item)
		}
	}
	return result
}
