package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// splitPipe separates "show x | match y | count" into the command and its
// filters.
func splitPipe(line string) (string, []string) {
	parts := strings.Split(line, "|")
	cmd := strings.TrimSpace(parts[0])
	var filters []string
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			filters = append(filters, p)
		}
	}
	return cmd, filters
}

// applyFilters runs output through the pipe filters in order.
func applyFilters(output string, filters []string) (string, error) {
	for _, f := range filters {
		name, arg, _ := strings.Cut(f, " ")
		arg = strings.TrimSpace(arg)
		lines := strings.SplitAfter(output, "\n")
		if lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		var b strings.Builder
		switch name {
		case "match", "except":
			if arg == "" {
				return "", fmt.Errorf("%s: missing pattern", name)
			}
			keep := name == "match"
			for _, l := range lines {
				if strings.Contains(l, arg) == keep {
					b.WriteString(l)
				}
			}
		case "count":
			fmt.Fprintf(&b, "Count: %d lines\n", len(lines))
		case "last":
			n := 10
			if arg != "" {
				v, err := strconv.Atoi(arg)
				if err != nil || v < 0 {
					return "", fmt.Errorf("last: invalid count %q", arg)
				}
				n = v
			}
			if n < len(lines) {
				lines = lines[len(lines)-n:]
			}
			b.WriteString(strings.Join(lines, ""))
		default:
			return "", fmt.Errorf("unknown pipe filter: %s", name)
		}
		output = b.String()
	}
	return output, nil
}
