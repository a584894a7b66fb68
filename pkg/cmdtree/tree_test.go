package cmdtree

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type inventory []string

func (i inventory) Devices() []string { return i }

func TestCompleteFromTree(t *testing.T) {
	inv := inventory{"r1", "r2", "sw1"}
	tests := []struct {
		words   []string
		partial string
		want    []string
	}{
		{nil, "sh", []string{"show"}},
		{nil, "s", []string{"save", "show"}},
		{[]string{"show"}, "co", []string{"commands", "compare"}},
		{[]string{"show", "running"}, "r", []string{"r1", "r2"}},
		{[]string{"commit"}, "", []string{"r1", "r2", "sw1"}},
		{[]string{"load", "desired"}, "sw", []string{"sw1"}},
		{[]string{"nosuch"}, "", nil},
	}
	for _, tt := range tests {
		got := CompleteFromTree(Tree, tt.words, tt.partial, inv)
		if diff := cmp.Diff(tt.want, got, cmpEmpty); diff != "" {
			t.Errorf("CompleteFromTree(%v, %q) mismatch (-want +got):\n%s", tt.words, tt.partial, diff)
		}
	}
}

var cmpEmpty = cmp.Comparer(func(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return cmp.Equal(a, b)
})

func TestResolve(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sh dev", "show devices", false},
		{"show run r1", "show running r1", false},
		{"co r1 first commit", "commit r1 first commit", false},
		{"q", "quit", false},
		{"sh co r1", "", true}, // commands or compare
		{"frobnicate", "", true},
		{"show running rr", "show running rr", false},
	}
	for _, tt := range tests {
		got, err := Resolve(strings.Fields(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("Resolve(%q) error = %v", tt.in, err)
			continue
		}
		if err == nil && strings.Join(got, " ") != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, strings.Join(got, " "), tt.want)
		}
	}
}

func TestWriteHelp(t *testing.T) {
	var b bytes.Buffer
	WriteHelp(&b, HelpCandidates(Tree["load"].Children))
	want := "Possible completions:\n" +
		"  desired              Load desired configuration: load desired DEVICE FILE\n" +
		"  running              Load running configuration: load running DEVICE VENDOR FILE\n"
	if b.String() != want {
		t.Errorf("WriteHelp:\n%s\nwant:\n%s", b.String(), want)
	}
}

func TestCommonPrefix(t *testing.T) {
	if got := CommonPrefix([]string{"commands", "compare"}); got != "com" {
		t.Errorf("CommonPrefix = %q", got)
	}
	if got := CommonPrefix(nil); got != "" {
		t.Errorf("CommonPrefix(nil) = %q", got)
	}
}
