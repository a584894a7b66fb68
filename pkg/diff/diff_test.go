package diff

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

func cisco(t *testing.T) config.Dialect {
	t.Helper()
	d, err := config.Lookup("cisco")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return d
}

func patchRules(t *testing.T, text string) *rulebook.RuleSet {
	t.Helper()
	rs, err := rulebook.CompilePatching(cisco(t).Vendor(), text, rulebook.Options{})
	if err != nil {
		t.Fatalf("CompilePatching: %v", err)
	}
	return rs
}

func parse(t *testing.T, text string) *config.Tree {
	t.Helper()
	tree, err := cisco(t).Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tree
}

// flatten lists every node as "op path / row".
func flatten(d Diff) []string {
	var out []string
	d.Walk(func(path []string, n *Node) {
		out = append(out, n.Op.String()+" "+strings.Join(append(path, n.Row), " / "))
	})
	return out
}

const baseRules = `
interface *
  description <text>
  shutdown %logic=permanent
  ~
route-map *
  ~ %diff_logic=ordered
snmp-server community * %diff_logic=rewrite
banner * %diff_logic=multiline
  ~
ip name-server * %diff_logic=undo_redo
`

func TestMakeAddRemove(t *testing.T) {
	rules := patchRules(t, baseRules)
	old := parse(t, "interface eth0\n description foo\n shutdown\n")
	new := parse(t, "interface eth0\n description bar\n")

	d, err := Make(old, new, rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	want := "  interface eth0\n" +
		"-   description foo\n" +
		"-   shutdown\n" +
		"+   description bar\n"
	if got := d.Format(); got != want {
		t.Errorf("Format:\n%s\nwant:\n%s", got, want)
	}
	if d[0].Match == nil || d[0].Match.Rule.ID != "interface *" {
		t.Errorf("root match = %+v", d[0].Match)
	}
	if d[0].Match.Key != "eth0" {
		t.Errorf("root key = %q", d[0].Match.Key)
	}
}

func TestMakeIdempotent(t *testing.T) {
	rules := patchRules(t, baseRules)
	text := "interface eth0\n description foo\n shutdown\n" +
		"route-map RM\n match a\n set b\n" +
		"snmp-server community public\n" +
		"banner motd\n hello\n" +
		"ip name-server 10.0.0.1\n"

	d, err := Make(parse(t, text), parse(t, text), rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if d.HasChanges() {
		t.Fatalf("diff of equal trees has changes:\n%s", d.Format())
	}
	d.Walk(func(path []string, n *Node) {
		if n.Op != Unchanged && n.Op != Affected {
			t.Errorf("%v: op %v", append(path, n.Row), n.Op)
		}
	})
}

func TestMakeSymmetry(t *testing.T) {
	rules := patchRules(t, baseRules)
	a := parse(t, "interface eth0\n description foo\n shutdown\ninterface eth1\n")
	b := parse(t, "interface eth0\n description bar\ninterface eth2\n mtu 9000\n")

	ab, err := Make(a, b, rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	ba, err := Make(b, a, rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	got := flatten(Invert(ab))
	want := flatten(ba)
	sort.Strings(got)
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("inverted diff mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeDoesNotModifyInputs(t *testing.T) {
	rules := patchRules(t, baseRules)
	old := parse(t, "interface eth0\n description foo\n")
	new := parse(t, "interface eth0\n description bar\ninterface eth1\n")
	oldText, newText := old.String(), new.String()

	if _, err := Make(old, new, rules, nil); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if old.String() != oldText || new.String() != newText {
		t.Error("Make modified its inputs")
	}
}

func TestMoves(t *testing.T) {
	rules := patchRules(t, baseRules)

	tests := []struct {
		name string
		old  string
		new  string
		want []string
	}{
		{
			name: "ordered keeps moves",
			old:  "route-map RM\n match a\n match b\n set c\n",
			new:  "route-map RM\n match b\n match a\n set c\n",
			want: []string{
				"affected route-map RM",
				"unchanged route-map RM / match b",
				"moved route-map RM / match a",
				"moved route-map RM / set c",
			},
		},
		{
			name: "default ignores moves",
			old:  "interface eth0\n mtu 1500\n speed 1000\n",
			new:  "interface eth0\n speed 1000\n mtu 1500\n",
			want: []string{
				"unchanged interface eth0",
				"unchanged interface eth0 / speed 1000",
				"unchanged interface eth0 / mtu 1500",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Make(parse(t, tt.old), parse(t, tt.new), rules, nil)
			if err != nil {
				t.Fatalf("Make: %v", err)
			}
			if diff := cmp.Diff(tt.want, flatten(d)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMovedParent(t *testing.T) {
	rules := patchRules(t, "route-map * %diff_logic=ordered\n  ~\n")
	d, err := Make(
		parse(t, "route-map A\n x\n y\nroute-map B\n"),
		parse(t, "route-map B\nroute-map A\n y\n x\n"),
		rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	// Rows below a moved row keep the move instead of settling.
	want := []string{
		"unchanged route-map B",
		"moved route-map A",
		"unchanged route-map A / y",
		"moved route-map A / x",
	}
	if diff := cmp.Diff(want, flatten(d)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"added y", "added x"}, flatten(d[1].Subtree)); diff != "" {
		t.Errorf("moved subtree mismatch (-want +got):\n%s", diff)
	}
	if d[0].Subtree != nil {
		t.Error("unchanged row carries a subtree")
	}
	if inv := Invert(d); inv[1].Subtree != nil {
		t.Error("inverted diff kept the new side's subtree")
	}
}

func TestRewrite(t *testing.T) {
	rules := patchRules(t, baseRules)

	same := "snmp-server community a\nsnmp-server community b\n"
	d, err := Make(parse(t, same), parse(t, same), rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if len(d) != 0 {
		t.Errorf("unchanged rewrite block kept: %v", flatten(d))
	}

	d, err = Make(parse(t, same), parse(t, "snmp-server community a\nsnmp-server community c\n"), rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	want := []string{
		"removed snmp-server community a",
		"removed snmp-server community b",
		"added snmp-server community a",
		"added snmp-server community c",
	}
	if diff := cmp.Diff(want, flatten(d)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMultiline(t *testing.T) {
	rules := patchRules(t, baseRules)
	d, err := Make(parse(t, "banner motd\n line1\n"), parse(t, "banner motd\n line2\n"), rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	want := []string{
		"removed banner motd",
		"removed banner motd / line1",
		"added banner motd",
		"added banner motd / line2",
	}
	if diff := cmp.Diff(want, flatten(d)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestUndoRedo(t *testing.T) {
	rules := patchRules(t, baseRules)
	d, err := Make(
		parse(t, "ip name-server 1.1.1.1\nip name-server 8.8.8.8\n"),
		parse(t, "ip name-server 8.8.8.8\nip name-server 1.1.1.1\n"),
		rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	want := []string{
		"removed ip name-server 1.1.1.1",
		"unchanged ip name-server 8.8.8.8",
		"added ip name-server 1.1.1.1",
	}
	if diff := cmp.Diff(want, flatten(d)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIgnoreCase(t *testing.T) {
	rules := patchRules(t, "interface * %ignore_case\n  ~\n")
	d, err := Make(parse(t, "interface Eth0\n mtu 1500\n"), parse(t, "interface eth0\n mtu 1500\n"), rules, nil)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if d.HasChanges() {
		t.Errorf("case-only change reported:\n%s", d.Format())
	}
	if d[0].Row != "interface eth0" {
		t.Errorf("row = %q, want the new text", d[0].Row)
	}
}

func TestUnknownLogic(t *testing.T) {
	rules := patchRules(t, "hostname *\n")
	reg := &Registry{logics: map[string]Logic{}}
	_, err := Make(parse(t, "hostname a\n"), parse(t, "hostname b\n"), rules, reg)
	var ue *UnknownLogicError
	if !errors.As(err, &ue) || ue.Name != rulebook.LogicDefault {
		t.Errorf("expected UnknownLogicError, got %v", err)
	}
}

type allowAll struct{}

func (allowAll) ValidLogic(string) bool     { return true }
func (allowAll) ValidDiffLogic(string) bool { return true }

func TestRegisterLogic(t *testing.T) {
	rs, err := rulebook.CompilePatching(cisco(t).Vendor(), "hostname * %diff_logic=test.drop\n",
		rulebook.Options{Logics: allowAll{}})
	if err != nil {
		t.Fatalf("CompilePatching: %v", err)
	}
	reg := NewRegistry()
	reg.Register("test.drop", func(*Input) (Diff, error) { return nil, nil })

	d, err := Make(parse(t, "hostname a\n"), parse(t, "hostname b\n"), rs, reg)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if len(d) != 0 {
		t.Errorf("custom logic ignored: %v", flatten(d))
	}
	if names := reg.Names(); len(names) != 6 {
		t.Errorf("Names = %v", names)
	}
}

func TestFilterACL(t *testing.T) {
	v := cisco(t).Vendor()
	rules := patchRules(t, baseRules)

	tests := []struct {
		name string
		acl  string
		old  string
		want []string
	}{
		{
			name: "removal suppressed by child cant_delete",
			acl:  "interface *\n  ~ %cant_delete=1\n",
			old:  "interface eth0\n",
			want: []string{"unchanged interface eth0"},
		},
		{
			name: "deletable child still removed",
			acl:  "interface *\n  ~ %cant_delete=1\n  description *\n",
			old:  "interface eth0\n description x\n mtu 9000\n",
			want: []string{
				"affected interface eth0",
				"removed interface eth0 / description x",
				"unchanged interface eth0 / mtu 9000",
			},
		},
		{
			name: "rows outside the ACL dropped",
			acl:  "interface *\n  ~\n",
			old:  "interface eth0\n mtu 9000\nhostname r1\n",
			want: []string{
				"removed interface eth0",
				"removed interface eth0 / mtu 9000",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aclRules, err := rulebook.CompileACL(v, []rulebook.Source{{Text: tt.acl}}, rulebook.Options{})
			if err != nil {
				t.Fatalf("CompileACL: %v", err)
			}
			d, err := Make(parse(t, tt.old), config.New(), rules, nil)
			if err != nil {
				t.Fatalf("Make: %v", err)
			}
			got, err := FilterACL(d, aclRules)
			if err != nil {
				t.Fatalf("FilterACL: %v", err)
			}
			if diff := cmp.Diff(tt.want, flatten(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if d[0].Op != Removed {
				t.Error("FilterACL modified its input")
			}
		})
	}
}
