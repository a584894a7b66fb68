package engine

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/psaab/netpatch/pkg/acl"
	"github.com/psaab/netpatch/pkg/patch"
	"github.com/psaab/netpatch/pkg/rulebook"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestPlanInterfaceChange(t *testing.T) {
	e := newEngine(t)
	res, err := e.Plan(Request{
		Device: "r1",
		Vendor: "cisco",
		Old:    "interface eth0\n  description foo\n  shutdown\n",
		New:    "interface eth0\n  description bar\n",
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []string{"interface eth0", "description bar", "no shutdown", "exit"}
	if diff := cmp.Diff(want, res.Commands); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}
	wantPaths := [][]string{
		{"interface eth0", "description bar"},
		{"interface eth0", "no shutdown"},
	}
	if diff := cmp.Diff(wantPaths, res.CmdPaths); diff != "" {
		t.Errorf("CmdPaths mismatch (-want +got):\n%s", diff)
	}
	if res.Changes() == 0 {
		t.Error("Changes() = 0")
	}
}

func TestPlanNoChanges(t *testing.T) {
	e := newEngine(t)
	text := "hostname r1\ninterface eth0\n description foo\n"
	res, err := e.Plan(Request{Vendor: "cisco", Old: text, New: text})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Commands) != 0 || res.Changes() != 0 {
		t.Errorf("commands for equal configs: %v", res.Commands)
	}
}

func TestPlanOrdersTopLevel(t *testing.T) {
	e := newEngine(t)
	res, err := e.Plan(Request{
		Vendor: "cisco",
		Old:    "hostname r1\nntp server 10.0.0.1\n",
		New:    "ntp server 10.0.0.2\nhostname r2\n",
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// Removals run in reverse rule order ahead of every addition.
	want := []string{"no ntp server 10.0.0.1", "hostname r2", "ntp server 10.0.0.2"}
	if diff := cmp.Diff(want, res.Commands); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanACL(t *testing.T) {
	e := newEngine(t)
	tests := []struct {
		name string
		acl  string
		old  string
		want []string
	}{
		{
			name: "removal suppressed",
			acl:  "interface *\n  ~ %cant_delete=1\n",
			old:  "interface eth0\n",
			want: nil,
		},
		{
			name: "deletable child removed",
			acl:  "interface *\n  ~ %cant_delete=1\n  description *\n",
			old:  "interface eth0\n description x\n mtu 9000\n",
			want: []string{"interface eth0", "no description x", "exit"},
		},
		{
			name: "rows outside the ACL untouched",
			acl:  "ntp server *\n",
			old:  "hostname r1\nntp server 10.0.0.1\n",
			want: []string{"no ntp server 10.0.0.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Plan(Request{
				Vendor: "cisco",
				Old:    tt.old,
				ACL:    []rulebook.Source{{Generator: "gen", Text: tt.acl}},
			})
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if diff := cmp.Diff(tt.want, res.Commands); diff != "" {
				t.Errorf("Commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanFatalACL(t *testing.T) {
	e := newEngine(t)
	_, err := e.Plan(Request{
		Vendor:   "cisco",
		Old:      "hostname r1\n",
		New:      "hostname r2\n",
		ACL:      []rulebook.Source{{Generator: "gen", Text: "ntp server *\n"}},
		FatalACL: true,
	})
	var ae *acl.Error
	if !errors.As(err, &ae) || ae.Row != "hostname r1" {
		t.Fatalf("expected acl.Error for hostname, got %v", err)
	}
}

func TestPlanUnknownVendor(t *testing.T) {
	e := newEngine(t)
	if _, err := e.Plan(Request{Vendor: "nosuch"}); err == nil {
		t.Fatal("expected error for unknown vendor")
	}
}

func TestPlanAppliesToNew(t *testing.T) {
	e := newEngine(t)
	old := "hostname r1\ninterface eth0\n description foo\n shutdown\n mtu 1500\nip route 0.0.0.0 0.0.0.0 10.0.0.1\n"
	new := "hostname r2\ninterface eth0\n description bar\ninterface eth1\n description new\nip route 0.0.0.0 0.0.0.0 10.0.0.2\n"

	res, err := e.Plan(Request{Vendor: "cisco", Old: old, New: new})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	applied := patch.ApplyTo(res.Old, res.Patch)
	d, err := e.Dialect("cisco")
	if err != nil {
		t.Fatalf("Dialect: %v", err)
	}
	again, err := e.Plan(Request{Vendor: "cisco", Old: d.Join(applied), New: new})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(again.Commands) != 0 {
		t.Errorf("patched config still differs: %v", again.Commands)
	}
}

func TestPlanMovesFilterTerm(t *testing.T) {
	e := newEngine(t)
	filter := func(terms string) string {
		return "firewall {\n    family inet {\n        filter F {\n" + terms + "        }\n    }\n}\n"
	}
	termA := "            term a {\n                from {\n                    source-address 10.0.0.0/8;\n" +
		"                }\n                then accept;\n            }\n"
	termB := "            term b {\n                then reject;\n            }\n"
	old, new := filter(termA+termB), filter(termB+termA)

	res, err := e.Plan(Request{Vendor: "juniper", Old: old, New: new})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []string{
		"delete firewall family inet filter F term a",
		"set firewall family inet filter F term a from source-address 10.0.0.0/8",
		"set firewall family inet filter F term a then accept",
	}
	if diff := cmp.Diff(want, res.Commands); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}

	d, err := e.Dialect("juniper")
	if err != nil {
		t.Fatalf("Dialect: %v", err)
	}
	again, err := e.Plan(Request{Vendor: "juniper", Old: d.Join(patch.ApplyTo(res.Old, res.Patch)), New: new})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(again.Commands) != 0 {
		t.Errorf("patched config still differs: %v", again.Commands)
	}
}

func TestRulesOverride(t *testing.T) {
	fsys := fstest.MapFS{
		"cisco.rul":   {Data: []byte("hostname ~ %force_commit\n")},
		"cisco.order": {Data: []byte("hostname\n")},
	}
	e, err := New(Options{Rules: fsys})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := e.Plan(Request{Vendor: "cisco", Old: "hostname a\n", New: "hostname b\n", DoCommit: true})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []string{"hostname b", "commit"}
	if diff := cmp.Diff(want, res.Commands); diff != "" {
		t.Errorf("Commands mismatch (-want +got):\n%s", diff)
	}
	if _, err := e.Rulebook("juniper"); err == nil {
		t.Error("expected error for vendor missing from rules directory")
	}
}

func TestPackagedRulebooksCompile(t *testing.T) {
	e := newEngine(t)
	for _, vendor := range []string{"arista", "cisco", "huawei", "juniper", "nokia", "routeros"} {
		if _, err := e.Rulebook(vendor); err != nil {
			t.Errorf("%s: %v", vendor, err)
		}
	}
}

func TestOrderConfig(t *testing.T) {
	e := newEngine(t)
	got, err := e.OrderConfig("cisco", "ntp server 10.0.0.1\ninterface eth0\n shutdown\n description x\nhostname r1\n")
	if err != nil {
		t.Fatalf("OrderConfig: %v", err)
	}
	want := "hostname r1\ninterface eth0\n description x\n shutdown\nntp server 10.0.0.1\n"
	if got != want {
		t.Errorf("OrderConfig:\n%s\nwant:\n%s", got, want)
	}
}
