package order

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/rulebook"
)

const orderRules = `
hostname
interface
  description
  ip address
  shutdown %order_reverse
  ~
no ip domain-lookup
router bgp
  neighbor * remote-as
  neighbor
~
exit
`

func newOrderer(t *testing.T) *Orderer {
	t.Helper()
	d, err := config.Lookup("cisco")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	rules, err := rulebook.CompileOrdering(d.Vendor(), orderRules, rulebook.Options{})
	if err != nil {
		t.Fatalf("CompileOrdering: %v", err)
	}
	return New(rules, d.Vendor())
}

func TestGetOrder(t *testing.T) {
	o := newOrderer(t)

	host := o.GetOrder("hostname r1", true, nil)
	iface := o.GetOrder("interface eth0", true, nil)
	if host.Rule == nil || iface.Rule == nil {
		t.Fatal("expected matches")
	}
	if !(host.Signed() < iface.Signed()) {
		t.Errorf("hostname (%v) should sort before interface (%v)", host.Signed(), iface.Signed())
	}

	undo := o.GetOrder("no hostname r1", false, nil)
	if undo.Forward {
		t.Error("undo row resolved forward")
	}
	if undo.Signed() >= 0 || undo.Signed() > host.Signed() {
		t.Errorf("undo order %v should sort before apply rows", undo.Signed())
	}

	if exit := o.GetOrder("exit", true, nil); !math.IsInf(exit.Value, 1) {
		t.Errorf("exit order = %v, want +Inf", exit.Value)
	}

	none := o.GetOrder("hostname", true, &rulebook.RuleSet{})
	if none.Value != Unmatched || none.Rule != nil {
		t.Errorf("unmatched order = %+v", none)
	}
}

func TestGetOrderChildren(t *testing.T) {
	o := newOrderer(t)
	iface := o.GetOrder("interface eth0", true, nil)

	desc := o.GetOrder("description uplink", true, iface.Children)
	addr := o.GetOrder("ip address 10.0.0.1 255.255.255.0", true, iface.Children)
	if !(desc.Signed() < addr.Signed()) {
		t.Errorf("description (%v) should sort before ip address (%v)", desc.Signed(), addr.Signed())
	}

	// order_reverse keeps the undo row at the rule's own position.
	noShut := o.GetOrder("no shutdown", false, iface.Children)
	if !noShut.Forward {
		t.Error("order_reverse rule resolved backwards")
	}
	if noShut.Signed() <= addr.Signed() {
		t.Errorf("no shutdown (%v) should sort after ip address (%v)", noShut.Signed(), addr.Signed())
	}
}

func TestGetOrderReverseDeclaration(t *testing.T) {
	o := newOrderer(t)
	ord := o.GetOrder("no ip domain-lookup", false, nil)
	if ord.Rule == nil || ord.Rule.ID != "no ip domain-lookup" {
		t.Fatalf("rule = %+v", ord.Rule)
	}
}

func TestGetOrderSpecificity(t *testing.T) {
	o := newOrderer(t)
	bgp := o.GetOrder("router bgp 65000", true, nil)

	remote := o.GetOrder("neighbor 10.0.0.1 remote-as 65001", true, bgp.Children)
	other := o.GetOrder("neighbor 10.0.0.1 description peer", true, bgp.Children)
	if remote.Rule.ID != "neighbor * remote-as" {
		t.Errorf("remote-as row matched %q", remote.Rule.ID)
	}
	if other.Rule.ID != "neighbor" {
		t.Errorf("other neighbor row matched %q", other.Rule.ID)
	}
	if !(remote.Signed() < other.Signed()) {
		t.Error("remote-as should sort before other neighbor rows")
	}
}

func TestOrderConfig(t *testing.T) {
	o := newOrderer(t)
	d, _ := config.Lookup("cisco")
	tree, err := d.Parse("" +
		"router bgp 65000\n" +
		" neighbor 10.0.0.1 description peer\n" +
		" neighbor 10.0.0.1 remote-as 65001\n" +
		"logging host 10.0.0.9\n" +
		"interface eth1\n" +
		" ip address 10.0.0.1 255.255.255.0\n" +
		" description b\n" +
		"interface eth0\n" +
		"hostname r1\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := o.OrderConfig(tree)
	want := "" +
		"hostname r1\n" +
		"interface eth1\n" +
		" description b\n" +
		" ip address 10.0.0.1 255.255.255.0\n" +
		"interface eth0\n" +
		"router bgp 65000\n" +
		" neighbor 10.0.0.1 remote-as 65001\n" +
		" neighbor 10.0.0.1 description peer\n" +
		"logging host 10.0.0.9\n"
	if diff := cmp.Diff(want, got.String()); diff != "" {
		t.Errorf("OrderConfig mismatch (-want +got):\n%s", diff)
	}

	again := o.OrderConfig(got)
	if !config.Equal(got, again) {
		t.Errorf("OrderConfig not idempotent:\n%s", again)
	}
}

func TestKeyLess(t *testing.T) {
	tests := []struct {
		a, b Key
		want bool
	}{
		{Key{Order: 1}, Key{Order: 2}, true},
		{Key{Order: 1, Rule: 2}, Key{Order: 1, Rule: 1}, false},
		{Key{Order: 1, Rule: 1, Direction: 0}, Key{Order: 1, Rule: 1, Direction: 1}, true},
		{Key{Order: 1, Rule: 1, Direction: 1, Pos: 3}, Key{Order: 1, Rule: 1, Direction: 1, Pos: 2}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%+v.Less(%+v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
