package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDialectRoundTrip(t *testing.T) {
	tests := []struct {
		vendor string
		text   string
	}{
		{"cisco", "hostname r1\ninterface eth0\n description uplink\n ip address 10.0.0.1 255.255.255.0\n"},
		{"arista", "hostname r1\ninterface Ethernet1\n   description uplink\n   no switchport\n"},
		{"huawei", "sysname r1\ninterface GE0/0/1\n description uplink\n"},
		{"juniper", "system {\n    host-name r1;\n    name-server {\n        10.0.0.1;\n    }\n}\n" +
			"interfaces {\n    ge-0/0/0 {\n        description \"uplink port\";\n    }\n}\n"},
		{"nokia", "configure {\n    system {\n        name \"r1\"\n    }\n}\n"},
		{"routeros", "/ip address\nadd address=10.0.0.1/24 interface=ether1\n/system identity\nset name=r1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			d, err := Lookup(tt.vendor)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			tree, err := d.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := d.Join(tree); got != tt.text {
				t.Errorf("Join(Parse(text)):\n%s\nwant:\n%s", got, tt.text)
			}
			if got := d.Normalize(tt.text); got != tt.text {
				t.Errorf("Normalize:\n%s\nwant:\n%s", got, tt.text)
			}
		})
	}
}

func TestDialectSkipsNoise(t *testing.T) {
	tests := []struct {
		vendor, text, want string
	}{
		{"cisco", "!\nhostname r1\n!\ninterface eth0\n description x\n exit\nend\n", "hostname r1\ninterface eth0\n description x\n"},
		{"huawei", "#\nsysname r1\n#\ninterface GE0/0/1\n description x\n quit\n#\nreturn\n", "sysname r1\ninterface GE0/0/1\n description x\n"},
		{"routeros", "# exported\n/ip address\nadd address=10.0.0.1/24 \\\n    interface=ether1\n", "/ip address\nadd address=10.0.0.1/24 interface=ether1\n"},
		{"nokia", "# TiMOS\nconfigure {\n    system {\n    }\n}\n", "configure {\n    system\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			d, err := Lookup(tt.vendor)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			tree, err := d.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := d.Join(tree); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestDialectParseErrors(t *testing.T) {
	tests := []struct {
		vendor, text, msg string
	}{
		{"juniper", "system {\n    host-name r1;\n", "unexpected end of input, missing '}'"},
		{"juniper", "system { a }\n", "missing ';'"},
		{"juniper", "}\n", "unbalanced brace"},
		{"juniper", "host-name r1\n", "missing ';'"},
		{"juniper", "{ x; }\n", "block without name"},
		{"juniper", ";\n", "empty statement"},
		{"nokia", "}\n", "unbalanced brace"},
		{"nokia", "configure {\n", "unexpected end of input, missing '}'"},
		{"cisco", "a\n  b\n c\n", "Invalid indentation"},
	}
	for _, tt := range tests {
		d, err := Lookup(tt.vendor)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		_, err = d.Parse(tt.text)
		var pe *ParserError
		if !errors.As(err, &pe) || pe.Msg != tt.msg {
			t.Errorf("%s %q: err = %v, want %q", tt.vendor, tt.text, err, tt.msg)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("nosuch"); err == nil {
		t.Error("expected error for unknown vendor")
	}
	want := []string{"arista", "cisco", "huawei", "juniper", "nokia", "routeros"}
	if diff := cmp.Diff(want, Vendors()); diff != "" {
		t.Errorf("Vendors mismatch (-want +got):\n%s", diff)
	}
}

// patchCmds is "change one leaf and remove another" under one block.
func patchCmds(block, set, del string) []*Command {
	return []*Command{{
		Row:   block,
		Block: true,
		Children: []*Command{
			{Row: set},
			{Row: del},
		},
	}}
}

func TestDialectCommands(t *testing.T) {
	tests := []struct {
		vendor string
		cmds   []*Command
		want   []string
		text   string
	}{
		{
			vendor: "cisco",
			cmds:   patchCmds("interface eth0", "description y", "no shutdown"),
			want:   []string{"interface eth0", "description y", "no shutdown", "exit"},
			text:   "interface eth0\n description y\n no shutdown\n exit\n",
		},
		{
			vendor: "huawei",
			cmds:   patchCmds("interface GE0/0/1", "description y", "undo shutdown"),
			want:   []string{"interface GE0/0/1", "description y", "undo shutdown", "quit"},
			text:   "interface GE0/0/1\n description y\n undo shutdown\n quit\n",
		},
		{
			vendor: "juniper",
			cmds:   patchCmds("system", "host-name r2", "delete name-server"),
			want:   []string{"set system host-name r2", "delete system name-server"},
			text:   "system {\n    host-name r2;\n    delete name-server;\n}\n",
		},
		{
			vendor: "nokia",
			cmds:   patchCmds("configure", `system name "r2"`, "delete system location"),
			want:   []string{`/configure system name "r2"`, "delete /configure system location"},
			text:   "configure {\n    system name \"r2\"\n    delete system location\n}\n",
		},
		{
			vendor: "routeros",
			cmds:   patchCmds("/system identity", "set name=r2", "remove [find]"),
			want:   []string{"/system identity", "set name=r2", "remove [find]"},
			text:   "/system identity\nset name=r2\nremove [find]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.vendor, func(t *testing.T) {
			d, err := Lookup(tt.vendor)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if diff := cmp.Diff(tt.want, d.Commands(tt.cmds)); diff != "" {
				t.Errorf("Commands mismatch (-want +got):\n%s", diff)
			}
			if got := d.FormatPatch(tt.cmds); got != tt.text {
				t.Errorf("FormatPatch:\n%s\nwant:\n%s", got, tt.text)
			}
		})
	}
}

func TestCmdPaths(t *testing.T) {
	cmds := []*Command{
		{Row: "hostname r2"},
		{Row: "interface eth0", Block: true, Children: []*Command{
			{Row: "ip address 10.0.0.1/24", Block: true, Children: []*Command{{Row: "secondary"}}},
			{Row: "no shutdown"},
		}},
	}
	want := [][]string{
		{"hostname r2"},
		{"interface eth0", "ip address 10.0.0.1/24", "secondary"},
		{"interface eth0", "no shutdown"},
	}
	if diff := cmp.Diff(want, CmdPaths(cmds)); diff != "" {
		t.Errorf("CmdPaths mismatch (-want +got):\n%s", diff)
	}
}
