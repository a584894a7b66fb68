package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const (
	runningCfg = "hostname r1\ninterface eth0\n description foo\n shutdown\n"
	desiredCfg = "hostname r1\ninterface eth0\n description bar\n"
)

func TestPatchCommands(t *testing.T) {
	dir := writeFiles(t, map[string]string{"old.cfg": runningCfg, "new.cfg": desiredCfg})
	old, new := filepath.Join(dir, "old.cfg"), filepath.Join(dir, "new.cfg")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"text", nil, "interface eth0\n description bar\n no shutdown\n exit\n"},
		{"commands", []string{"--commands"}, "interface eth0\ndescription bar\nno shutdown\nexit\n"},
		{"paths", []string{"--paths"}, "interface eth0 / description bar\ninterface eth0 / no shutdown\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"patch", "--vendor", "cisco", old, new}, tt.args...)
			got, err := execute(t, args...)
			if err != nil {
				t.Fatalf("patch: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPatchErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"old.cfg": runningCfg, "new.cfg": desiredCfg})
	old, new := filepath.Join(dir, "old.cfg"), filepath.Join(dir, "new.cfg")

	for _, args := range [][]string{
		{"patch", old, new},
		{"patch", "--vendor", "nosuch", old, new},
		{"patch", "--vendor", "cisco", old, filepath.Join(dir, "missing.cfg")},
		{"patch", "--vendor", "cisco", "--commands", "--paths", old, new},
		{"patch", "--vendor", "cisco", "--color", "sometimes", old, new},
	} {
		if _, err := execute(t, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestVendorFromEnvironment(t *testing.T) {
	dir := writeFiles(t, map[string]string{"old.cfg": runningCfg, "new.cfg": desiredCfg})
	t.Setenv("NETPATCH_VENDOR", "cisco")
	got, err := execute(t, "patch", "--commands", filepath.Join(dir, "old.cfg"), filepath.Join(dir, "new.cfg"))
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !strings.Contains(got, "no shutdown\n") {
		t.Errorf("output = %q", got)
	}
}

func TestDiff(t *testing.T) {
	dir := writeFiles(t, map[string]string{"old.cfg": runningCfg, "new.cfg": desiredCfg})
	old, new := filepath.Join(dir, "old.cfg"), filepath.Join(dir, "new.cfg")

	got, err := execute(t, "diff", "--vendor", "cisco", old, new)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	want := "  interface eth0\n" +
		"-   description foo\n" +
		"-   shutdown\n" +
		"+   description bar\n"
	if got != want {
		t.Errorf("diff:\n%s\nwant:\n%s", got, want)
	}

	got, err = execute(t, "diff", "--vendor", "cisco", "--text", old, new)
	if err != nil {
		t.Fatalf("diff --text: %v", err)
	}
	if !strings.Contains(got, "- shutdown\n") || !strings.Contains(got, "+ description bar\n") {
		t.Errorf("diff --text:\n%s", got)
	}

	got, err = execute(t, "diff", "--vendor", "cisco", old, old)
	if err != nil || got != "[no changes]\n" {
		t.Errorf("diff of equal files = %q, %v", got, err)
	}
}

func TestParse(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"r1.cfg": "ntp server 10.0.0.1\n!\ninterface eth0\n shutdown\n description x\nhostname r1\n",
	})
	path := filepath.Join(dir, "r1.cfg")

	got, err := execute(t, "parse", "--vendor", "cisco", path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := "ntp server 10.0.0.1\ninterface eth0\n shutdown\n description x\nhostname r1\n"; got != want {
		t.Errorf("parse:\n%s\nwant:\n%s", got, want)
	}

	got, err = execute(t, "parse", "--vendor", "cisco", "--order", path)
	if err != nil {
		t.Fatalf("parse --order: %v", err)
	}
	if want := "hostname r1\ninterface eth0\n description x\n shutdown\nntp server 10.0.0.1\n"; got != want {
		t.Errorf("parse --order:\n%s\nwant:\n%s", got, want)
	}
}

func TestACL(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"r1.cfg":     "hostname r1\ninterface eth0\n description x\n",
		"ifaces.acl": "interface *\n  ~\n",
	})
	got, err := execute(t, "acl", "--vendor", "cisco", "--acl", filepath.Join(dir, "ifaces.acl"), filepath.Join(dir, "r1.cfg"))
	if err == nil {
		t.Fatal("expected error for rows outside the ACL")
	}
	if got != "hostname r1\n" {
		t.Errorf("acl output = %q", got)
	}
}

func TestConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"netpatch.yaml": "color: never\nlog-level: error\n",
		"old.cfg":       runningCfg,
		"new.cfg":       desiredCfg,
	})
	_, err := execute(t, "patch", "--config", filepath.Join(dir, "netpatch.yaml"), "--vendor", "cisco",
		filepath.Join(dir, "old.cfg"), filepath.Join(dir, "new.cfg"))
	if err != nil {
		t.Fatalf("patch with config file: %v", err)
	}
	if _, err := execute(t, "patch", "--config", filepath.Join(dir, "missing.yaml"), "--vendor", "cisco",
		filepath.Join(dir, "old.cfg"), filepath.Join(dir, "new.cfg")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestColorEnabled(t *testing.T) {
	var b bytes.Buffer
	for mode, want := range map[string]bool{"always": true, "never": false, "auto": false} {
		got, err := colorEnabled(mode, &b)
		if err != nil || got != want {
			t.Errorf("colorEnabled(%q) = %v, %v; want %v", mode, got, err, want)
		}
	}
}
