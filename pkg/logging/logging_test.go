package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var out bytes.Buffer
	log, err := New(Options{Writer: &out, Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("hidden")
	log.Info("plan computed", "device", "r1")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), out.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "plan computed" || rec["device"] != "r1" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(Options{Writer: &bytes.Buffer{}, Format: "xml"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestBufferTee(t *testing.T) {
	buf := NewBuffer(2)
	log, err := New(Options{Writer: &bytes.Buffer{}, Level: "debug", Buffer: buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sub := buf.Subscribe(4)
	defer sub.Close()

	log.With("device", "r1").Info("first")
	log.WithGroup("plan").Warn("second", "changes", 3)
	log.Error("third")

	if buf.Len() != 2 {
		t.Fatalf("Len = %d, want 2", buf.Len())
	}
	got := buf.Latest(10, Filter{})
	if got[0].Message != "third" || got[1].Message != "second plan.changes=3" {
		t.Errorf("Latest = %+v", got)
	}
	if warn := buf.Latest(10, Filter{MinLevel: slog.LevelError}); len(warn) != 1 {
		t.Errorf("level filter returned %d records", len(warn))
	}
	if n := len(buf.Latest(10, Filter{Contains: "PLAN.CHANGES"})); n != 1 {
		t.Errorf("substring filter returned %d records", n)
	}

	select {
	case rec := <-sub.C:
		if rec.Message != "first device=r1" {
			t.Errorf("subscribed record = %q", rec.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no record delivered to subscriber")
	}
}

func TestSyslogSend(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	c, err := NewSyslogClient(pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSyslogClient: %v", err)
	}
	h := NewTeeHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), nil)
	h.SetClients([]*SyslogClient{c})
	defer h.Close()

	slog.New(h).Warn("rollback", "device", "r1")

	pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1024)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg := string(buf[:n])
	if !strings.HasPrefix(msg, "<132>") { // local0*8 + warning
		t.Errorf("priority prefix missing: %q", msg)
	}
	if !strings.HasSuffix(msg, "netpatch: rollback device=r1") {
		t.Errorf("message = %q", msg)
	}
}

func TestShouldSend(t *testing.T) {
	warn, err := ParseSeverity("warning")
	if err != nil {
		t.Fatal(err)
	}
	c := &SyslogClient{MinSeverity: warn}
	if !c.ShouldSend(SeverityError) || !c.ShouldSend(SeverityWarning) {
		t.Error("severe messages filtered")
	}
	if c.ShouldSend(SeverityInfo) {
		t.Error("info passed warning filter")
	}
	if !(&SyslogClient{}).ShouldSend(SeverityDebug) {
		t.Error("unfiltered client dropped debug")
	}
	if s, err := ParseSeverity(""); err != nil || s != 0 {
		t.Errorf("empty severity = %d, %v", s, err)
	}
	if _, err := ParseSeverity("loud"); err == nil {
		t.Error("unknown severity accepted")
	}
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "netpatch.log")
	rf, err := OpenFile(FileConfig{Path: path, MaxSize: 10, MaxFiles: 2})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	for _, line := range []string{"aaaaaaaaaaaa\n", "bbbbbbbbbbbb\n", "cccccccccccc\n"} {
		if _, err := rf.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	for suffix, want := range map[string]string{".1": "cccccccccccc\n", ".2": "bbbbbbbbbbbb\n"} {
		data, err := os.ReadFile(path + suffix)
		if err != nil {
			t.Fatalf("read %s: %v", suffix, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", suffix, data, want)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("kept more than MaxFiles rotations: %v", err)
	}
	if _, err := rf.Write([]byte("x")); err == nil {
		t.Error("write after close succeeded")
	}
}
