package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// TeeHandler is an slog.Handler that copies records into a Buffer and to
// remote syslog servers in addition to a wrapped base handler.
type TeeHandler struct {
	base   slog.Handler
	buffer *Buffer
	shared *clients
	attrs  []slog.Attr
	groups []string
}

type clients struct {
	mu   sync.RWMutex
	list []*SyslogClient
}

// NewTeeHandler wraps base. buffer may be nil.
func NewTeeHandler(base slog.Handler, buffer *Buffer) *TeeHandler {
	return &TeeHandler{base: base, buffer: buffer, shared: &clients{}}
}

// SetClients replaces the set of syslog clients. Old clients are closed.
func (h *TeeHandler) SetClients(list []*SyslogClient) {
	h.shared.mu.Lock()
	old := h.shared.list
	h.shared.list = list
	h.shared.mu.Unlock()

	for _, c := range old {
		c.Close()
	}
}

// Close closes all syslog clients.
func (h *TeeHandler) Close() {
	h.SetClients(nil)
}

// Enabled implements slog.Handler.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)

	h.shared.mu.RLock()
	list := h.shared.list
	h.shared.mu.RUnlock()
	if h.buffer == nil && len(list) == 0 {
		return err
	}

	msg := formatRecord(r, h.attrs, h.groups)
	if h.buffer != nil {
		h.buffer.Add(Record{Time: r.Time, Level: r.Level, Message: msg})
	}
	severity := severityOf(r.Level)
	for _, c := range list {
		if c.ShouldSend(severity) {
			c.Send(severity, msg)
		}
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{
		base:   h.base.WithAttrs(attrs),
		buffer: h.buffer,
		shared: h.shared,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

// WithGroup implements slog.Handler.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{
		base:   h.base.WithGroup(name),
		buffer: h.buffer,
		shared: h.shared,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

// formatRecord produces a compact text representation of a log record.
func formatRecord(r slog.Record, preAttrs []slog.Attr, groups []string) string {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range preAttrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}
	prefix := ""
	if len(groups) > 0 {
		prefix = strings.Join(groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%s", prefix, a.Key, a.Value.String())
		return true
	})
	return b.String()
}
