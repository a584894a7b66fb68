// Package logging builds the process logger: a slog handler writing text or
// JSON, optionally teeing records into an in-memory buffer and to remote
// syslog servers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options configure New.
type Options struct {
	Writer io.Writer
	Level  string // debug, info, warn or error
	Format string // text or json
	// Buffer keeps recent records for interactive inspection.
	Buffer *Buffer
	Syslog []*SyslogClient
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// New returns a logger configured by opts.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	ho := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		base = slog.NewTextHandler(opts.Writer, ho)
	case "json":
		base = slog.NewJSONHandler(opts.Writer, ho)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	if opts.Buffer == nil && len(opts.Syslog) == 0 {
		return slog.New(base), nil
	}
	h := NewTeeHandler(base, opts.Buffer)
	h.SetClients(opts.Syslog)
	return slog.New(h), nil
}
