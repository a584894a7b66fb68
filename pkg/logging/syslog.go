package logging

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

// Severity is an RFC 3164 severity. Lower values are more severe.
type Severity int

const (
	SeverityError   Severity = 3
	SeverityWarning Severity = 4
	SeverityInfo    Severity = 6
	SeverityDebug   Severity = 7
)

var severityNames = map[string]Severity{
	"error":   SeverityError,
	"warning": SeverityWarning,
	"warn":    SeverityWarning,
	"info":    SeverityInfo,
	"debug":   SeverityDebug,
}

// ParseSeverity converts a severity name to its value. The empty name
// means no filtering and yields 0.
func ParseSeverity(name string) (Severity, error) {
	if name == "" {
		return 0, nil
	}
	s, ok := severityNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown syslog severity %q", name)
	}
	return s, nil
}

// severityOf maps a slog level onto the syslog scale.
func severityOf(level slog.Level) Severity {
	switch {
	case level >= slog.LevelError:
		return SeverityError
	case level >= slog.LevelWarn:
		return SeverityWarning
	case level >= slog.LevelInfo:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}

// local0
const syslogFacility = 16

// maxMessage is the RFC 3164 packet limit.
const maxMessage = 1024

// SyslogClient forwards log lines to a remote collector over UDP.
type SyslogClient struct {
	conn     net.Conn
	hostname string

	// Tag is the program name put in front of every message.
	Tag string
	// MinSeverity drops messages less severe than it. Zero disables the filter.
	MinSeverity Severity
}

// NewSyslogClient dials addr ("host" or "host:port", port 514 by default).
func NewSyslogClient(addr string) (*SyslogClient, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "514")
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial syslog %s: %w", addr, err)
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}
	return &SyslogClient{conn: conn, hostname: hostname, Tag: "netpatch"}, nil
}

// ShouldSend reports whether a message of severity s passes the filter.
func (c *SyslogClient) ShouldSend(s Severity) bool {
	return c.MinSeverity == 0 || s <= c.MinSeverity
}

// Send writes one message. Messages longer than a syslog packet are cut.
func (c *SyslogClient) Send(s Severity, msg string) error {
	line := fmt.Sprintf("<%d>%s %s %s: %s",
		syslogFacility*8+int(s), time.Now().Format(time.Stamp), c.hostname, c.Tag, msg)
	if len(line) > maxMessage {
		line = line[:maxMessage]
	}
	_, err := c.conn.Write([]byte(line))
	return err
}

// Close closes the connection.
func (c *SyslogClient) Close() error {
	return c.conn.Close()
}
