// Package configstore keeps the running and desired configuration of each
// device, plans the patch between them, and commits or rolls back with a
// history of previous running configurations.
package configstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/engine"
	"github.com/psaab/netpatch/pkg/patch"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// DefaultHistorySize is the number of snapshots kept per device.
const DefaultHistorySize = 50

// Planner computes patches; *engine.Engine implements it.
type Planner interface {
	Plan(req engine.Request) (*engine.Result, error)
	Dialect(vendor string) (config.Dialect, error)
}

// ErrUnknownDevice is returned for devices the store does not hold.
var ErrUnknownDevice = errors.New("unknown device")

type device struct {
	vendor  string
	running string
	desired string
	acl     []rulebook.Source
	history *History
}

// Store manages per-device configurations.
type Store struct {
	mu      sync.RWMutex
	devices map[string]*device
	planner Planner
	dir     string
	log     *slog.Logger
}

// New creates a store persisting to dir. An empty dir disables persistence.
func New(dir string, planner Planner, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		devices: make(map[string]*device),
		planner: planner,
		dir:     dir,
		log:     log,
	}
}

// Add registers a device with its running configuration. The desired
// configuration starts equal to it.
func (s *Store) Add(name, vendor, running string) error {
	if _, err := s.planner.Dialect(vendor); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[name]; ok {
		return fmt.Errorf("device %q already exists", name)
	}
	s.devices[name] = &device{
		vendor:  vendor,
		running: running,
		desired: running,
		history: NewHistory(DefaultHistorySize),
	}
	return nil
}

func (s *Store) get(name string) (*device, error) {
	d, ok := s.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownDevice, name)
	}
	return d, nil
}

// Devices returns the device names, sorted.
func (s *Store) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vendor returns the vendor of a device.
func (s *Store) Vendor(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(name)
	if err != nil {
		return "", err
	}
	return d.vendor, nil
}

// SetDesired replaces the desired configuration of a device.
func (s *Store) SetDesired(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.get(name)
	if err != nil {
		return err
	}
	d.desired = text
	return nil
}

// SetRunning replaces the running configuration, e.g. after a fresh fetch
// from the device.
func (s *Store) SetRunning(name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.get(name)
	if err != nil {
		return err
	}
	d.running = text
	return nil
}

// SetACL limits the rows plans of a device may touch.
func (s *Store) SetACL(name string, sources []rulebook.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.get(name)
	if err != nil {
		return err
	}
	d.acl = sources
	return nil
}

// Running returns the running configuration of a device.
func (s *Store) Running(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(name)
	if err != nil {
		return "", err
	}
	return d.running, nil
}

// Desired returns the desired configuration of a device.
func (s *Store) Desired(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(name)
	if err != nil {
		return "", err
	}
	return d.desired, nil
}

// IsDirty reports whether desired differs from running.
func (s *Store) IsDirty(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(name)
	return err == nil && d.running != d.desired
}

// History returns the snapshots of a device, most recent first.
func (s *Store) History(name string) ([]*HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return d.history.List(), nil
}

func (d *device) request(name string, doCommit bool) engine.Request {
	return engine.Request{
		Device:   name,
		Vendor:   d.vendor,
		Old:      d.running,
		New:      d.desired,
		ACL:      d.acl,
		DoCommit: doCommit,
	}
}

// Plan computes the patch from running to desired without changing state.
func (s *Store) Plan(name string) (*engine.Result, error) {
	s.mu.RLock()
	d, err := s.get(name)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	req := d.request(name, false)
	s.mu.RUnlock()
	return s.planner.Plan(req)
}

// Commit plans the patch, applies it to the running configuration and
// records the previous running configuration in the history. The returned
// result holds the commands to push to the device.
func (s *Store) Commit(name, comment string) (*engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(name)
	if err != nil {
		return nil, err
	}
	res, err := s.planner.Plan(d.request(name, true))
	if err != nil {
		return nil, fmt.Errorf("commit check failed: %w", err)
	}
	if len(res.Commands) == 0 {
		return res, nil
	}
	dialect, err := s.planner.Dialect(d.vendor)
	if err != nil {
		return nil, err
	}

	d.history.Push(&HistoryEntry{
		Config:    d.running,
		Timestamp: time.Now(),
		Comment:   comment,
		Commands:  len(res.Commands),
	})
	d.running = dialect.Join(patch.ApplyTo(res.Old, res.Patch))
	s.log.Info("configuration committed",
		"device", name,
		"vendor", d.vendor,
		"commands", len(res.Commands))

	if s.dir != "" {
		if err := s.saveDevice(name, d); err != nil {
			// Non-fatal: the commit already happened.
			s.log.Warn("failed to save device state", "device", name, "err", err)
		}
	}
	return res, nil
}

// Rollback sets desired to a previous configuration: n=0 is the running
// configuration, n>0 the running configuration before the nth last commit.
func (s *Store) Rollback(name string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.get(name)
	if err != nil {
		return err
	}
	if n == 0 {
		d.desired = d.running
		return nil
	}
	entry, err := d.history.Get(n - 1)
	if err != nil {
		return err
	}
	d.desired = entry.Config
	s.log.Info("rolled back desired configuration", "device", name, "rollback", n)
	return nil
}

// ShowCompare returns a unified diff from running to desired.
func (s *Store) ShowCompare(name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, err := s.get(name)
	if err != nil {
		return "", err
	}
	dialect, err := s.planner.Dialect(d.vendor)
	if err != nil {
		return "", err
	}
	return CompareText(dialect.Normalize(d.running), dialect.Normalize(d.desired), "running", "desired")
}

// CompareText returns a unified diff of two texts, or "[no changes]".
func CompareText(a, b, fromName, toName string) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("compare: %w", err)
	}
	if text == "" {
		return "[no changes]\n", nil
	}
	return text, nil
}

// deviceFile is the on-disk form of a device.
type deviceFile struct {
	Vendor  string            `yaml:"vendor"`
	Running string            `yaml:"running"`
	Desired string            `yaml:"desired"`
	ACL     []rulebook.Source `yaml:"acl,omitempty"`
	History []*HistoryEntry   `yaml:"history,omitempty"`
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

func (s *Store) saveDevice(name string, d *device) error {
	entries := d.history.Oldest()
	data, err := yaml.Marshal(&deviceFile{
		Vendor:  d.vendor,
		Running: d.running,
		Desired: d.desired,
		ACL:     d.acl,
		History: entries,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp, s.path(name))
}

// Save persists every device to the store directory.
func (s *Store) Save() error {
	if s.dir == "" {
		return fmt.Errorf("store has no directory")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, d := range s.devices {
		if err := s.saveDevice(name, d); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every device from the store directory. A missing directory
// yields an empty store.
func (s *Store) Load() error {
	if s.dir == "" {
		return fmt.Errorf("store has no directory")
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store dir: %w", err)
	}

	loaded := make(map[string]*device)
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yaml")
		if e.IsDir() || !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var f deviceFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		if _, err := s.planner.Dialect(f.Vendor); err != nil {
			return fmt.Errorf("device %s: %w", name, err)
		}
		d := &device{
			vendor:  f.Vendor,
			running: f.Running,
			desired: f.Desired,
			acl:     f.ACL,
			history: NewHistory(DefaultHistorySize),
		}
		for _, h := range f.History {
			d.history.Push(h)
		}
		loaded[name] = d
	}

	s.mu.Lock()
	s.devices = loaded
	s.mu.Unlock()
	return nil
}
