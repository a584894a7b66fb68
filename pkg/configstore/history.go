package configstore

import (
	"fmt"
	"slices"
	"time"
)

// HistoryEntry is the running configuration a commit replaced.
type HistoryEntry struct {
	Seq       int       `yaml:"seq"`
	Config    string    `yaml:"config"`
	Timestamp time.Time `yaml:"timestamp"`
	Comment   string    `yaml:"comment,omitempty"`
	// Commands is the size of the patch that replaced Config.
	Commands int `yaml:"commands,omitempty"`
}

// History keeps the last snapshots of one device, newest first.
type History struct {
	entries []*HistoryEntry
	max     int
	seq     int
}

func NewHistory(maxSize int) *History {
	return &History{max: maxSize}
}

// Push records a snapshot and drops the oldest once the history is full.
// Entries without a sequence number get the next one.
func (h *History) Push(e *HistoryEntry) {
	if e.Seq == 0 {
		h.seq++
		e.Seq = h.seq
	} else if e.Seq > h.seq {
		h.seq = e.Seq
	}
	h.entries = slices.Insert(h.entries, 0, e)
	if h.max > 0 && len(h.entries) > h.max {
		h.entries = h.entries[:h.max]
	}
}

// Get returns the snapshot n commits back, 0 being the latest.
func (h *History) Get(n int) (*HistoryEntry, error) {
	if n < 0 || n >= len(h.entries) {
		return nil, fmt.Errorf("rollback %d: only %d configurations saved", n+1, len(h.entries))
	}
	return h.entries[n], nil
}

func (h *History) Len() int {
	return len(h.entries)
}

// List returns the snapshots, newest first.
func (h *History) List() []*HistoryEntry {
	return slices.Clone(h.entries)
}

// Oldest returns the snapshots oldest first, the order Push replays them in.
func (h *History) Oldest() []*HistoryEntry {
	out := slices.Clone(h.entries)
	slices.Reverse(out)
	return out
}
