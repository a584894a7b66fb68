package rulebook

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/hashicorp/golang-lru/arc/v2"

	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/pattern"
)

// Texts holds the packaged vendor rulebooks: <vendor>.rul for patching
// rules and <vendor>.order for ordering rules.
//
//go:embed texts/*.rul texts/*.order
var Texts embed.FS

// Packaged returns the packaged rulebooks rooted so that files are
// addressed as <vendor>.rul.
func Packaged() fs.FS {
	sub, err := fs.Sub(Texts, "texts")
	if err != nil {
		panic(err) // embedded directory always exists
	}
	return sub
}

// Rulebook is the compiled set of rules for one vendor.
type Rulebook struct {
	Vendor   config.Vendor
	Patching *RuleSet
	Ordering *RuleSet
}

// Load reads <vendor>.rul and <vendor>.order from fsys and compiles them.
func Load(fsys fs.FS, vendor config.Vendor, opts Options) (*Rulebook, error) {
	rul, err := fs.ReadFile(fsys, vendor.Name+".rul")
	if err != nil {
		return nil, fmt.Errorf("read %s patching rules: %w", vendor.Name, err)
	}
	ord, err := fs.ReadFile(fsys, vendor.Name+".order")
	if err != nil {
		return nil, fmt.Errorf("read %s ordering rules: %w", vendor.Name, err)
	}
	patching, err := CompilePatching(vendor, string(rul), opts)
	if err != nil {
		return nil, err
	}
	ordering, err := CompileOrdering(vendor, string(ord), opts)
	if err != nil {
		return nil, err
	}
	return &Rulebook{Vendor: vendor, Patching: patching, Ordering: ordering}, nil
}

// Cache compiles each vendor's rulebook once. It is safe for concurrent use.
type Cache struct {
	fsys     fs.FS
	opts     Options
	observer pattern.Observer

	mu  sync.Mutex // serializes compilation
	arc *arc.ARCCache[string, *Rulebook]
}

// NewCache returns a Cache loading rulebooks from fsys.
func NewCache(fsys fs.FS, opts Options, observer pattern.Observer) (*Cache, error) {
	c, err := arc.NewARC[string, *Rulebook](64)
	if err != nil {
		return nil, fmt.Errorf("creating rulebook cache: %w", err)
	}
	return &Cache{fsys: fsys, opts: opts, observer: observer, arc: c}, nil
}

// Get returns the compiled rulebook for vendor, compiling it on first use.
func (c *Cache) Get(vendor config.Vendor) (*Rulebook, error) {
	if rb, ok := c.arc.Get(vendor.Name); ok {
		c.hit()
		return rb, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rb, ok := c.arc.Get(vendor.Name); ok {
		c.hit()
		return rb, nil
	}
	if c.observer != nil {
		c.observer.CacheMiss("rulebook")
	}
	rb, err := Load(c.fsys, vendor, c.opts)
	if err != nil {
		return nil, err
	}
	c.arc.Add(vendor.Name, rb)
	return rb, nil
}

func (c *Cache) hit() {
	if c.observer != nil {
		c.observer.CacheHit("rulebook")
	}
}

// Len returns the number of compiled rulebooks held.
func (c *Cache) Len() int {
	return c.arc.Len()
}
