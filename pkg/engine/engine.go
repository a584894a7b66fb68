// Package engine ties parsing, rulebooks, ACL filtering, diffing and patch
// generation together behind one entry point per device.
package engine

import (
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/psaab/netpatch/pkg/acl"
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/diff"
	"github.com/psaab/netpatch/pkg/order"
	"github.com/psaab/netpatch/pkg/patch"
	"github.com/psaab/netpatch/pkg/pattern"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Recorder receives cache lookups and plan outcomes.
type Recorder interface {
	pattern.Observer
	ObservePlan(vendor string, took time.Duration, changes int, err error)
	TrackCache(name string, size func() int)
}

// Options configure an Engine.
type Options struct {
	// Rules holds <vendor>.rul and <vendor>.order files. The packaged
	// rulebooks are used when nil.
	Rules fs.FS
	// PatternCacheSize bounds the compiled pattern cache.
	PatternCacheSize int
	Metrics          Recorder
	Logger           *slog.Logger

	// DiffLogics and PatchLogics resolve logic names. The built-in
	// registries are used when nil.
	DiffLogics  *diff.Registry
	PatchLogics *patch.Registry
}

// Engine plans patches. It is safe for concurrent use.
type Engine struct {
	log         *slog.Logger
	metrics     Recorder
	patterns    *pattern.Cache
	rulebooks   *rulebook.Cache
	diffLogics  *diff.Registry
	patchLogics *patch.Registry
}

// New builds an Engine.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		log:         opts.Logger,
		metrics:     opts.Metrics,
		diffLogics:  opts.DiffLogics,
		patchLogics: opts.PatchLogics,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.diffLogics == nil {
		e.diffLogics = diff.NewRegistry()
	}
	if e.patchLogics == nil {
		e.patchLogics = patch.NewRegistry()
	}
	rules := opts.Rules
	if rules == nil {
		rules = rulebook.Packaged()
	}

	var observer pattern.Observer
	if e.metrics != nil {
		observer = e.metrics
	}
	var err error
	if e.patterns, err = pattern.NewCache(opts.PatternCacheSize, observer); err != nil {
		return nil, err
	}
	if e.rulebooks, err = rulebook.NewCache(rules, e.compileOptions(), observer); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.TrackCache("pattern", e.patterns.Len)
		e.metrics.TrackCache("rulebook", e.rulebooks.Len)
	}
	return e, nil
}

// registries accepts every logic name registered with the engine.
type registries struct {
	diff  *diff.Registry
	patch *patch.Registry
}

func (r registries) ValidLogic(name string) bool {
	_, ok := r.patch.Lookup(name)
	return ok
}

func (r registries) ValidDiffLogic(name string) bool {
	_, ok := r.diff.Lookup(name)
	return ok
}

func (e *Engine) compileOptions() rulebook.Options {
	return rulebook.Options{
		Patterns: e.patterns,
		Logics:   registries{diff: e.diffLogics, patch: e.patchLogics},
	}
}

// Dialect returns the dialect of vendor.
func (e *Engine) Dialect(vendor string) (config.Dialect, error) {
	return config.Lookup(vendor)
}

// Parse parses text written in vendor syntax.
func (e *Engine) Parse(vendor, text string) (*config.Tree, error) {
	d, err := config.Lookup(vendor)
	if err != nil {
		return nil, err
	}
	t, err := d.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s config: %w", vendor, err)
	}
	return t, nil
}

// Rulebook returns the compiled rulebook of vendor.
func (e *Engine) Rulebook(vendor string) (*rulebook.Rulebook, error) {
	d, err := config.Lookup(vendor)
	if err != nil {
		return nil, err
	}
	return e.rulebooks.Get(d.Vendor())
}

// Orderer returns the orderer built from vendor's ordering rules.
func (e *Engine) Orderer(vendor string) (*order.Orderer, error) {
	rb, err := e.Rulebook(vendor)
	if err != nil {
		return nil, err
	}
	return order.New(rb.Ordering, rb.Vendor), nil
}

// CompileACL compiles generator ACL texts for vendor.
func (e *Engine) CompileACL(vendor string, sources []rulebook.Source) (*rulebook.RuleSet, error) {
	d, err := config.Lookup(vendor)
	if err != nil {
		return nil, err
	}
	return rulebook.CompileACL(d.Vendor(), sources, e.compileOptions())
}

// OrderConfig parses text and sorts it the way vendor expects it.
func (e *Engine) OrderConfig(vendor, text string) (string, error) {
	d, err := config.Lookup(vendor)
	if err != nil {
		return "", err
	}
	t, err := e.Parse(vendor, text)
	if err != nil {
		return "", err
	}
	o, err := e.Orderer(vendor)
	if err != nil {
		return "", err
	}
	return d.Join(o.OrderConfig(t)), nil
}

// CheckACL reports the rows of text outside the ACL.
func (e *Engine) CheckACL(vendor, text string, sources []rulebook.Source) ([]acl.Forbidden, error) {
	t, err := e.Parse(vendor, text)
	if err != nil {
		return nil, err
	}
	rules, err := e.CompileACL(vendor, sources)
	if err != nil {
		return nil, err
	}
	return acl.Check(t, rules)
}
