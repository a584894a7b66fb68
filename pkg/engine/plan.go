package engine

import (
	"fmt"
	"time"

	"github.com/psaab/netpatch/pkg/acl"
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/diff"
	"github.com/psaab/netpatch/pkg/order"
	"github.com/psaab/netpatch/pkg/patch"
	"github.com/psaab/netpatch/pkg/rulebook"
)

// Request describes one device to plan.
type Request struct {
	Device string
	Vendor string
	Old    string
	New    string

	// ACL limits the rows the plan may touch. Every row is in scope when
	// empty.
	ACL          []rulebook.Source
	FatalACL     bool
	ExclusiveACL bool

	DoCommit bool
}

// Result is a computed plan.
type Result struct {
	Old, New *config.Tree
	Diff     diff.Diff
	Patch    *patch.Tree
	Commands []string
	CmdPaths [][]string
	// Text is the patch rendered in vendor syntax for review.
	Text string
}

// Changes counts the changed rows of the diff.
func (r *Result) Changes() int {
	n := 0
	r.Diff.Walk(func(_ []string, node *diff.Node) {
		if node.Op != diff.Unchanged {
			n++
		}
	})
	return n
}

// Plan computes the patch turning req.Old into req.New.
func (e *Engine) Plan(req Request) (*Result, error) {
	start := time.Now()
	res, err := e.plan(req)
	changes := 0
	if err == nil {
		changes = res.Changes()
	}
	if e.metrics != nil {
		e.metrics.ObservePlan(req.Vendor, time.Since(start), changes, err)
	}
	if err != nil {
		e.log.Debug("plan failed", "device", req.Device, "vendor", req.Vendor, "err", err)
		return nil, err
	}
	e.log.Debug("plan computed",
		"device", req.Device,
		"vendor", req.Vendor,
		"changes", changes,
		"commands", len(res.Commands),
		"took", time.Since(start))
	return res, nil
}

func (e *Engine) plan(req Request) (*Result, error) {
	d, err := config.Lookup(req.Vendor)
	if err != nil {
		return nil, err
	}
	rb, err := e.rulebooks.Get(d.Vendor())
	if err != nil {
		return nil, err
	}
	old, err := d.Parse(req.Old)
	if err != nil {
		return nil, fmt.Errorf("parse old config: %w", err)
	}
	new, err := d.Parse(req.New)
	if err != nil {
		return nil, fmt.Errorf("parse new config: %w", err)
	}
	res := &Result{Old: old, New: new}

	var rules *rulebook.RuleSet
	if len(req.ACL) > 0 {
		if rules, err = rulebook.CompileACL(d.Vendor(), req.ACL, e.compileOptions()); err != nil {
			return nil, err
		}
		opts := acl.Options{Fatal: req.FatalACL, Exclusive: req.ExclusiveACL}
		if old, err = acl.Filter(old, rules, opts); err != nil {
			return nil, fmt.Errorf("old config: %w", err)
		}
		if new, err = acl.Filter(new, rules, opts); err != nil {
			return nil, fmt.Errorf("new config: %w", err)
		}
	}

	dd, err := diff.Make(old, new, rb.Patching, e.diffLogics)
	if err != nil {
		return nil, err
	}
	if rules != nil {
		if dd, err = diff.FilterACL(dd, rules); err != nil {
			return nil, err
		}
	}
	res.Diff = dd

	p, err := patch.Make(patch.MakePre(dd), order.New(rb.Ordering, rb.Vendor), patch.Options{
		DoCommit: req.DoCommit,
		Registry: e.patchLogics,
	})
	if err != nil {
		return nil, err
	}
	res.Patch = p
	cmds := p.Commands()
	res.Commands = d.Commands(cmds)
	res.CmdPaths = config.CmdPaths(cmds)
	res.Text = d.FormatPatch(cmds)
	return res, nil
}
