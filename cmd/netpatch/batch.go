package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/psaab/netpatch/pkg/engine"
)

// Manifest lists the devices a batch run plans.
type Manifest struct {
	// Jobs bounds how many devices are planned at once.
	Jobs int `yaml:"jobs" toml:"jobs"`
	// Output is a directory receiving <device>.patch files. Patches are
	// printed when empty.
	Output  string           `yaml:"output" toml:"output"`
	Devices []ManifestDevice `yaml:"devices" toml:"devices"`
}

// ManifestDevice is one device of a Manifest. Paths are relative to the
// manifest file.
type ManifestDevice struct {
	Name         string   `yaml:"name" toml:"name"`
	Vendor       string   `yaml:"vendor" toml:"vendor"`
	Running      string   `yaml:"running" toml:"running"`
	Desired      string   `yaml:"desired" toml:"desired"`
	ACL          []string `yaml:"acl" toml:"acl"`
	FatalACL     bool     `yaml:"fatal_acl" toml:"fatal_acl"`
	ExclusiveACL bool     `yaml:"exclusive_acl" toml:"exclusive_acl"`
	NoCommit     bool     `yaml:"no_commit" toml:"no_commit"`
}

const defaultJobs = 4

// LoadManifest reads a YAML or TOML manifest, chosen by file extension, and
// resolves its paths against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("manifest %s: unsupported format %q", path, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	m.Output = resolve(m.Output)
	for i := range m.Devices {
		d := &m.Devices[i]
		d.Running = resolve(d.Running)
		d.Desired = resolve(d.Desired)
		for j := range d.ACL {
			d.ACL[j] = resolve(d.ACL[j])
		}
	}
	if m.Jobs <= 0 {
		m.Jobs = defaultJobs
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Devices) == 0 {
		return fmt.Errorf("no devices")
	}
	seen := make(map[string]bool)
	for i, d := range m.Devices {
		switch {
		case d.Name == "":
			return fmt.Errorf("device %d: missing name", i+1)
		case seen[d.Name]:
			return fmt.Errorf("device %s: listed twice", d.Name)
		case d.Vendor == "":
			return fmt.Errorf("device %s: missing vendor", d.Name)
		case d.Running == "" || d.Desired == "":
			return fmt.Errorf("device %s: running and desired are required", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// batchResult is the outcome of planning one device.
type batchResult struct {
	res *engine.Result
	err error
}

// runBatch plans every device of m with at most m.Jobs in flight. Without
// tolerate the first failure cancels devices not yet started.
func runBatch(ctx context.Context, e *engine.Engine, m *Manifest, tolerate bool) []batchResult {
	results := make([]batchResult, len(m.Devices))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.Jobs)
	for i := range m.Devices {
		i := i
		d := m.Devices[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = fmt.Errorf("skipped: %w", err)
				return nil
			}
			res, err := planDevice(e, d)
			results[i] = batchResult{res: res, err: err}
			if err != nil && !tolerate {
				return err
			}
			return nil
		})
	}
	g.Wait()
	return results
}

func planDevice(e *engine.Engine, d ManifestDevice) (*engine.Result, error) {
	oldText, err := readFile(d.Running)
	if err != nil {
		return nil, err
	}
	newText, err := readFile(d.Desired)
	if err != nil {
		return nil, err
	}
	sources, err := loadACL(d.ACL)
	if err != nil {
		return nil, err
	}
	return e.Plan(engine.Request{
		Device:       d.Name,
		Vendor:       d.Vendor,
		Old:          oldText,
		New:          newText,
		ACL:          sources,
		FatalACL:     d.FatalACL,
		ExclusiveACL: d.ExclusiveACL,
		DoCommit:     !d.NoCommit,
	})
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		tolerate bool
		jobs     int
	)
	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Plan patches for every device listed in a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := LoadManifest(args[0])
			if err != nil {
				return err
			}
			if jobs > 0 {
				m.Jobs = jobs
			}
			if m.Output != "" {
				if err := os.MkdirAll(m.Output, 0755); err != nil {
					return err
				}
			}

			results := runBatch(cmd.Context(), a.engine, m, tolerate)
			out := cmd.OutOrStdout()
			failed := 0
			for i, r := range results {
				d := m.Devices[i]
				if r.err != nil {
					failed++
					a.log.Error("device failed", "device", d.Name, "err", r.err)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", d.Name, r.err)
					continue
				}
				if m.Output != "" {
					path := filepath.Join(m.Output, d.Name+".patch")
					if err := os.WriteFile(path, []byte(r.res.Text), 0644); err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d commands -> %s\n", d.Name, len(r.res.Commands), path)
					continue
				}
				fmt.Fprintf(out, "# %s (%s)\n", d.Name, d.Vendor)
				a.painter.Patch(out, r.res.Text, "")
			}
			if failed > 0 && !tolerate {
				return fmt.Errorf("%d of %d devices failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&tolerate, "tolerate-fails", false, "keep going and exit successfully when devices fail")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "devices planned in parallel (overrides the manifest)")
	return cmd
}
