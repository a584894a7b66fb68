package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psaab/netpatch/pkg/cli"
	"github.com/psaab/netpatch/pkg/configstore"
	"github.com/psaab/netpatch/pkg/engine"
	"github.com/psaab/netpatch/pkg/rulebook"
)

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// loadACL reads ACL files. Each file is one generator, named after the
// file without its extension.
func loadACL(paths []string) ([]rulebook.Source, error) {
	var out []rulebook.Source
	for _, p := range paths {
		text, err := readFile(p)
		if err != nil {
			return nil, fmt.Errorf("read acl: %w", err)
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		out = append(out, rulebook.Source{Generator: name, Text: text})
	}
	return out, nil
}

func (a *app) vendor() (string, error) {
	v := a.v.GetString("vendor")
	if v == "" {
		return "", fmt.Errorf("--vendor is required")
	}
	return v, nil
}

func addVendorFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("vendor", "V", "", "device vendor (huawei, cisco, arista, juniper, nokia, routeros)")
}

func newParseCmd(a *app) *cobra.Command {
	var order bool
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a configuration and print it normalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vendor, err := a.vendor()
			if err != nil {
				return err
			}
			text, err := readFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if order {
				ordered, err := a.engine.OrderConfig(vendor, text)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, ordered)
				return err
			}
			tree, err := a.engine.Parse(vendor, text)
			if err != nil {
				return err
			}
			d, err := a.engine.Dialect(vendor)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, d.Join(tree))
			return err
		},
	}
	addVendorFlag(cmd)
	cmd.Flags().BoolVar(&order, "order", false, "sort rows in rulebook order")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Show what changes between two configurations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vendor, err := a.vendor()
			if err != nil {
				return err
			}
			oldText, err := readFile(args[0])
			if err != nil {
				return err
			}
			newText, err := readFile(args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if text {
				d, err := a.engine.Dialect(vendor)
				if err != nil {
					return err
				}
				udiff, err := configstore.CompareText(d.Normalize(oldText), d.Normalize(newText), args[0], args[1])
				if err != nil {
					return err
				}
				a.painter.Diff(out, udiff)
				return nil
			}
			res, err := a.engine.Plan(engine.Request{Device: args[1], Vendor: vendor, Old: oldText, New: newText})
			if err != nil {
				return err
			}
			if !res.Diff.HasChanges() {
				fmt.Fprintln(out, "[no changes]")
				return nil
			}
			a.painter.Diff(out, res.Diff.Format())
			return nil
		},
	}
	addVendorFlag(cmd)
	cmd.Flags().BoolVar(&text, "text", false, "show a unified text diff instead of the rulebook diff")
	return cmd
}

type patchFlags struct {
	acl       []string
	fatal     bool
	exclusive bool
	noCommit  bool
	commands  bool
	paths     bool
}

func newPatchCmd(a *app) *cobra.Command {
	var f patchFlags
	cmd := &cobra.Command{
		Use:   "patch OLD NEW",
		Short: "Print the commands that turn OLD into NEW",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.commands && f.paths {
				return fmt.Errorf("--commands and --paths are mutually exclusive")
			}
			vendor, err := a.vendor()
			if err != nil {
				return err
			}
			oldText, err := readFile(args[0])
			if err != nil {
				return err
			}
			newText, err := readFile(args[1])
			if err != nil {
				return err
			}
			sources, err := loadACL(f.acl)
			if err != nil {
				return err
			}
			res, err := a.engine.Plan(engine.Request{
				Device:       args[1],
				Vendor:       vendor,
				Old:          oldText,
				New:          newText,
				ACL:          sources,
				FatalACL:     f.fatal,
				ExclusiveACL: f.exclusive,
				DoCommit:     !f.noCommit,
			})
			if err != nil {
				return err
			}
			return a.writePlan(cmd.OutOrStdout(), vendor, res, f)
		},
	}
	addVendorFlag(cmd)
	fl := cmd.Flags()
	fl.StringArrayVar(&f.acl, "acl", nil, "limit the patch to rows allowed by this ACL file (repeatable)")
	fl.BoolVar(&f.fatal, "fatal-acl", false, "fail when the new configuration has rows outside the ACL")
	fl.BoolVar(&f.exclusive, "exclusive", false, "fail when a row is claimed by more than one ACL")
	fl.BoolVar(&f.noCommit, "no-commit", false, "leave out commit commands")
	fl.BoolVar(&f.commands, "commands", false, "print commands as typed on the device")
	fl.BoolVar(&f.paths, "paths", false, "print the full path of every command")
	return cmd
}

func (a *app) writePlan(w io.Writer, vendor string, res *engine.Result, f patchFlags) error {
	switch {
	case f.commands:
		for _, c := range res.Commands {
			fmt.Fprintln(w, c)
		}
	case f.paths:
		for _, p := range res.CmdPaths {
			fmt.Fprintln(w, strings.Join(p, " / "))
		}
	default:
		d, err := a.engine.Dialect(vendor)
		if err != nil {
			return err
		}
		a.painter.Patch(w, res.Text, d.Vendor().Reverse)
	}
	return nil
}

func newACLCmd(a *app) *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "acl CONFIG",
		Short: "List configuration rows outside the ACL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vendor, err := a.vendor()
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("at least one --acl is required")
			}
			text, err := readFile(args[0])
			if err != nil {
				return err
			}
			sources, err := loadACL(files)
			if err != nil {
				return err
			}
			forbidden, err := a.engine.CheckACL(vendor, text, sources)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range forbidden {
				fmt.Fprintln(out, strings.Join(append(append([]string{}, f.Path...), f.Row), " / "))
			}
			if len(forbidden) > 0 {
				return fmt.Errorf("%d rows outside the ACL", len(forbidden))
			}
			return nil
		},
	}
	addVendorFlag(cmd)
	cmd.Flags().StringArrayVar(&files, "acl", nil, "ACL file (repeatable)")
	return cmd
}

func newShellCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive review shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.v.GetString("store-dir")
			if dir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("store directory: %w", err)
				}
				dir = filepath.Join(home, ".netpatch")
			}
			store := configstore.New(dir, a.engine, a.log)
			if err := store.Load(); err != nil {
				return err
			}
			return cli.New(cli.Options{
				Store:       store,
				Engine:      a.engine,
				Logs:        a.logs,
				Painter:     a.painter,
				HistoryFile: filepath.Join(dir, "history"),
			}).Run()
		},
	}
	cmd.Flags().String("store-dir", "", "directory holding device state (default ~/.netpatch)")
	return cmd
}
