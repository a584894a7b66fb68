// Package cli implements the interactive review shell: inspect the running
// and desired configuration of devices, review patches, commit and roll
// back.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/psaab/netpatch/pkg/cmdtree"
	"github.com/psaab/netpatch/pkg/config"
	"github.com/psaab/netpatch/pkg/configstore"
	"github.com/psaab/netpatch/pkg/engine"
	"github.com/psaab/netpatch/pkg/logging"
)

// Options configure a CLI.
type Options struct {
	Store  *configstore.Store
	Engine *engine.Engine
	// Logs backs "show log" and "monitor log"; both are unavailable when nil.
	Logs        *logging.Buffer
	Out         io.Writer
	Painter     Painter
	HistoryFile string
}

// CLI is the interactive shell.
type CLI struct {
	rl      *readline.Instance
	store   *configstore.Store
	engine  *engine.Engine
	logs    *logging.Buffer
	out     io.Writer
	paint   Painter
	history string
}

// New creates a CLI.
func New(opts Options) *CLI {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &CLI{
		store:   opts.Store,
		engine:  opts.Engine,
		logs:    opts.Logs,
		out:     out,
		paint:   opts.Painter,
		history: opts.HistoryFile,
	}
}

var (
	errExit         = errors.New("exit")
	errLogsDisabled = errors.New("log buffer not enabled")
)

// Run starts the interactive loop.
func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "netpatch> ",
		HistoryFile:     c.history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &completer{cli: c, out: func() io.Writer { return c.rl.Stdout() }},
		Listener: readline.FuncListener(func(line []rune, pos int, key rune) ([]rune, int, bool) {
			if key != '?' || pos < 1 {
				return line, pos, false
			}
			// Strip the '?' that readline already inserted.
			clean := append(append([]rune{}, line[:pos-1]...), line[pos:]...)
			cands, _ := c.candidates(string(clean[:pos-1]))
			if len(cands) == 0 {
				fmt.Fprintln(c.rl.Stdout(), "  (no help available)")
			} else {
				cmdtree.WriteHelp(c.rl.Stdout(), cands)
			}
			return clean, pos - 1, true
		}),
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()
	c.out = c.rl.Stdout()

	fmt.Fprintln(c.out, "netpatch review shell")
	fmt.Fprintln(c.out, "Type '?' for help")
	fmt.Fprintln(c.out)

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := c.Execute(line); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(c.rl.Stderr(), "error: %v\n", err)
		}
	}
}

// Execute runs one command line and writes its output.
func (c *CLI) Execute(line string) error {
	cmd, filters := splitPipe(line)
	words := strings.Fields(cmd)
	if len(words) == 0 {
		return nil
	}
	words, err := cmdtree.Resolve(words)
	if err != nil {
		return err
	}
	// Monitoring streams until interrupted, so it bypasses buffering.
	if words[0] == "monitor" {
		if len(filters) > 0 {
			return fmt.Errorf("monitor output cannot be piped; use monitor log MATCH")
		}
		return c.handleMonitor(words[1:])
	}

	var b strings.Builder
	if err := c.dispatch(&b, words); err != nil {
		return err
	}
	output := b.String()
	if len(filters) > 0 {
		if output, err = applyFilters(output, filters); err != nil {
			return err
		}
	}
	_, err = io.WriteString(c.out, output)
	return err
}

func (c *CLI) dispatch(w io.Writer, words []string) error {
	args := words[1:]
	switch words[0] {
	case "show":
		return c.handleShow(w, args)
	case "load":
		return c.handleLoad(w, args)
	case "commit":
		return c.handleCommit(w, args)
	case "rollback":
		return c.handleRollback(w, args)
	case "save":
		if err := c.store.Save(); err != nil {
			return err
		}
		fmt.Fprintln(w, "store saved")
		return nil
	case "help":
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(cmdtree.Tree))
		return nil
	case "quit", "exit":
		return errExit
	}
	return fmt.Errorf("unknown command: %s", words[0])
}

func device(args []string, usage string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return args[0], nil
}

func (c *CLI) handleShow(w io.Writer, args []string) error {
	if len(args) == 0 {
		cmdtree.WriteHelp(w, cmdtree.HelpCandidates(cmdtree.Tree["show"].Children))
		return nil
	}
	what, rest := args[0], args[1:]

	switch what {
	case "devices":
		for _, name := range c.store.Devices() {
			vendor, _ := c.store.Vendor(name)
			state := "in sync"
			if c.store.IsDirty(name) {
				state = "pending changes"
			}
			fmt.Fprintf(w, "%-20s %-10s %s\n", name, vendor, state)
		}
		return nil
	case "vendors":
		for _, v := range config.Vendors() {
			fmt.Fprintln(w, v)
		}
		return nil
	case "log":
		return c.showLog(w, rest)
	}

	name, err := device(rest, "show "+what+" DEVICE")
	if err != nil {
		return err
	}
	switch what {
	case "running", "desired":
		get := c.store.Running
		if what == "desired" {
			get = c.store.Desired
		}
		text, err := get(name)
		if err != nil {
			return err
		}
		io.WriteString(w, text)
	case "ordered":
		text, err := c.store.Desired(name)
		if err != nil {
			return err
		}
		vendor, _ := c.store.Vendor(name)
		ordered, err := c.engine.OrderConfig(vendor, text)
		if err != nil {
			return err
		}
		io.WriteString(w, ordered)
	case "compare":
		text, err := c.store.ShowCompare(name)
		if err != nil {
			return err
		}
		c.paint.Diff(w, text)
	case "diff", "patch", "commands", "paths":
		res, err := c.store.Plan(name)
		if err != nil {
			return err
		}
		c.showPlan(w, what, name, res)
	case "history":
		entries, err := c.store.History(name)
		if err != nil {
			return err
		}
		for i, e := range entries {
			fmt.Fprintf(w, "%d  #%-4d %s  %3d commands  %s\n",
				i+1, e.Seq, e.Timestamp.Format("2006-01-02 15:04:05"), e.Commands, e.Comment)
		}
	default:
		return fmt.Errorf("unknown show command: %s", what)
	}
	return nil
}

func (c *CLI) showPlan(w io.Writer, what, name string, res *engine.Result) {
	switch what {
	case "diff":
		if !res.Diff.HasChanges() {
			fmt.Fprintln(w, "[no changes]")
			return
		}
		c.paint.Diff(w, res.Diff.Format())
	case "patch":
		vendor, _ := c.store.Vendor(name)
		d, err := config.Lookup(vendor)
		reverse := ""
		if err == nil {
			reverse = d.Vendor().Reverse
		}
		c.paint.Patch(w, res.Text, reverse)
	case "commands":
		for _, cmd := range res.Commands {
			fmt.Fprintln(w, cmd)
		}
	case "paths":
		for _, p := range res.CmdPaths {
			fmt.Fprintln(w, strings.Join(p, " / "))
		}
	}
}

func (c *CLI) showLog(w io.Writer, args []string) error {
	if c.logs == nil {
		return errLogsDisabled
	}
	n := 20
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return fmt.Errorf("show log: invalid count %q", args[0])
		}
		n = v
	}
	recs := c.logs.Latest(n, logging.Filter{})
	// Oldest first reads naturally on a terminal.
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		fmt.Fprintf(w, "%s %-5s %s\n", r.Time.Format("15:04:05"), r.Level, r.Message)
	}
	return nil
}

func (c *CLI) handleMonitor(args []string) error {
	if len(args) == 0 || args[0] != "log" {
		return fmt.Errorf("usage: monitor log [MATCH]")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.monitorLog(ctx, c.out, logging.Filter{Contains: strings.Join(args[1:], " ")})
}

// monitorLog writes new log records matching f to w until ctx is done.
func (c *CLI) monitorLog(ctx context.Context, w io.Writer, f logging.Filter) error {
	if c.logs == nil {
		return errLogsDisabled
	}
	sub := c.logs.Subscribe(0)
	defer sub.Close()

	fmt.Fprintln(w, "monitoring log, ^C to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-sub.C:
			if !f.Match(&r) {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s %-5s %s\n", r.Time.Format("15:04:05"), r.Level, r.Message); err != nil {
				return err
			}
		}
	}
}

func (c *CLI) handleLoad(w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: load running DEVICE VENDOR FILE | load desired DEVICE FILE")
	}
	switch args[0] {
	case "running":
		if len(args) != 4 {
			return fmt.Errorf("usage: load running DEVICE VENDOR FILE")
		}
		name, vendor, file := args[1], args[2], args[3]
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		current, err := c.store.Vendor(name)
		switch {
		case errors.Is(err, configstore.ErrUnknownDevice):
			err = c.store.Add(name, vendor, string(data))
		case err != nil:
		case current != vendor:
			err = fmt.Errorf("device %s is %s, not %s", name, current, vendor)
		default:
			err = c.store.SetRunning(name, string(data))
		}
		if err != nil {
			return err
		}
	case "desired":
		if len(args) != 3 {
			return fmt.Errorf("usage: load desired DEVICE FILE")
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		if err := c.store.SetDesired(args[1], string(data)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown load target: %s", args[0])
	}
	fmt.Fprintln(w, "load complete")
	return nil
}

func (c *CLI) handleCommit(w io.Writer, args []string) error {
	name, err := device(args, "commit DEVICE [COMMENT]")
	if err != nil {
		return err
	}
	res, err := c.store.Commit(name, strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	if len(res.Commands) == 0 {
		fmt.Fprintln(w, "no changes to commit")
		return nil
	}
	for _, cmd := range res.Commands {
		fmt.Fprintln(w, cmd)
	}
	fmt.Fprintln(w, "commit complete")
	return nil
}

func (c *CLI) handleRollback(w io.Writer, args []string) error {
	name, err := device(args, "rollback DEVICE [N]")
	if err != nil {
		return err
	}
	n := 0
	if len(args) > 1 {
		if n, err = strconv.Atoi(args[1]); err != nil || n < 0 {
			return fmt.Errorf("rollback: invalid index %q", args[1])
		}
	}
	if err := c.store.Rollback(name, n); err != nil {
		return err
	}
	fmt.Fprintln(w, "rollback complete")
	return nil
}
