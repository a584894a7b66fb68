// netpatch computes the commands that turn a device's running configuration
// into its desired configuration.
//
// It understands several vendor syntaxes, driven by rulebooks that describe
// how each part of the configuration is compared, ordered and undone.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psaab/netpatch/pkg/cli"
	"github.com/psaab/netpatch/pkg/engine"
	"github.com/psaab/netpatch/pkg/logging"
	"github.com/psaab/netpatch/pkg/metrics"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "netpatch: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares once flags are parsed.
type app struct {
	v       *viper.Viper
	log     *slog.Logger
	logs    *logging.Buffer
	engine  *engine.Engine
	painter cli.Painter
	closers []func()
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	cmd := &cobra.Command{
		Use:   "netpatch",
		Short: "Compute configuration patches for network devices",
		Args:  cobra.NoArgs,
		// Errors are printed in main.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "configuration file (yaml or toml)")
	pf.String("log-level", "warn", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")
	pf.StringSlice("syslog", nil, "also send logs to these syslog servers (host[:port])")
	pf.String("syslog-severity", "", "only forward syslog messages at or above: error, warning, info or debug")
	pf.String("rules-dir", "", "directory holding <vendor>.rul and <vendor>.order files")
	pf.Int("pattern-cache-size", 0, "number of compiled row patterns to keep")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address")
	pf.String("color", "auto", "color output: auto, always or never")

	cmd.AddCommand(
		newParseCmd(a),
		newDiffCmd(a),
		newPatchCmd(a),
		newACLCmd(a),
		newBatchCmd(a),
		newShellCmd(a),
	)
	return cmd
}

// setup binds flags into viper and builds the logger, metrics and engine.
func (a *app) setup(cmd *cobra.Command) error {
	v := a.v
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix("NETPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	// Past flag parsing, errors are not usage errors.
	cmd.SilenceUsage = true

	if err := a.setupLogging(); err != nil {
		return err
	}

	opts := engine.Options{
		PatternCacheSize: v.GetInt("pattern-cache-size"),
		Logger:           a.log,
	}
	if dir := v.GetString("rules-dir"); dir != "" {
		opts.Rules = os.DirFS(dir)
	}
	if addr := v.GetString("metrics-addr"); addr != "" {
		m, err := a.serveMetrics(addr)
		if err != nil {
			return err
		}
		opts.Metrics = m
	}
	e, err := engine.New(opts)
	if err != nil {
		return err
	}
	a.engine = e

	enabled, err := colorEnabled(v.GetString("color"), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	color.NoColor = !enabled
	a.painter = cli.Painter{Enabled: enabled}
	return nil
}

func (a *app) setupLogging() error {
	v := a.v
	var w io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		rf, err := logging.OpenFile(logging.FileConfig{Path: path})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { rf.Close() })
		w = rf
	}

	var clients []*logging.SyslogClient
	severity, err := logging.ParseSeverity(v.GetString("syslog-severity"))
	if err != nil {
		return err
	}
	for _, addr := range v.GetStringSlice("syslog") {
		c, err := logging.NewSyslogClient(addr)
		if err != nil {
			return err
		}
		c.MinSeverity = severity
		a.closers = append(a.closers, func() { c.Close() })
		clients = append(clients, c)
	}

	a.logs = logging.NewBuffer(1000)
	log, err := logging.New(logging.Options{
		Writer: w,
		Level:  v.GetString("log-level"),
		Format: v.GetString("log-format"),
		Buffer: a.logs,
		Syslog: clients,
	})
	if err != nil {
		return err
	}
	a.log = log
	slog.SetDefault(log)
	return nil
}

func (a *app) serveMetrics(addr string) (*metrics.Metrics, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	a.log.Info("serving metrics", "addr", addr)
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return m, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// colorEnabled resolves --color. In auto mode color is used only when w is
// a terminal.
func colorEnabled(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		f, ok := w.(*os.File)
		if !ok {
			return false, nil
		}
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()), nil
	}
	return false, fmt.Errorf("invalid --color %q: want auto, always or never", mode)
}
