package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crimson-sun/plantrace/internal/config"
	"github.com/crimson-sun/plantrace/internal/connector"
	"github.com/crimson-sun/plantrace/internal/engine"
	"github.com/crimson-sun/plantrace/internal/engine/classifier"
	"github.com/crimson-sun/plantrace/internal/engine/filter"
	"github.com/crimson-sun/plantrace/internal/engine/policy"
	"github.com/crimson-sun/plantrace/internal/logging"
	"github.com/crimson-sun/plantrace/internal/output"
	"github.com/crimson-sun/plantrace/internal/output/async"
	"github.com/crimson-sun/plantrace/internal/output/chrome"
	"github.com/crimson-sun/plantrace/internal/output/file"
	"github.com/crimson-sun/plantrace/internal/output/multi"
	"github.com/crimson-sun/plantrace/internal/output/stdout"
	"github.com/crimson-sun/plantrace/internal/output/webhook"
	"github.com/crimson-sun/plantrace/internal/pipeline"
	"github.com/crimson-sun/plantrace/internal/server"
	"github.com/crimson-sun/plantrace/internal/store"

	// Register connector implementations.
	_ "github.com/crimson-sun/plantrace/internal/connector/file"
	_ "github.com/crimson-sun/plantrace/internal/connector/remote"
	_ "github.com/crimson-sun/plantrace/internal/connector/stdin"
)

// modes are the actions that replace or follow the export.
type modes struct {
	dump bool
	plan bool
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: plantrace [flags] <log_file|-> [output_name]\n\n")
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	m := parseFlags(&cfg)

	if cfg.ShowVersion {
		fmt.Println("plantrace", config.Version)
		return
	}

	logging.Init(cfg.Output.Format == "stdout" || m.dump, logging.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "plantrace: invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	// Set up graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, m); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("plantrace failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags overrides the environment configuration with command-line flags
// and positional arguments.
func parseFlags(cfg *config.Config) modes {
	var m modes
	flag.Usage = usage
	flag.StringVar(&cfg.Engine.Format, "format", cfg.Engine.Format, "log format: standard, origin-first, legacy")
	flag.StringVar(&cfg.Output.Dir, "out-dir", cfg.Output.Dir, "directory for exported documents")
	flag.StringVar(&cfg.Output.Format, "output", cfg.Output.Format, "output: file, stdout")
	flag.BoolVar(&cfg.Output.Pretty, "pretty", cfg.Output.Pretty, "indent exported JSON")
	flag.StringVar(&cfg.Output.Phase, "phase", cfg.Output.Phase, "event phase: complete, begin-end")
	flag.BoolVar(&cfg.Output.ShortNames, "short", cfg.Output.ShortNames, "also export <name>-short with type names")
	flag.StringVar(&cfg.Engine.FilterTask, "filter", cfg.Engine.FilterTask, "also export <name>-filtered for this task's family")
	flag.StringVar(&cfg.Engine.FilterMode, "filter-mode", cfg.Engine.FilterMode, "filter extent: children, related")
	flag.StringVar(&cfg.Engine.PolicyFile, "policy", cfg.Engine.PolicyFile, "rego module overriding the export exclusion policy")
	flag.StringVar(&cfg.StorePath, "db", cfg.StorePath, "SQLite database to save the session to")
	flag.StringVar(&cfg.HTTPAddr, "serve", cfg.HTTPAddr, "serve diagnostics on this address after the run")
	flag.IntVar(&cfg.Engine.SnapshotEvery, "snapshot-every", cfg.Engine.SnapshotEvery, "export a snapshot every N plan changes (0 disables)")
	flag.IntVar(&cfg.Engine.SnapshotLimit, "snapshot-limit", cfg.Engine.SnapshotLimit, "maximum number of snapshots")
	flag.IntVar(&cfg.Connector.Limit, "limit", cfg.Connector.Limit, "stop after N records (0 reads all)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "print the version and exit")
	flag.BoolVar(&m.dump, "dump", false, "print classified events instead of exporting")
	flag.BoolVar(&m.plan, "plan", false, "print the plan still open at the end of the log")
	flag.Parse()

	args := flag.Args()
	if len(args) > 0 {
		cfg.Connector.Input = args[0]
		switch {
		case args[0] == "-":
			cfg.Connector.Provider = "stdin"
			cfg.Connector.Input = ""
		case strings.HasPrefix(args[0], "http://"), strings.HasPrefix(args[0], "https://"):
			cfg.Connector.Provider = "http"
		}
	}
	if len(args) > 1 {
		cfg.Output.Name = args[1]
	}
	return m
}

func run(ctx context.Context, cfg config.Config, m modes) error {
	format, err := classifier.FormatByName(cfg.Engine.Format)
	if err != nil {
		return err
	}
	eng := engine.New(format, engine.WithSnapshots(cfg.Engine.SnapshotEvery, cfg.Engine.SnapshotLimit))

	ctor, err := connector.Get(cfg.Connector.Provider)
	if err != nil {
		return err
	}
	conn := ctor()
	connCfg := connector.Config{
		Provider: cfg.Connector.Provider,
		Input:    cfg.Connector.Input,
		APIKey:   cfg.Connector.APIKey,
		Limit:    cfg.Connector.Limit,
		Extra:    cfg.Connector.Extra,
	}

	if m.dump {
		return dump(ctx, conn, connCfg, eng, os.Stdout)
	}

	out, err := buildOutput(cfg)
	if err != nil {
		return err
	}

	pol, err := policy.Load(ctx, cfg.Engine.PolicyFile)
	if err != nil {
		return err
	}
	phase, err := chrome.ParsePhase(cfg.Output.Phase)
	if err != nil {
		return err
	}
	mode, err := filter.ParseMode(cfg.Engine.FilterMode)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithPolicy(pol),
		pipeline.WithExport(pipeline.Export{
			Name:       cfg.Output.Name,
			Phase:      phase,
			ShortNames: cfg.Output.ShortNames,
			FilterTask: cfg.Engine.FilterTask,
			FilterMode: mode,
			Version:    config.Version,
		}),
	}
	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, pipeline.WithStore(st))
	}

	p := pipeline.New(conn, eng, out, opts...)
	rep, err := p.Run(ctx, connCfg)
	if cerr := p.Close(); cerr != nil {
		slog.Warn("closing outputs", "error", cerr)
	}
	if err != nil {
		return err
	}

	if m.plan {
		var w io.Writer = os.Stdout
		if cfg.Output.Format == "stdout" {
			w = os.Stderr
		}
		if err := printPlan(w, rep.Result); err != nil {
			return err
		}
	}

	if cfg.HTTPAddr != "" {
		return serve(ctx, cfg, server.Run{
			ID:     rep.RunID,
			Result: rep.Result,
			Traces: rep.Traces,
			Other:  p.OtherData(connCfg.Input, rep.RunID),
			Phase:  phase,
		})
	}
	return nil
}

func buildOutput(cfg config.Config) (output.Output, error) {
	var outs []output.Output
	switch cfg.Output.Format {
	case "stdout":
		outs = append(outs, stdout.New(cfg.Output.Pretty))
	default:
		f, err := file.New(cfg.Output.Dir, file.WithPretty(cfg.Output.Pretty))
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	if cfg.Output.WebhookURL != "" {
		outs = append(outs, async.New(webhook.New(cfg.Output.WebhookURL), async.WithDrainTimeout(cfg.ShutdownTimeout)))
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}

func dump(ctx context.Context, conn connector.Connector, cfg connector.Config, eng *engine.Engine, w io.Writer) error {
	batch, err := connector.Read(ctx, conn, cfg)
	if err != nil {
		return err
	}
	res, err := eng.Process(ctx, batch.Records)
	if err != nil {
		return err
	}
	return engine.Dump(w, res.Events)
}

func printPlan(w io.Writer, res *engine.Result) error {
	tree, err := res.Plan()
	if err != nil {
		return err
	}
	return tree.Render(w)
}

func serve(ctx context.Context, cfg config.Config, run server.Run) error {
	srv := server.New(run)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.HTTPAddr) }()
	slog.Info("serving diagnostics", "addr", cfg.HTTPAddr, "run", run.ID)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
