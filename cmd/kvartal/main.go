package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hylla/kvartal/internal/adapters/storage/jsondoc"
	"github.com/hylla/kvartal/internal/adapters/storage/sqlitedoc"
	"github.com/hylla/kvartal/internal/app"
	"github.com/hylla/kvartal/internal/config"
	"github.com/hylla/kvartal/internal/platform"
)

// version is stamped at build time.
var version = "dev"

// runtime bundles everything a command needs once flags and config are
// resolved.
type runtime struct {
	cfg    config.Config
	logger *charmLog.Logger
	svc    *app.Service
	closer func() error
}

// rootFlags holds the persistent flag values.
type rootFlags struct {
	configPath string
	graphPath  string
	backend    string
	logLevel   string
}

func main() {
	root := newRootCmd()
	if err := fang.Execute(context.Background(), root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "kvartal",
		Short: "Quarterly work graph tracker",
		Long: `kvartal tracks a quarter-scoped work breakdown: quarters hold epics,
epics hold stories, stories hold tasks. Tasks carry dependencies, join
sprints, and completing them cascades status upward through the hierarchy.
All commands emit JSON on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config TOML (env KVARTAL_CONFIG)")
	pf.StringVar(&flags.graphPath, "graph", "", "path to the graph document (env KVARTAL_GRAPH_PATH)")
	pf.StringVar(&flags.backend, "backend", "", "storage backend: file or sqlite")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newInitCmd(flags),
		newCreateCmd(flags),
		newGetCmd(flags),
		newUpdateCmd(flags),
		newDeleteCmd(flags),
		newListCmd(flags),
		newCascadeCmd(flags),
		newDependsCmd(flags),
		newReadyTasksCmd(flags),
		newChainCmd(flags),
		newDescendantsCmd(flags),
		newStatsCmd(flags),
		newSprintCreateCmd(flags),
		newSprintActiveCmd(flags),
		newSprintCompleteCmd(flags),
		newCriterionCmd(flags),
		newClarifyCmd(flags),
		newNextIDCmd(flags),
		newExportCmd(flags),
		newServeCmd(flags),
	)
	return root
}

// newRuntime resolves paths, loads config, and wires the service. The
// returned closer releases the storage backend.
func (f *rootFlags) newRuntime() (*runtime, error) {
	paths, err := platform.DefaultPaths()
	if err != nil {
		return nil, err
	}

	configPath := firstNonEmpty(f.configPath, os.Getenv("KVARTAL_CONFIG"), paths.ConfigPath)
	cfg, err := config.Load(configPath, config.Default(paths.GraphPath, paths.DBPath))
	if err != nil {
		return nil, err
	}
	if p := firstNonEmpty(f.graphPath, os.Getenv("KVARTAL_GRAPH_PATH")); p != "" {
		cfg.Document.Path = p
	}
	if f.backend != "" {
		cfg.Storage.Backend = config.Backend(f.backend)
	}
	if lvl := firstNonEmpty(f.logLevel, os.Getenv("KVARTAL_LOG_LEVEL")); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(os.Stderr, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	var (
		store  app.DocumentStore
		closer = func() error { return nil }
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlitedoc.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, closer = db, db.Close
	default:
		store = jsondoc.New(cfg.Document.Path)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		svc:    app.NewService(store, logger),
		closer: closer,
	}, nil
}

func newLogger(w io.Writer, level string) (*charmLog.Logger, error) {
	parsed, err := charmLog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           parsed,
		ReportTimestamp: false,
		Formatter:       charmLog.TextFormatter,
	}), nil
}

// runWithService wires a runtime for one command invocation and tears it
// down afterward.
func runWithService(flags *rootFlags, cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) (any, error)) error {
	rt, err := flags.newRuntime()
	if err != nil {
		return err
	}
	defer rt.closer()

	out, err := fn(cmd.Context(), rt)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
