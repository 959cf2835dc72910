// Package cmd provides the CLI commands for repograph.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Logger defines the logging interface used by the commands.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Graph is a query graph that owns its object store and slip finder.
type Graph interface {
	domain.Graph
	Close() error
}

// Runner serves until its context ends.
type Runner interface {
	Run(ctx context.Context) error
}

// ConfigOverrides carries the flag values that take precedence over the environment.
type ConfigOverrides struct {
	RepoDir    string
	ListenAddr string
}

// Dependencies holds all injectable dependencies for the commands.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func(overrides ConfigOverrides) (*AppConfig, error)

	// StoreFactory opens the object store at cfg.RepoDir.
	StoreFactory func(cfg *AppConfig, log Logger) (domain.ObjectStore, error)

	// SlipFinderFactory creates a SlipFinder. It is only called when
	// cfg.SlippyEnabled is set.
	SlipFinderFactory func(cfg *AppConfig, log Logger) (domain.SlipFinder, error)

	// GraphFactory builds the query graph. finder is nil when slips are disabled.
	GraphFactory func(store domain.ObjectStore, finder domain.SlipFinder, log Logger) Graph

	// ServerFactory builds the HTTP server for the serve command.
	ServerFactory func(graph domain.Graph, cfg *AppConfig, log Logger) (Runner, error)

	// OutputWriterFactory creates an OutputWriter for the given format name.
	OutputWriterFactory func(out io.Writer, format string) (domain.OutputWriter, error)

	// Stdout is the writer for command results.
	Stdout io.Writer

	// Stderr is the writer for warnings.
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// RepoDir is the repository location.
	RepoDir string

	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// ObjectCacheSize bounds the decoded commit cache.
	ObjectCacheSize int

	// SlippyEnabled turns on Commit.slip lookups.
	SlippyEnabled bool

	// ClickHouseConfig is passed to the SlipFinderFactory.
	ClickHouseConfig any

	// PipelineConfig is passed to the SlipFinderFactory.
	PipelineConfig any

	// Database is the database name.
	Database string

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

var errNoDependencies = errors.New("dependencies not configured")

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	repo    string
	verbose bool
}

// defaultDeps holds the production dependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for repograph.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "repograph",
		Short: "Query a Git repository's commit graph",
		Long: `repograph exposes a Git repository's commit graph through a GraphQL API
and a small set of commands.

The repository is taken from --repo or the REPO_DIR environment variable.
Revisions accept full or abbreviated object ids, reference names (HEAD, main,
refs/tags/v1) and ~N / ^N ancestry suffixes.

Examples:
  # Serve GraphQL on :3000
  REPO_DIR=/srv/repo repograph serve

  # Commits on main that are not in v1.0, following first parents only
  repograph log --repo . --reachable-from main --not-reachable-from v1.0 --first-parent

  # Resolve revisions
  repograph rev-parse HEAD~2 v1.0

  # Show a commit or tree as JSON
  repograph show --format json 1a2b3c4`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", "",
		"Repository location (defaults to $REPO_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	rootCmd.AddCommand(
		newServeCmd(deps, opts),
		newLogCmd(deps, opts),
		newRevParseCmd(deps, opts),
		newShowCmd(deps, opts),
	)

	return rootCmd
}

// session is an opened repository with its logger and configuration.
type session struct {
	ctx   context.Context
	log   Logger
	cfg   *AppConfig
	graph Graph
}

func (s *session) close() {
	if err := s.graph.Close(); err != nil {
		s.log.Warn(s.ctx, "failed to close repository", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// open loads configuration and builds the graph for a subcommand.
func open(cmd *cobra.Command, deps *Dependencies, opts *rootOptions, listen string) (*session, error) {
	if deps == nil {
		return nil, errNoDependencies
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if opts.verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	cfg, err := deps.ConfigLoader(ConfigOverrides{RepoDir: opts.repo, ListenAddr: listen})
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	log.Debug(ctx, "opening repository", map[string]interface{}{
		"command": cmd.Name(),
		"path":    cfg.RepoDir,
		"slips":   cfg.SlippyEnabled,
	})

	store, err := deps.StoreFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open git repository", err, map[string]interface{}{
			"path": cfg.RepoDir,
		})
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			return nil, fmt.Errorf("not a git repository: %s", cfg.RepoDir)
		}
		return nil, err
	}

	var finder domain.SlipFinder
	if cfg.SlippyEnabled {
		finder, err = deps.SlipFinderFactory(cfg, log)
		if err != nil {
			log.Error(ctx, "failed to initialize slip finder", err, nil)
			if closeErr := store.Close(); closeErr != nil {
				log.Warn(ctx, "failed to close git repository", map[string]interface{}{
					"error": closeErr.Error(),
				})
			}
			return nil, fmt.Errorf("database error: %w", err)
		}
	}

	return &session{
		ctx:   ctx,
		log:   log,
		cfg:   cfg,
		graph: deps.GraphFactory(store, finder, log),
	}, nil
}

// newOutput creates the output writer for a command.
func newOutput(deps *Dependencies, format string) (domain.OutputWriter, error) {
	stdout := deps.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	return deps.OutputWriterFactory(stdout, format)
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// Write errors are ignored; there is nowhere left to report them.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
