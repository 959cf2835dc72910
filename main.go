// Package main is the entry point for the repograph CLI and GraphQL server.
// repograph exposes a Git repository's commit graph: references, objects,
// revision expressions and bounded history walks.
package main

import (
	"io"
	"os"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/slippy"

	"github.com/MyCarrier-DevOps/repograph/cmd"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/git"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/gql"
	logadapter "github.com/MyCarrier-DevOps/repograph/internal/adapters/logger"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/output"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/server"
	"github.com/MyCarrier-DevOps/repograph/internal/adapters/store"
	"github.com/MyCarrier-DevOps/repograph/internal/domain"
	"github.com/MyCarrier-DevOps/repograph/internal/infrastructure/config"
	"github.com/MyCarrier-DevOps/repograph/internal/infrastructure/metrics"
	"github.com/MyCarrier-DevOps/repograph/internal/usecases"
)

// slipStoreFactory opens the routing-slip store for the given settings.
type slipStoreFactory func(chConfig *ch.ClickhouseConfig, pipelineCfg *slippy.PipelineConfig, database string) (slippy.SlipStore, error)

func main() {
	// Create a single shared logger instance for the application
	zapLog := logger.NewZapLoggerFromConfig()

	openSlipStore := func(chConfig *ch.ClickhouseConfig, pipelineCfg *slippy.PipelineConfig, database string) (slippy.SlipStore, error) {
		return slippy.NewClickHouseStoreFromConfig(chConfig, slippy.ClickHouseStoreOptions{
			PipelineConfig: pipelineCfg,
			Database:       database,
			Logger:         zapLog,
			SkipMigrations: true,
		})
	}

	cmd.SetDefaultDependencies(newDependencies(logadapter.NewZapAdapter(zapLog), metrics.NewDefault(), openSlipStore))
	cmd.Execute()
}

// newDependencies wires the production factories around one logger, one
// metrics registry and the slip store opener.
func newDependencies(adapter *logadapter.ZapAdapter, m *metrics.Metrics, openSlipStore slipStoreFactory) *cmd.Dependencies {
	return &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return adapter
		},

		ConfigLoader: func(o cmd.ConfigOverrides) (*cmd.AppConfig, error) {
			cfg, err := config.Load(config.Overrides{RepoDir: o.RepoDir, ListenAddr: o.ListenAddr})
			if err != nil {
				return nil, err
			}
			return &cmd.AppConfig{
				RepoDir:          cfg.RepoDir,
				ListenAddr:       cfg.ListenAddr,
				ObjectCacheSize:  cfg.ObjectCacheSize,
				SlippyEnabled:    cfg.SlippyEnabled,
				ClickHouseConfig: cfg.ClickHouse,
				PipelineConfig:   cfg.PipelineConfig,
				Database:         cfg.Database,
				LogLevel:         cfg.LogLevel,
				LogAppName:       cfg.LogAppName,
			}, nil
		},

		StoreFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.ObjectStore, error) {
			repo, err := git.NewGoGitRepository(cfg.RepoDir, cfg.ObjectCacheSize,
				adapter.With(map[string]interface{}{"repo": cfg.RepoDir}))
			if err != nil {
				return nil, err
			}
			return repo, nil
		},

		SlipFinderFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.SlipFinder, error) {
			chConfig, ok := cfg.ClickHouseConfig.(*ch.ClickhouseConfig)
			if !ok {
				return nil, newConfigTypeError("*ch.ClickhouseConfig")
			}

			pipelineCfg, ok := cfg.PipelineConfig.(*slippy.PipelineConfig)
			if !ok {
				return nil, newConfigTypeError("*slippy.PipelineConfig")
			}

			slipStore, err := openSlipStore(chConfig, pipelineCfg, cfg.Database)
			if err != nil {
				return nil, err
			}
			return store.NewClickHouseAdapter(slipStore, m), nil
		},

		GraphFactory: func(s domain.ObjectStore, finder domain.SlipFinder, _ cmd.Logger) cmd.Graph {
			return usecases.NewRepositoryGraph(s, finder, adapter, m)
		},

		ServerFactory: func(graph domain.Graph, cfg *cmd.AppConfig, _ cmd.Logger) (cmd.Runner, error) {
			httpLog := adapter.With(map[string]interface{}{"component": "http"})
			exec, err := gql.NewExecutor(graph, httpLog)
			if err != nil {
				return nil, err
			}
			return server.New(cfg.ListenAddr, server.NewRouter(exec, httpLog, m), httpLog), nil
		},

		OutputWriterFactory: func(out io.Writer, format string) (domain.OutputWriter, error) {
			f, err := output.ParseFormat(format)
			if err != nil {
				return nil, err
			}
			return output.NewWriterWithOutput(out, f), nil
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func newConfigTypeError(expected string) error {
	return &configTypeError{expected: expected}
}

// configTypeError is returned when configuration type assertion fails.
type configTypeError struct {
	expected string
}

func (e *configTypeError) Error() string {
	return "invalid configuration type: expected " + e.expected
}
