package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GraphQL API over HTTP",
		Long: `Serve the GraphQL API at /graphql (GET and POST), a liveness probe at
/healthz and prometheus metrics at /metrics. The server stops gracefully on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps, opts, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (defaults to $LISTEN_ADDR or :3000)")

	return cmd
}

func runServe(cmd *cobra.Command, deps *Dependencies, opts *rootOptions, listen string) error {
	s, err := open(cmd, deps, opts, listen)
	if err != nil {
		return err
	}
	defer s.close()

	srv, err := deps.ServerFactory(s.graph, s.cfg, s.log)
	if err != nil {
		s.log.Error(s.ctx, "failed to build server", err, nil)
		return err
	}

	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.log.Info(ctx, "starting repograph server", map[string]interface{}{
		"path":   s.cfg.RepoDir,
		"listen": s.cfg.ListenAddr,
		"slips":  s.cfg.SlippyEnabled,
	})

	if err := srv.Run(ctx); err != nil {
		s.log.Error(ctx, "server stopped with error", err, nil)
		return err
	}

	s.log.Info(s.ctx, "repograph server stopped", nil)
	return nil
}
