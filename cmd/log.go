package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

var errNegativeMaxCount = errors.New("--max-count must not be negative")

type logOptions struct {
	reachableFrom    []string
	notReachableFrom []string
	firstParent      bool
	maxCount         int
	format           string
}

func newLogCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	lo := &logOptions{}

	cmd := &cobra.Command{
		Use:   "log [revision]...",
		Short: "List commits reachable from some revisions and not from others",
		Long: `List commits reachable from the --reachable-from revisions (and any
positional revisions) that are not reachable from the --not-reachable-from
revisions, newest first. With no revisions at all HEAD is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, args, deps, opts, lo)
		},
	}

	cmd.Flags().StringArrayVar(&lo.reachableFrom, "reachable-from", nil,
		"Include commits reachable from this revision (repeatable)")
	cmd.Flags().StringArrayVar(&lo.notReachableFrom, "not-reachable-from", nil,
		"Exclude commits reachable from this revision (repeatable)")
	cmd.Flags().BoolVar(&lo.firstParent, "first-parent", false,
		"Follow only the first parent of merge commits")
	cmd.Flags().IntVarP(&lo.maxCount, "max-count", "n", 0,
		"Stop after this many commits (0 means no limit)")
	cmd.Flags().StringVar(&lo.format, "format", "text", "Output format: text or json")

	return cmd
}

func runLog(cmd *cobra.Command, args []string, deps *Dependencies, opts *rootOptions, lo *logOptions) error {
	if deps == nil {
		return errNoDependencies
	}
	if lo.maxCount < 0 {
		return errNegativeMaxCount
	}

	out, err := newOutput(deps, lo.format)
	if err != nil {
		return err
	}

	s, err := open(cmd, deps, opts, "")
	if err != nil {
		return err
	}
	defer s.close()

	input := domain.LogInput{
		ReachableFrom:    append(append([]string{}, lo.reachableFrom...), args...),
		NotReachableFrom: lo.notReachableFrom,
		FirstParent:      lo.firstParent,
	}
	if len(input.ReachableFrom) == 0 {
		input.ReachableFrom = []string{"HEAD"}
	}

	it, err := s.graph.Log(s.ctx, input)
	if err != nil {
		s.log.Error(s.ctx, "failed to start history walk", err, nil)
		return err
	}
	defer it.Close()

	written := 0
	for (lo.maxCount == 0 || written < lo.maxCount) && it.Next() {
		if err := out.WriteCommit(it.Value()); err != nil {
			s.log.Error(s.ctx, "failed to write output", err, nil)
			return fmt.Errorf("output error: %w", err)
		}
		written++
	}
	if err := it.Err(); err != nil {
		s.log.Error(s.ctx, "history walk failed", err, nil)
		return err
	}

	s.log.Debug(s.ctx, "history walk complete", map[string]interface{}{
		"commits": written,
	})
	return nil
}
