package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRevParseCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "rev-parse <revision>...",
		Short: "Print the object id of each revision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps == nil {
				return errNoDependencies
			}
			out, err := newOutput(deps, format)
			if err != nil {
				return err
			}

			s, err := open(cmd, deps, opts, "")
			if err != nil {
				return err
			}
			defer s.close()

			for _, expr := range args {
				oid, err := s.graph.RevParse(s.ctx, expr)
				if err != nil {
					s.log.Error(s.ctx, "failed to resolve revision", err, map[string]interface{}{
						"revision": expr,
					})
					return err
				}
				if err := out.WriteOid(oid); err != nil {
					return fmt.Errorf("output error: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
