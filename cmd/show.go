package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd(deps *Dependencies, opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <oid>",
		Short: "Show a commit or tree by full or abbreviated id",
		Args:  cobra.ExactArgs(1),
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

			obj, err := s.graph.Object(s.ctx, args[0])
			if err != nil {
				s.log.Error(s.ctx, "failed to resolve object", err, map[string]interface{}{
					"oid": args[0],
				})
				return err
			}
			if err := out.WriteObject(obj); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
