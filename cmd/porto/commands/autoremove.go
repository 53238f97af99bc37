package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newAutoremoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoremove",
		Short: "Remove dependencies no explicit package requires anymore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			removed, err := c.app.Autoremove(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().BoolP("dry-run", "n", false, "List orphaned packages without removing them")
	return cmd
}
