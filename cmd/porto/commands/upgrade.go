package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newUpgradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade every outdated installed package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			if dryRun {
				outdated, err := c.app.Outdated(cmd.Context())
				if err != nil {
					return err
				}
				for _, recipe := range outdated {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", recipe.Name.String(), recipe.VersionRelease())
				}
				return nil
			}
			return c.app.Upgrade(cmd.Context(), buildOptions(cmd))
		},
	}
	addBuildFlags(cmd)
	cmd.Flags().BoolP("dry-run", "n", false, "List outdated packages without upgrading")
	return cmd
}
