package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func (c *CLI) newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock [packages...]",
		Short: "Exclude packages from upgrades",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				locked, err := c.app.Locked(cmd.Context())
				if err != nil {
					return err
				}
				names := make([]string, 0, len(locked))
				for name := range locked {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			return c.app.Lock(cmd.Context(), args)
		},
	}
}

func (c *CLI) newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock [packages...]",
		Short: "Re-admit packages to upgrades",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Unlock(cmd.Context(), args)
		},
	}
}
