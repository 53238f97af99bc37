// Package commands implements the CLI commands for the porto package manager.
package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.porto.sh/porto/internal/app"
	"go.porto.sh/porto/internal/build"
)

// CLI represents the command line interface for porto.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "porto",
		Short:         "A source-based package manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newRemoveCmd())
	rootCmd.AddCommand(c.newAutoremoveCmd())
	rootCmd.AddCommand(c.newUpgradeCmd())
	rootCmd.AddCommand(c.newVerifyCmd())
	rootCmd.AddCommand(c.newLockCmd())
	rootCmd.AddCommand(c.newUnlockCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// buildOptions reads the flags shared by build and install.
func buildOptions(cmd *cobra.Command) app.Options {
	force, _ := cmd.Flags().GetBool("force")
	refresh, _ := cmd.Flags().GetBool("refresh")
	ignoreFootprint, _ := cmd.Flags().GetBool("ignore-footprint")
	return app.Options{
		Force:           force,
		Refresh:         refresh,
		IgnoreFootprint: ignoreFootprint,
	}
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("force", "f", false, "Rebuild cached artifacts and claim conflicting paths")
	cmd.Flags().BoolP("refresh", "r", false, "Re-download sources even when cached")
	cmd.Flags().Bool("ignore-footprint", false, "Accept footprint drift as the new baseline")
}
