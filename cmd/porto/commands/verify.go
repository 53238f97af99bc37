package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.porto.sh/porto/internal/engine/verify"
	"go.trai.ch/zerr"
)

func (c *CLI) newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run integrity checks",
	}
	cmd.AddCommand(c.newVerifyCheckCmd())
	cmd.AddCommand(c.newVerifyDistfilesCmd())
	cmd.AddCommand(c.newVerifyPrefixCmd())
	return cmd
}

func (c *CLI) newVerifyCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify installed files and dynamic links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportIssues(cmd, func(ctx context.Context) ([]verify.Issue, error) {
				return c.app.Check(ctx)
			})
		},
	}
}

func (c *CLI) newVerifyDistfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distfiles",
		Short: "Verify cached sources against declared checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportIssues(cmd, func(ctx context.Context) ([]verify.Issue, error) {
				return c.app.VerifyDistfiles(ctx)
			})
		},
	}
}

func (c *CLI) newVerifyPrefixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefix [package]",
		Short: "Verify one package's files under the installation prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportIssues(cmd, func(ctx context.Context) ([]verify.Issue, error) {
				return c.app.VerifyPrefix(ctx, args[0])
			})
		},
	}
}

func reportIssues(cmd *cobra.Command, run func(context.Context) ([]verify.Issue, error)) error {
	issues, err := run(cmd.Context())
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}
	for _, issue := range issues {
		fmt.Fprintln(cmd.OutOrStdout(), issue.String())
	}
	return zerr.With(zerr.New("verification found issues"), "issues", len(issues))
}
