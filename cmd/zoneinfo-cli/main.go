package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "zoneinfo-cli",
		Short:        "Operator tools for the zone info server",
		SilenceUsage: true,
	}

	root.AddCommand(tokenCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(inspectCmd())
	return root
}

func tokenCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Mint a control token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd.OutOrStdout(), args[0], role)
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", "operator", "token role (operator or viewer)")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [token]",
		Short: "Check a control token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), args[0])
		},
	}
}

func inspectCmd() *cobra.Command {
	var (
		district       int
		percent        bool
		includeUnzoned bool
		ruleSet        string
	)

	cmd := &cobra.Command{
		Use:   "inspect [export.json]",
		Short: "Render a snapshot exported from /api/zoneinfo/export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return runInspect(cmd.OutOrStdout(), f, inspectOptions{
				District:       district,
				Percent:        percent,
				IncludeUnzoned: includeUnzoned,
				RuleSet:        ruleSet,
			})
		},
	}

	cmd.Flags().IntVarP(&district, "district", "d", 128, "district id (128 is the entire city)")
	cmd.Flags().BoolVarP(&percent, "percent", "p", false, "show percentages instead of counts")
	cmd.Flags().BoolVar(&includeUnzoned, "include-unzoned", true, "count unzoned squares in the totals")
	cmd.Flags().StringVar(&ruleSet, "rules", "default", "rule set the snapshot was counted with")
	return cmd
}
