package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/switchboard/internal/version"
	"github.com/GoCodeAlone/switchboard/update"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

var updateApply bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check GitHub for a newer release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		u := update.New(version.Version)
		rel, err := u.Check(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if rel == nil {
			fmt.Fprintf(out, "switchboard %s is up to date\n", version.Version)
			return nil
		}
		fmt.Fprintf(out, "switchboard %s is available (running %s)\n", rel.Version, version.Version)
		if !updateApply {
			fmt.Fprintln(out, "run `switchboard update --apply` to install it")
			return nil
		}
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		if err := u.Apply(cmd.Context(), rel, exe); err != nil {
			return err
		}
		fmt.Fprintf(out, "updated to %s\n", rel.Version)
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateApply, "apply", false, "download and install the release")
}
