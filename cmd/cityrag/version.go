package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/cityrag/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cityrag %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
