package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/intentflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of intentflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "intentflow version %s\n", strings.TrimSpace(intentflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
