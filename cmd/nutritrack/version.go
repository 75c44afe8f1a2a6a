package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nutritrack/internal/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nutritrack version %s\n", server.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
