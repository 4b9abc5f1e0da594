package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags; left as a placeholder here,
// matching the teacher's cmd/nexus convention.
var version = "dev"

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the CLI's root command. This CLI is a thin
// entrypoint around the session server — it carries only "serve" and
// "version", not the teacher's full command surface (channels, skills,
// plugins, marketplace, onboarding, and the rest don't apply here).
func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nexus",
		Short:   "Local coworker agent session server",
		Version: version,
		SilenceUsage: true,
	}

	cmd.AddCommand(buildServeCmd())
	cmd.AddCommand(buildVersionCmd())
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}
