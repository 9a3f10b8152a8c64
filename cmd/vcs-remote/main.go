package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vcs-remote",
		Short: "Smart-protocol client for SSH and HTTP git remotes",
		Long: `vcs-remote talks the git smart protocol to remote repositories over
SSH and HTTP. It lists advertised refs, negotiates and downloads packs,
and pushes ref updates; pack contents are handled as opaque bytes.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.vcs-remote.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newLsRemoteCommand(),
		newFetchCommand(),
		newPushCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
