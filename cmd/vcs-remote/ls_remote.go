package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

func newLsRemoteCommand() *cobra.Command {
	var forPush bool

	cmd := &cobra.Command{
		Use:   "ls-remote <url>",
		Short: "List references advertised by a remote repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			client, err := dialClient(cmd, cfg, args[0], logger)
			if err != nil {
				return err
			}
			defer client.Close()

			service := transport.ServiceUploadPackLs
			if forPush {
				service = transport.ServiceReceivePackLs
			}

			adv, err := client.ListRefs(service)
			if err != nil {
				return fmt.Errorf("listing refs for %s: %w", args[0], err)
			}
			for _, ref := range adv.Refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ref.ObjectID, ref.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&forPush, "push", false, "List what the receive-pack service advertises")
	return cmd
}
