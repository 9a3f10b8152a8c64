package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFetchCommand() *cobra.Command {
	var (
		output string
		wants  []string
		haves  []string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Negotiate and download a pack from a remote repository",
		Long: `Fetch lists the refs the remote advertises, negotiates wants and haves
over the same connection, and writes the resulting pack file verbatim.
Unpacking it into an object store is left to the local repository tooling.`,
		Args: cobra.ExactArgs(1),
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

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer out.Close()

			adv, n, err := client.FetchPack(wants, haves, out)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Received %d bytes into %s (%d refs advertised)\n",
				n, output, len(adv.Refs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "remote.pack", "File the pack is written to")
	cmd.Flags().StringArrayVar(&wants, "want", nil, "Object id to request (default: every advertised ref)")
	cmd.Flags().StringArrayVar(&haves, "have", nil, "Object id the local side already has")
	return cmd
}
