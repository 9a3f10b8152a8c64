package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/vcs-remote/internal/transport/smart"
)

const zeroOID = "0000000000000000000000000000000000000000"

func newPushCommand() *cobra.Command {
	var (
		packPath string
		updates  []string
	)

	cmd := &cobra.Command{
		Use:   "push <url>",
		Short: "Send ref updates and a pack to a remote repository",
		Long: `Push sends one or more ref updates of the form

    <refname>=<old-id>:<new-id>

together with a pre-built pack file containing the missing objects. Use the
zero id as <old-id> to create a ref, or as <new-id> to delete one (deletions
need no pack).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(updates) == 0 {
				return fmt.Errorf("at least one --update is required")
			}
			refUpdates, err := parseRefUpdates(updates)
			if err != nil {
				return err
			}

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

			var pack io.Reader
			if packPath != "" {
				f, err := os.Open(packPath)
				if err != nil {
					return fmt.Errorf("opening pack %s: %w", packPath, err)
				}
				defer f.Close()
				pack = f
			}

			if _, err := client.SendPack(refUpdates, pack, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("push failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&packPath, "pack", "", "Pack file with the objects to send")
	cmd.Flags().StringArrayVar(&updates, "update", nil, "Ref update: <refname>=<old-id>:<new-id>")
	return cmd
}

func parseRefUpdates(specs []string) ([]smart.RefUpdate, error) {
	updates := make([]smart.RefUpdate, 0, len(specs))
	for _, spec := range specs {
		name, ids, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid update %q: want <refname>=<old-id>:<new-id>", spec)
		}
		oldID, newID, ok := strings.Cut(ids, ":")
		if !ok {
			return nil, fmt.Errorf("invalid update %q: want <refname>=<old-id>:<new-id>", spec)
		}
		// an omitted id means the zero id: create when old, delete when new
		if oldID == "" {
			oldID = zeroOID
		}
		if newID == "" {
			newID = zeroOID
		}
		if name == "" {
			return nil, fmt.Errorf("invalid update %q: empty refname", spec)
		}
		updates = append(updates, smart.RefUpdate{OldID: oldID, NewID: newID, Name: name})
	}
	return updates, nil
}
