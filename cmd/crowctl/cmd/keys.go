package cmd

import (
	"fmt"
	"time"

	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/service"
	"github.com/spf13/cobra"
)

func KeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Crowmail verification keys",
	}

	cmd.AddCommand(keysSweepCmd())
	return cmd
}

func keysSweepCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete verification keys that expired before now minus --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}

			database, _, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			// Sweeping never sends mail, so no mailer is wired.
			crowmail := service.NewCrowmailService(
				repository.NewVerificationKeyRepository(database),
				repository.NewSubscriberRepository(database),
				nil,
				0,
			)

			removed, err := crowmail.SweepExpired(cmd.Context(), olderThan)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired keys\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only remove keys expired at least this long ago")
	return cmd
}
