// File: cmd/trace.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucible-dev/crucible-cli/internal/observability"
)

func newTraceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Print the full audit trail of a past run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			store, err := openAuditStore(cmd.Context(), appConfig, logger)
			if err != nil {
				return fmt.Errorf("failed to open audit store: %w", err)
			}
			defer store.Close()

			attempts, err := store.Trace(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to load audit trail: %w", err)
			}
			if len(attempts) == 0 {
				return fmt.Errorf("no audit records for run %s", args[0])
			}

			data, err := json.MarshalIndent(attempts, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize audit trail: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
