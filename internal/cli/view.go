package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.streamcat.tech/core/internal/address"
)

// NewViewCommand creates the view command.
func NewViewCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view STREAM_ID",
		Short: "Show the state of a stream",
		Long: `Follow a stream from its launch to its latest coin and show how much has
been paid and how much can be claimed now.

STREAM_ID is the stream's s1... id, or the hex id of any coin in its
lineage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := address.ParseStreamID(args[0])
			if err != nil {
				return fmt.Errorf("invalid stream id: %w", err)
			}
			lc, tracker, _, err := opts.tracker()
			if err != nil {
				return err
			}
			status, err := tracker.Sync(cmd.Context(), id)
			if err != nil {
				return err
			}
			now, err := lc.Timestamp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get ledger time: %w", err)
			}

			v := newStreamView(status, now, opts.Config.Mainnet())
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			writeStatus(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
