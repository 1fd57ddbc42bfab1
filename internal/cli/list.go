package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.streamcat.tech/core/internal/address"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list RECIPIENT",
		Short: "List the streams paying an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mainnet := opts.Config.Mainnet()
			recipient, err := address.DecodePrefix(args[0], address.Prefix(mainnet))
			if err != nil {
				return fmt.Errorf("invalid recipient: %w", err)
			}
			lc, tracker, _, err := opts.tracker()
			if err != nil {
				return err
			}
			statuses, err := tracker.List(cmd.Context(), recipient)
			if err != nil {
				return err
			}
			now, err := lc.Timestamp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get ledger time: %w", err)
			}

			views := make([]streamView, len(statuses))
			for i, s := range statuses {
				views[i] = newStreamView(s, now, mainnet)
				views[i].Events = nil
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), views)
			} else if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No streams found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STREAM ID\tVERSION\tREMAINING\tCLAIMABLE\tEND TIME\tSTATUS")
			for _, v := range views {
				state := "active"
				if v.ClawedBack {
					state = "clawed back"
				} else if !v.Active {
					state = "paid"
				}
				remaining := v.Coin.Amount
				if !v.Active {
					remaining = 0
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", v.StreamID, v.Version, FormatAmount(remaining, CATDecimals), FormatAmount(v.Claimable, CATDecimals), formatTime(v.EndTime), state)
			}
			return tw.Flush()
		},
	}
}
