package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.streamcat.tech/core/internal/address"
	"go.streamcat.tech/core/stream"
	"go.streamcat.tech/core/types"
	"go.streamcat.tech/core/wallet"
)

// ClaimOptions holds flags for the claim and clawback commands.
type ClaimOptions struct {
	*RootOptions
	Clawback bool
	Yes      bool
}

// A claimResult is the outcome of the claim and clawback commands.
type claimResult struct {
	StreamID    string        `json:"stream_id"`
	SpentCoin   types.Hash256 `json:"spent_coin"`
	PaymentTime uint64        `json:"payment_time"`
	Paid        uint64        `json:"paid"`
	Returned    uint64        `json:"returned,omitempty"`
	Successor   *types.Coin   `json:"successor,omitempty"`
}

// NewClaimCommand creates the claim command or, if clawback is set, the
// clawback command.
func NewClaimCommand(rootOpts *RootOptions, clawback bool) *cobra.Command {
	opts := &ClaimOptions{RootOptions: rootOpts, Clawback: clawback}

	cmd := &cobra.Command{
		Use:   "claim STREAM_ID",
		Short: "Pay the vested amount of a stream to its recipient",
		Long: `Spend the latest coin of a stream, paying everything vested up to the
ledger's latest timestamp to the recipient. Anyone may claim on behalf of
the recipient.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(opts, cmd, args)
		},
	}
	if clawback {
		cmd.Use = "clawback STREAM_ID"
		cmd.Short = "Terminate a stream, returning the unvested amount"
		cmd.Long = `Spend the latest coin of a clawback-enabled stream, paying what has vested
to the recipient and returning the rest to the clawback address.`
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func runClaim(opts *ClaimOptions, cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := address.ParseStreamID(args[0])
	if err != nil {
		return fmt.Errorf("invalid stream id: %w", err)
	}
	lc, tracker, engine, err := opts.tracker()
	if err != nil {
		return err
	}
	status, err := tracker.Sync(ctx, id)
	if err != nil {
		return err
	} else if status.ClawedBack {
		return errors.New("stream has been clawed back")
	} else if !status.Active() {
		return errors.New("stream has been fully paid")
	} else if opts.Clawback && !status.Stream.Params.Version.SupportsClawback() {
		return fmt.Errorf("%v streams cannot be clawed back", status.Stream.Params.Version)
	}
	now, err := lc.Timestamp(ctx)
	if err != nil {
		return fmt.Errorf("failed to get ledger time: %w", err)
	} else if now <= status.Stream.LastPaymentTime && opts.Clawback {
		// the clawback solution carries a payment time, which must be after
		// the last one (or the start time, for a new stream)
		return fmt.Errorf("stream cannot be clawed back until after %s", formatTime(status.Stream.LastPaymentTime))
	} else if now <= status.Stream.LastPaymentTime {
		return fmt.Errorf("nothing has vested since the last payment at %s", formatTime(status.Stream.LastPaymentTime))
	}

	cs, err := engine.BuildCoinSpend(status.Stream, now, opts.Clawback)
	if err != nil {
		return err
	}
	// replay the spend to report its effects exactly as the tracker will see
	// them
	out, err := engine.ReplayStep(cs.Coin, cs.PuzzleReveal, cs.Solution)
	if err != nil {
		return err
	}
	res := claimResult{
		StreamID:    address.EncodeStreamID(status.ID),
		SpentCoin:   cs.Coin.ID(),
		PaymentTime: stream.ClampPaymentTime(status.Stream, now),
		Paid:        out.Paid,
	}
	if opts.Clawback {
		res.Returned = cs.Coin.Amount - out.Paid
	} else {
		res.Successor = &out.Stream.Coin
	}

	wal, err := opts.NewWallet(opts.Config)
	if err != nil {
		return err
	}
	mainnet := opts.Config.Mainnet()
	if opts.Clawback {
		addr := encodeAddress(*status.Stream.Params.Clawback, mainnet)
		if _, err := wal.PublicKey(ctx, addr); errors.Is(err, wallet.ErrUnknownAddress) {
			return fmt.Errorf("wallet does not control clawback address %s", addr)
		} else if err != nil {
			return fmt.Errorf("failed to look up clawback key: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Paying %s to %s\n", FormatAmount(out.Paid, CATDecimals), encodeAddress(status.Stream.Params.Recipient, mainnet))
	if opts.Clawback {
		fmt.Fprintf(w, "Returning %s to %s\n", FormatAmount(res.Returned, CATDecimals), encodeAddress(*status.Stream.Params.Clawback, mainnet))
	}
	if err := confirm(cmd, opts.RootOptions, opts.Yes, "Submit spend?"); err != nil {
		return err
	}

	if _, err := wal.SignCoinSpends(ctx, []types.CoinSpend{cs}, true); err != nil {
		return fmt.Errorf("failed to submit spend: %w", err)
	}
	log.Infof("Submitted %v of stream %v (coin %v)", out.Kind, status.ID, cs.Coin.ID())

	if opts.Format == "json" {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Submitted spend of %s\n", cs.Coin.ID())
	return nil
}
