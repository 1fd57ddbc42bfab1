package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.streamcat.tech/core/internal/address"
	"go.streamcat.tech/core/ledger"
	"go.streamcat.tech/core/puzzles"
	"go.streamcat.tech/core/types"
	"go.streamcat.tech/core/wallet"
)

// LaunchOptions holds flags for the launch command.
type LaunchOptions struct {
	*RootOptions
	Clawback string
	Yes      bool
	NoWait   bool
}

// A launchResult is the outcome of the launch command.
type launchResult struct {
	StreamID   string        `json:"stream_id"`
	LauncherID types.Hash256 `json:"launcher_id"`
	Coin       types.Coin    `json:"coin"`
	Address    string        `json:"address"`
	Confirmed  bool          `json:"confirmed"`
	Height     uint32        `json:"height,omitempty"`
}

// NewLaunchCommand creates the launch command.
func NewLaunchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LaunchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "launch ASSET_ID AMOUNT START END RECIPIENT",
		Short: "Start streaming a CAT to a recipient",
		Long: `Send AMOUNT of the CAT ASSET_ID into a stream that vests linearly to
RECIPIENT between the START and END unix timestamps.

The amount is in CAT units and must contain a '.', e.g. 100.0. Without
--clawback the stream can never be reversed.`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Clawback, "clawback", "", "address allowed to claw back the unvested amount")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.NoWait, "no-wait", false, "do not wait for the stream to be confirmed")

	return cmd
}

func runLaunch(opts *LaunchOptions, cmd *cobra.Command, args []string) error {
	cfg := opts.Config
	prefix := address.Prefix(cfg.Mainnet())

	assetID, err := types.ParseHash256(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id: %w", err)
	}
	amount, err := ParseAmount(args[1], CATDecimals)
	if err != nil {
		return err
	} else if amount == 0 {
		return errors.New("amount must be positive")
	}
	start, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid start time: %w", err)
	}
	end, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid end time: %w", err)
	} else if start >= end {
		return errors.New("start time must be before end time")
	}
	fee, err := ParseAmount(cfg.Fee, XCHDecimals)
	if err != nil {
		return fmt.Errorf("invalid fee: %w", err)
	}

	p := types.StreamParams{Version: types.StreamV1, EndTime: end}
	if p.Recipient, err = address.DecodePrefix(args[4], prefix); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	if opts.Clawback != "" {
		clawback, err := address.DecodePrefix(opts.Clawback, prefix)
		if err != nil {
			return fmt.Errorf("invalid clawback address: %w", err)
		}
		p.Version, p.Clawback = types.StreamV2, &clawback
	}

	lc, _, engine, err := opts.tracker()
	if err != nil {
		return err
	}
	innerHash, err := engine.InnerPuzzleHash(p, start)
	if err != nil {
		return err
	}
	streamAddr := encodeAddress(innerHash, cfg.Mainnet())

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Streaming a CAT to %s\n", args[4])
	if p.Clawback == nil {
		fmt.Fprintln(w, "This stream CANNOT be clawed back. Please ensure the details below are correct.")
	} else {
		fmt.Fprintf(w, "Clawback:   %s\n", opts.Clawback)
	}
	fmt.Fprintf(w, "Asset ID:   %s\n", assetID)
	fmt.Fprintf(w, "Amount:     %s\n", FormatAmount(amount, CATDecimals))
	fmt.Fprintf(w, "Start time: %s\n", formatTime(start))
	fmt.Fprintf(w, "End time:   %s\n", formatTime(end))
	fmt.Fprintf(w, "Fee:        %s XCH\n", FormatAmount(fee, XCHDecimals))
	fmt.Fprintf(w, "Network:    %s\n", cfg.Network)
	if err := confirm(cmd, opts.RootOptions, opts.Yes, "Launch stream?"); err != nil {
		return err
	}

	wal, err := opts.NewWallet(cfg)
	if err != nil {
		return err
	}
	hints := puzzles.LaunchHints(p, start)
	memos := make([]string, len(hints))
	for i, h := range hints {
		memos[i] = hex.EncodeToString(h)
	}
	resp, err := wal.SendCAT(cmd.Context(), wallet.SendCAT{
		AssetID:    hex.EncodeToString(assetID[:]),
		Address:    streamAddr,
		Amount:     wallet.Amount(amount),
		Fee:        wallet.Amount(fee),
		Memos:      memos,
		AutoSubmit: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send CAT: %w", err)
	}
	launcherID, ok := resp.Launcher(assetID, streamAddr)
	if !ok {
		return errors.New("the stream may have been launched, but the launching coin could not be found in the wallet's response")
	}
	res := launchResult{
		StreamID:   address.EncodeStreamID(launcherID),
		LauncherID: launcherID,
		Coin: types.Coin{
			ParentID:   launcherID,
			PuzzleHash: puzzles.CatPuzzleHash(engine.Token, assetID, innerHash),
			Amount:     amount,
		},
		Address: streamAddr,
	}
	log.Infof("Launched stream %v (coin %v)", launcherID, res.Coin.ID())
	if opts.Format == "text" {
		fmt.Fprintf(w, "Stream ID:  %s\n", res.StreamID)
	}

	if !opts.NoWait {
		if opts.Format == "text" {
			fmt.Fprintln(w, "Waiting for the stream to be confirmed...")
		}
		rec, err := ledger.WaitForCoin(cmd.Context(), lc, res.Coin.ID(), cfg.PollInterval)
		if err != nil {
			return fmt.Errorf("failed to wait for confirmation: %w", err)
		}
		res.Confirmed, res.Height = true, rec.ConfirmedHeight
		if opts.Format == "text" {
			fmt.Fprintf(w, "Confirmed at height %d (%s)\n", rec.ConfirmedHeight, time.Unix(int64(rec.Timestamp), 0).Local().Format(time.RFC1123))
		}
	}
	if opts.Format == "json" {
		return writeJSON(w, res)
	}
	return nil
}
