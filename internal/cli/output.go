package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.streamcat.tech/core/chain"
	"go.streamcat.tech/core/internal/address"
	"go.streamcat.tech/core/types"
)

// ErrAborted is returned when the user declines a confirmation prompt.
var ErrAborted = errors.New("aborted")

// confirm asks the user to confirm an action. Without a terminal to prompt
// on, the action must be confirmed with --yes.
func confirm(cmd *cobra.Command, opts *RootOptions, yes bool, prompt string) error {
	if yes {
		return nil
	} else if !opts.IsTerminal() {
		return errors.New("refusing to continue without confirmation; rerun with --yes")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return ErrAborted
	}
}

func formatTime(ts uint64) string {
	return time.Unix(int64(ts), 0).Local().Format("2006-01-02 15:04:05")
}

func encodeAddress(h types.Hash256, mainnet bool) string {
	addr, err := address.Encode(address.Prefix(mainnet), h)
	if err != nil {
		panic(err) // should never happen
	}
	return addr
}

// streamView is the JSON form of a stream's status.
type streamView struct {
	StreamID        string        `json:"stream_id"`
	LauncherID      types.Hash256 `json:"launcher_id"`
	Coin            types.Coin    `json:"coin"`
	AssetID         types.Hash256 `json:"asset_id"`
	Version         string        `json:"version"`
	Recipient       string        `json:"recipient"`
	Clawback        string        `json:"clawback,omitempty"`
	EndTime         uint64        `json:"end_time"`
	LastPaymentTime uint64        `json:"last_payment_time"`
	Paid            uint64        `json:"paid"`
	Claimable       uint64        `json:"claimable"`
	Active          bool          `json:"active"`
	ClawedBack      bool          `json:"clawed_back"`
	Events          []chain.Event `json:"events,omitempty"`
}

func newStreamView(s chain.Status, now uint64, mainnet bool) streamView {
	v := streamView{
		StreamID:        address.EncodeStreamID(s.ID),
		LauncherID:      s.ID,
		Coin:            s.Stream.Coin,
		AssetID:         s.Stream.AssetID,
		Version:         s.Stream.Params.Version.String(),
		Recipient:       encodeAddress(s.Stream.Params.Recipient, mainnet),
		EndTime:         s.Stream.Params.EndTime,
		LastPaymentTime: s.Stream.LastPaymentTime,
		Paid:            s.Paid,
		Claimable:       s.Claimable(now),
		Active:          s.Active(),
		ClawedBack:      s.ClawedBack,
		Events:          s.Events,
	}
	if s.Stream.Params.Clawback != nil {
		v.Clawback = encodeAddress(*s.Stream.Params.Clawback, mainnet)
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStatus(w io.Writer, v streamView) {
	fmt.Fprintf(w, "Stream ID:         %s\n", v.StreamID)
	fmt.Fprintf(w, "Asset ID:          %s\n", v.AssetID)
	fmt.Fprintf(w, "Version:           %s\n", v.Version)
	fmt.Fprintf(w, "Recipient:         %s\n", v.Recipient)
	if v.Clawback != "" {
		fmt.Fprintf(w, "Clawback:          %s\n", v.Clawback)
	}
	fmt.Fprintf(w, "End time:          %s\n", formatTime(v.EndTime))
	fmt.Fprintf(w, "Last payment time: %s\n", formatTime(v.LastPaymentTime))
	fmt.Fprintf(w, "Paid:              %s\n", FormatAmount(v.Paid, CATDecimals))
	switch {
	case v.ClawedBack:
		fmt.Fprintf(w, "Status:            clawed back (%s returned)\n", FormatAmount(v.Coin.Amount-lastPaid(v), CATDecimals))
	case !v.Active:
		fmt.Fprintln(w, "Status:            fully paid")
	default:
		fmt.Fprintf(w, "Remaining:         %s\n", FormatAmount(v.Coin.Amount, CATDecimals))
		fmt.Fprintf(w, "Claimable now:     %s\n", FormatAmount(v.Claimable, CATDecimals))
		fmt.Fprintf(w, "Current coin:      %s\n", v.Coin.ID())
	}
}

// lastPaid returns the amount paid by the final event of a stream.
func lastPaid(v streamView) uint64 {
	if len(v.Events) == 0 {
		return 0
	}
	return v.Events[len(v.Events)-1].Paid
}
