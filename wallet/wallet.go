// Package wallet defines the wallet operations needed to fund and spend
// streams, and implements them with the Sage wallet RPC.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.streamcat.tech/core/types"
)

// An Amount is a quantity of mojos (or, for CATs, thousandths of a token).
// Sage encodes amounts too large for a JSON number as strings.
type Amount uint64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		b = []byte(s)
	}
	n, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", b, err)
	}
	*a = Amount(n)
	return nil
}

// SendCAT is a request to send a CAT to an address.
type SendCAT struct {
	AssetID    string   `json:"asset_id"`
	Address    string   `json:"address"`
	Amount     Amount   `json:"amount"`
	Fee        Amount   `json:"fee"`
	Memos      []string `json:"memos"`
	AutoSubmit bool     `json:"auto_submit"`
}

// A TransactionOutput is a coin created by a transaction.
type TransactionOutput struct {
	CoinID    string `json:"coin_id"`
	Amount    Amount `json:"amount"`
	Address   string `json:"address"`
	Receiving bool   `json:"receiving"`
	Burning   bool   `json:"burning"`
}

// A TransactionInput is a coin spent by a transaction.
type TransactionInput struct {
	CoinID  string              `json:"coin_id"`
	Amount  Amount              `json:"amount"`
	Address string              `json:"address"`
	Type    string              `json:"type"`
	AssetID string              `json:"asset_id,omitempty"`
	Outputs []TransactionOutput `json:"outputs"`
}

// A TransactionSummary describes a transaction built by the wallet.
type TransactionSummary struct {
	Fee    Amount             `json:"fee"`
	Inputs []TransactionInput `json:"inputs"`
}

// SendCATResponse is the response to a SendCAT request.
type SendCATResponse struct {
	Summary    TransactionSummary `json:"summary"`
	CoinSpends []types.CoinSpend  `json:"coin_spends"`
}

// Launcher returns the id of the CAT coin whose spend sends to address. For a
// stream launch, this is the stream's id.
func (r SendCATResponse) Launcher(assetID types.Hash256, address string) (types.Hash256, bool) {
	for _, in := range r.Summary.Inputs {
		if in.Type != "cat" {
			continue
		} else if id, err := types.ParseHash256(in.AssetID); err != nil || id != assetID {
			continue
		}
		for _, out := range in.Outputs {
			if !out.Receiving && out.Address == address {
				id, err := types.ParseHash256(in.CoinID)
				return id, err == nil
			}
		}
	}
	return types.Hash256{}, false
}

// A Derivation is a key derived by the wallet.
type Derivation struct {
	Index     uint32 `json:"index"`
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
}

// A SpendBundle is a set of coin spends with their aggregated signature.
type SpendBundle struct {
	CoinSpends          []types.CoinSpend `json:"coin_spends"`
	AggregatedSignature string            `json:"aggregated_signature"`
}

// A Sender sends CATs from the wallet's balance.
type Sender interface {
	SendCAT(ctx context.Context, req SendCAT) (SendCATResponse, error)
}

// A Signer signs spends with the wallet's keys.
type Signer interface {
	// PublicKey returns the public key controlling address.
	PublicKey(ctx context.Context, address string) (string, error)
	// SignCoinSpends signs spends and, if submit is set, submits the
	// resulting bundle to the network.
	SignCoinSpends(ctx context.Context, spends []types.CoinSpend, submit bool) (SpendBundle, error)
}
