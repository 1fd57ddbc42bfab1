package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.streamcat.tech/core/types"
	"golang.org/x/time/rate"
)

// Base URLs of the public coinset.org API.
const (
	MainnetURL   = "https://api.coinset.org"
	Testnet11URL = "https://testnet11.api.coinset.org"
)

// maxTimestampSearch bounds how far Timestamp walks back from the peak looking
// for a transaction block.
const maxTimestampSearch = 64

// A Coinset is a Client backed by the coinset.org full node RPC API.
type Coinset struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// A CoinsetOption configures a Coinset.
type CoinsetOption func(*Coinset)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) CoinsetOption {
	return func(c *Coinset) { c.client = hc }
}

// WithRateLimit limits requests to r per second, with bursts of up to burst
// requests.
func WithRateLimit(r float64, burst int) CoinsetOption {
	return func(c *Coinset) { c.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// NewCoinset returns a client for the coinset.org API at baseURL.
func NewCoinset(baseURL string, opts ...CoinsetOption) *Coinset {
	c := &Coinset{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (r rpcResponse) err() error {
	if r.Success {
		return nil
	} else if strings.Contains(strings.ToLower(r.Error), "not found") {
		return fmt.Errorf("%w: %s", ErrNotFound, r.Error)
	} else if r.Error == "" {
		return fmt.Errorf("request unsuccessful")
	}
	return fmt.Errorf("request unsuccessful: %s", r.Error)
}

// post sends req to the given endpoint and decodes the response into resp,
// which must embed rpcResponse.
func (c *Coinset) post(ctx context.Context, endpoint string, req any, resp interface{ err() error }) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	js, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", endpoint, err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(js))
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	hresp, err := c.client.Do(hreq)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer hresp.Body.Close()
	log.Tracef("POST %s: %s (%v)", endpoint, hresp.Status, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(hresp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, resp); err != nil {
		if hresp.StatusCode < 200 || hresp.StatusCode >= 300 {
			return fmt.Errorf("%s: %s: %s", endpoint, hresp.Status, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	} else if err := resp.err(); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	return nil
}

// CoinRecord implements Client.
func (c *Coinset) CoinRecord(ctx context.Context, id types.Hash256) (CoinRecord, error) {
	var resp struct {
		rpcResponse
		CoinRecord *CoinRecord `json:"coin_record"`
	}
	if err := c.post(ctx, "get_coin_record_by_name", map[string]any{"name": id}, &resp); err != nil {
		return CoinRecord{}, err
	} else if resp.CoinRecord == nil {
		return CoinRecord{}, fmt.Errorf("get_coin_record_by_name: %w", ErrNotFound)
	}
	return *resp.CoinRecord, nil
}

// CoinRecordsByHint implements Client.
func (c *Coinset) CoinRecordsByHint(ctx context.Context, hint types.Hash256, includeSpent bool) ([]CoinRecord, error) {
	var resp struct {
		rpcResponse
		CoinRecords []CoinRecord `json:"coin_records"`
	}
	req := map[string]any{"hint": hint, "include_spent_coins": includeSpent}
	err := c.post(ctx, "get_coin_records_by_hint", req, &resp)
	return resp.CoinRecords, err
}

// CoinRecordsByParentIDs implements Client.
func (c *Coinset) CoinRecordsByParentIDs(ctx context.Context, parentIDs []types.Hash256, includeSpent bool) ([]CoinRecord, error) {
	var resp struct {
		rpcResponse
		CoinRecords []CoinRecord `json:"coin_records"`
	}
	req := map[string]any{"parent_ids": parentIDs, "include_spent_coins": includeSpent}
	err := c.post(ctx, "get_coin_records_by_parent_ids", req, &resp)
	return resp.CoinRecords, err
}

// PuzzleAndSolution implements Client.
func (c *Coinset) PuzzleAndSolution(ctx context.Context, id types.Hash256, height uint32) (types.CoinSpend, error) {
	var resp struct {
		rpcResponse
		CoinSolution *types.CoinSpend `json:"coin_solution"`
	}
	req := map[string]any{"coin_id": id, "height": height}
	if err := c.post(ctx, "get_puzzle_and_solution", req, &resp); err != nil {
		return types.CoinSpend{}, err
	} else if resp.CoinSolution == nil {
		return types.CoinSpend{}, fmt.Errorf("get_puzzle_and_solution: %w", ErrNotFound)
	} else if resp.CoinSolution.Coin.ID() != id {
		return types.CoinSpend{}, fmt.Errorf("get_puzzle_and_solution: returned spend of coin %v, expected %v", resp.CoinSolution.Coin.ID(), id)
	}
	return *resp.CoinSolution, nil
}

type blockRecord struct {
	Height    uint32  `json:"height"`
	Timestamp *uint64 `json:"timestamp"`
}

// Timestamp implements Client. Only transaction blocks carry a timestamp, so
// if the peak is not one, the most recent transaction block below it is used.
func (c *Coinset) Timestamp(ctx context.Context) (uint64, error) {
	var state struct {
		rpcResponse
		BlockchainState struct {
			Peak *blockRecord `json:"peak"`
		} `json:"blockchain_state"`
	}
	if err := c.post(ctx, "get_blockchain_state", struct{}{}, &state); err != nil {
		return 0, err
	}
	peak := state.BlockchainState.Peak
	if peak == nil {
		return 0, fmt.Errorf("get_blockchain_state: no peak")
	} else if peak.Timestamp != nil {
		return *peak.Timestamp, nil
	}

	for height := peak.Height; height > 0 && peak.Height-height < maxTimestampSearch; {
		height--
		var resp struct {
			rpcResponse
			BlockRecord *blockRecord `json:"block_record"`
		}
		if err := c.post(ctx, "get_block_record_by_height", map[string]any{"height": height}, &resp); err != nil {
			return 0, err
		} else if resp.BlockRecord != nil && resp.BlockRecord.Timestamp != nil {
			return *resp.BlockRecord.Timestamp, nil
		}
	}
	return 0, fmt.Errorf("no transaction block within %d blocks of peak %d", maxTimestampSearch, peak.Height)
}
