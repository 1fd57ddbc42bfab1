package wallet

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.streamcat.tech/core/types"
)

// DefaultSageURL is the address of the Sage RPC server when enabled in the
// wallet's settings.
const DefaultSageURL = "https://localhost:9257"

// derivationPageSize is the number of derivations requested at a time when
// searching for an address.
const derivationPageSize = 500

// maxDerivations bounds the search for an address among derived keys.
const maxDerivations = 10000

// ErrUnknownAddress is returned when an address is not controlled by the
// wallet.
var ErrUnknownAddress = errors.New("address not found in wallet")

// A ResponseError is returned when the Sage RPC responds with a non-2xx
// status.
type ResponseError struct {
	Endpoint string
	Status   int
	Body     string
}

// Error implements error.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Sage is a client for the Sage wallet RPC. Sage authenticates clients by
// their TLS certificate, so requests are made with the wallet's own
// certificate pair.
type Sage struct {
	baseURL string
	client  *http.Client
}

// NewSage returns a client for the Sage RPC at baseURL, authenticating with
// the certificate and key in the given files.
func NewSage(baseURL, certFile, keyFile string) (*Sage, error) {
	keypair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet certificate: %w", err)
	}
	return NewSageWithTLS(baseURL, &tls.Config{
		Certificates: []tls.Certificate{keypair},
		// the RPC server presents a self-signed certificate
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}), nil
}

// NewSageFromDir returns a client for the Sage RPC at baseURL, using the
// wallet.crt and wallet.key files in dir.
func NewSageFromDir(baseURL, dir string) (*Sage, error) {
	return NewSage(baseURL, filepath.Join(dir, "wallet.crt"), filepath.Join(dir, "wallet.key"))
}

// NewSageWithTLS returns a client for the Sage RPC at baseURL using the given
// TLS configuration.
func NewSageWithTLS(baseURL string, cfg *tls.Config) *Sage {
	return &Sage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: &http.Transport{TLSClientConfig: cfg},
		},
	}
}

func (s *Sage) post(ctx context.Context, endpoint string, req, resp any) error {
	js, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: failed to encode request: %w", endpoint, err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+endpoint, bytes.NewReader(js))
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	hresp, err := s.client.Do(hreq)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer hresp.Body.Close()
	log.Tracef("POST %s: %s", endpoint, hresp.Status)

	body, err := io.ReadAll(io.LimitReader(hresp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", endpoint, err)
	} else if hresp.StatusCode < 200 || hresp.StatusCode >= 300 {
		return &ResponseError{
			Endpoint: endpoint,
			Status:   hresp.StatusCode,
			Body:     strings.TrimSpace(string(body)),
		}
	} else if err := json.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", endpoint, err)
	}
	return nil
}

// SendCAT implements Sender.
func (s *Sage) SendCAT(ctx context.Context, req SendCAT) (resp SendCATResponse, err error) {
	log.Debugf("Sending %d of %s to %s (fee %d)", req.Amount, req.AssetID, req.Address, req.Fee)
	err = s.post(ctx, "send_cat", req, &resp)
	return
}

// Derivations returns up to limit of the wallet's keys, starting at offset.
func (s *Sage) Derivations(ctx context.Context, hardened bool, offset, limit uint32) ([]Derivation, error) {
	req := struct {
		Hardened bool   `json:"hardened"`
		Offset   uint32 `json:"offset"`
		Limit    uint32 `json:"limit"`
	}{hardened, offset, limit}
	var resp struct {
		Derivations []Derivation `json:"derivations"`
	}
	err := s.post(ctx, "get_derivations", req, &resp)
	return resp.Derivations, err
}

// PublicKey implements Signer.
func (s *Sage) PublicKey(ctx context.Context, address string) (string, error) {
	for _, hardened := range []bool{false, true} {
		for offset := uint32(0); offset < maxDerivations; offset += derivationPageSize {
			ds, err := s.Derivations(ctx, hardened, offset, derivationPageSize)
			if err != nil {
				return "", err
			}
			for _, d := range ds {
				if d.Address == address {
					return d.PublicKey, nil
				}
			}
			if len(ds) < derivationPageSize {
				break
			}
		}
	}
	return "", fmt.Errorf("%s: %w", address, ErrUnknownAddress)
}

// SignCoinSpends implements Signer.
func (s *Sage) SignCoinSpends(ctx context.Context, spends []types.CoinSpend, submit bool) (SpendBundle, error) {
	req := struct {
		CoinSpends []types.CoinSpend `json:"coin_spends"`
		AutoSubmit bool              `json:"auto_submit"`
		Partial    bool              `json:"partial"`
	}{spends, submit, false}
	var resp struct {
		SpendBundle SpendBundle `json:"spend_bundle"`
	}
	if err := s.post(ctx, "sign_coin_spends", req, &resp); err != nil {
		return SpendBundle{}, err
	}
	return resp.SpendBundle, nil
}
