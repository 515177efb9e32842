package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pokt-network/bridge-core/entity"
)

var (
	// ErrNotFound means the indexer has not seen the requested object yet.
	// Callers treat it as "keep polling", not as a failure.
	ErrNotFound = errors.New("not found by attestation indexer")
)

const defaultRequestTimeout = 10 * time.Second

// Client queries the attestation network's public indexer API. The indexer
// exposes three lookup paths with different freshness: by source transaction
// hash (slowest to index), by emitter coordinates (available as soon as the
// message is observed), and the operations view that reports relay delivery.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// TransactionStatus is the indexer's view of a bridge message keyed by its
// source transaction. The signed payload may be absent while coordinates are
// already known.
type TransactionStatus struct {
	EmitterChain   uint16 `json:"emitterChain"`
	EmitterAddress string `json:"emitterAddress"`
	Sequence       string `json:"sequence"`
	Payload        string `json:"payload"`
}

func (s *TransactionStatus) Info() *entity.AttestationInfo {
	return &entity.AttestationInfo{
		EmitterChain:   s.EmitterChain,
		EmitterAddress: s.EmitterAddress,
		Sequence:       s.Sequence,
		Payload:        s.Payload,
	}
}

// TransactionStatus looks the message up by its source transaction hash.
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (*TransactionStatus, error) {
	var res struct {
		Data struct {
			ID             string      `json:"id"`
			EmitterChain   uint16      `json:"emitterChain"`
			EmitterAddress string      `json:"emitterAddress"`
			Sequence       json.Number `json:"sequence"`
			VAA            string      `json:"vaa"`
		} `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/v1/transactions/%s", txHash), &res); err != nil {
		return nil, err
	}
	return &TransactionStatus{
		EmitterChain:   res.Data.EmitterChain,
		EmitterAddress: res.Data.EmitterAddress,
		Sequence:       res.Data.Sequence.String(),
		Payload:        res.Data.VAA,
	}, nil
}

// AttestationByCoordinates looks the signed payload up directly by emitter
// coordinates. Returns ErrNotFound until the signature quorum is reached.
func (c *Client) AttestationByCoordinates(ctx context.Context, chain uint16, emitter, sequence string) (string, error) {
	var res struct {
		Data struct {
			VAA string `json:"vaa"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/vaas/%d/%s/%s", chain, url.PathEscape(emitter), url.PathEscape(sequence))
	if err := c.get(ctx, path, &res); err != nil {
		return "", err
	}
	if res.Data.VAA == "" {
		return "", ErrNotFound
	}
	return res.Data.VAA, nil
}

// Delivery describes a relay-completed operation on the destination chain.
type Delivery struct {
	TargetTxHash string
	Timestamp    time.Time
}

// Operation reports the relay delivery status of the message initiated by
// the given source transaction. Returns ErrNotFound while the relay has not
// landed the destination transaction yet.
func (c *Client) Operation(ctx context.Context, txHash string) (*Delivery, error) {
	var res struct {
		Operations []struct {
			TargetChain struct {
				Transaction struct {
					TxHash string `json:"txHash"`
				} `json:"transaction"`
				Timestamp time.Time `json:"timestamp"`
			} `json:"targetChain"`
		} `json:"operations"`
	}
	query := url.Values{
		"txHash":   {txHash},
		"page":     {"0"},
		"pageSize": {strconv.Itoa(1)},
	}
	if err := c.get(ctx, "/api/v1/operations?"+query.Encode(), &res); err != nil {
		return nil, err
	}
	if len(res.Operations) == 0 || res.Operations[0].TargetChain.Transaction.TxHash == "" {
		return nil, ErrNotFound
	}
	op := res.Operations[0].TargetChain
	return &Delivery{
		TargetTxHash: op.Transaction.TxHash,
		Timestamp:    op.Timestamp,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("can't build indexer request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("can't query attestation indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("attestation indexer returned %d: %s", resp.StatusCode, body)
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("can't decode indexer response: %w", err)
	}
	return nil
}
