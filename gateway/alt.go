package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pokt-network/bridge-core/logging"
)

// ErrAltSigningUnsupported is returned by submit operations of the built-in
// alt-chain gateway. Reads go straight to the chain's RPC, but transaction
// signing needs wallet material this process does not hold; deployments that
// bridge out of the alt chain plug in their own AltChainGateway.
var ErrAltSigningUnsupported = errors.New("alt-chain transaction signing requires an external signer")

const altRequestTimeout = 10 * time.Second

// SolanaGateway is a read-only AltChainGateway backed by the Solana JSON-RPC
// API. The token mint is fixed at construction.
type SolanaGateway struct {
	rpcURL    string
	tokenMint string
	client    *http.Client
	logger    logging.Logger
}

func NewSolanaGateway(rpcURL, tokenMint string, logger logging.Logger) *SolanaGateway {
	return &SolanaGateway{
		rpcURL:    rpcURL,
		tokenMint: tokenMint,
		client:    &http.Client{Timeout: altRequestTimeout},
		logger:    logger.WithField("component", "solana_gateway"),
	}
}

// ReadTokenBalance sums the raw balances of the owner's token accounts for
// the configured mint.
func (g *SolanaGateway) ReadTokenBalance(ctx context.Context, owner string) (*big.Int, error) {
	var res struct {
		Result struct {
			Value []struct {
				Account struct {
					Data struct {
						Parsed struct {
							Info struct {
								TokenAmount struct {
									Amount string `json:"amount"`
								} `json:"tokenAmount"`
							} `json:"info"`
						} `json:"parsed"`
					} `json:"data"`
				} `json:"account"`
			} `json:"value"`
		} `json:"result"`
	}
	params := []interface{}{
		owner,
		map[string]string{"mint": g.tokenMint},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := g.call(ctx, "getTokenAccountsByOwner", params, &res); err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, acc := range res.Result.Value {
		amount, ok := new(big.Int).SetString(acc.Account.Data.Parsed.Info.TokenAmount.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("can't parse token amount %q", acc.Account.Data.Parsed.Info.TokenAmount.Amount)
		}
		total.Add(total, amount)
	}
	return total, nil
}

// DeriveTokenAccount decodes the recipient's token account address into the
// 32-byte form the token bridge contract expects. The address must be the
// token account itself, not the wallet that owns it.
func (g *SolanaGateway) DeriveTokenAccount(owner string) ([32]byte, error) {
	var out [32]byte
	decoded, err := base58Decode(owner)
	if err != nil {
		return out, fmt.Errorf("can't decode alt-chain address: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("alt-chain address decodes to %d bytes, want 32", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func (g *SolanaGateway) SubmitBurn(ctx context.Context, amount *big.Int, owner string, evmRecipient common.Address) (string, error) {
	return "", ErrAltSigningUnsupported
}

func (g *SolanaGateway) SubmitClaim(ctx context.Context, attestation []byte, recipient string) (string, error) {
	return "", ErrAltSigningUnsupported
}

func (g *SolanaGateway) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("can't encode rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("can't build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("can't query alt-chain rpc: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alt-chain rpc returned %d", resp.StatusCode)
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("can't decode rpc response: %w", err)
	}
	return nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Index = func() [256]int8 {
	var index [256]int8
	for i := range index {
		index[i] = -1
	}
	for i, c := range base58Alphabet {
		index[c] = int8(i)
	}
	return index
}()

func base58Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty string")
	}
	result := big.NewInt(0)
	radix := big.NewInt(58)
	for _, c := range []byte(s) {
		digit := base58Index[c]
		if digit < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", c)
		}
		result.Mul(result, radix)
		result.Add(result, big.NewInt(int64(digit)))
	}
	decoded := result.Bytes()
	// Leading '1' characters encode leading zero bytes.
	for i := 0; i < len(s) && s[i] == '1'; i++ {
		decoded = append([]byte{0}, decoded...)
	}
	return decoded, nil
}
