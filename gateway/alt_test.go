package gateway

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/logging"
)

func TestBase58Decode(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name     string
		Input    string
		Expected []byte
		Error    bool
	}{
		{Name: "single zero byte", Input: "1", Expected: []byte{0}},
		{Name: "hello world", Input: "StV1DL6CwTryKyV", Expected: []byte("hello world")},
		{Name: "leading zeros preserved", Input: "11StV1DL6CwTryKyV", Expected: append([]byte{0, 0}, []byte("hello world")...)},
		{Name: "empty string", Input: "", Error: true},
		{Name: "invalid character", Input: "0OIl", Error: true},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			decoded, err := base58Decode(test.Input)
			if test.Error {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.Expected, decoded)
		})
	}
}

func TestDeriveTokenAccount(t *testing.T) {
	t.Parallel()

	gw := NewSolanaGateway("http://localhost", "mint", logging.New())

	// The system program address decodes to 32 zero bytes.
	account, err := gw.DeriveTokenAccount("11111111111111111111111111111111")
	require.NoError(t, err)
	require.Equal(t, [32]byte{}, account)

	_, err = gw.DeriveTokenAccount("abc")
	require.Error(t, err)

	_, err = gw.DeriveTokenAccount("I am not base58")
	require.Error(t, err)
}

func TestReadTokenBalance(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "getTokenAccountsByOwner", req.Method)

		_, err := w.Write([]byte(`{
			"result": {
				"value": [
					{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "2500000"}}}}}},
					{"account": {"data": {"parsed": {"info": {"tokenAmount": {"amount": "500000"}}}}}}
				]
			}
		}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	gw := NewSolanaGateway(server.URL, "mint", logging.New())
	balance, err := gw.ReadTokenBalance(context.Background(), "owner")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3000000), balance)
}

func TestSubmitUnsupported(t *testing.T) {
	t.Parallel()

	gw := NewSolanaGateway("http://localhost", "mint", logging.New())

	_, err := gw.SubmitBurn(context.Background(), big.NewInt(1), "owner", common.Address{})
	require.ErrorIs(t, err, ErrAltSigningUnsupported)

	_, err = gw.SubmitClaim(context.Background(), []byte{1}, "recipient")
	require.ErrorIs(t, err, ErrAltSigningUnsupported)
}
