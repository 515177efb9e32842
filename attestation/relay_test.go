package attestation_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/attestation"
	"github.com/pokt-network/bridge-core/logging"
)

func TestRelayPollerConfirmsDelivery(t *testing.T) {
	t.Parallel()

	var lookups int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/operations", r.URL.Path)
		require.Equal(t, "0xabc", r.URL.Query().Get("txHash"))
		if atomic.AddInt32(&lookups, 1) < 3 {
			fmt.Fprint(w, `{"operations":[]}`)
			return
		}
		fmt.Fprint(w, `{"operations":[{"targetChain":{"transaction":{"txHash":"0xdst"},"timestamp":"2026-08-30T12:00:00Z"}}]}`)
	}))
	defer server.Close()

	poller := attestation.NewRelayPoller(attestation.NewClient(server.URL), time.Millisecond, time.Minute, logging.New())

	var callbacks int32
	delivery, err := poller.WaitForDelivery(context.Background(), "0xabc", func(d attestation.Delivery) {
		atomic.AddInt32(&callbacks, 1)
	})
	require.NoError(t, err)
	require.Equal(t, "0xdst", delivery.TargetTxHash)
	require.Equal(t, 2026, delivery.Timestamp.Year())
	require.EqualValues(t, 1, atomic.LoadInt32(&callbacks))
}

func TestRelayPollerTimesOut(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"operations":[]}`)
	}))
	defer server.Close()

	poller := attestation.NewRelayPoller(attestation.NewClient(server.URL), 5*time.Millisecond, 30*time.Millisecond, logging.New())

	_, err := poller.WaitForDelivery(context.Background(), "0xabc", nil)
	require.ErrorIs(t, err, attestation.ErrDeliveryTimeout)
}
