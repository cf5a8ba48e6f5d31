package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers JSON-RPC methods from results. A method listed in
// failures returns an HTTP 503 that many times before answering.
func newRPCServer(t *testing.T, results map[string]string, failures map[string]int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	remaining := make(map[string]*atomic.Int32, len(failures))
	for method, n := range failures {
		counter := new(atomic.Int32)
		counter.Store(int32(n))
		remaining[method] = counter
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		calls.Add(1)
		if counter, ok := remaining[req.Method]; ok && counter.Add(-1) >= 0 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		result, ok := results[req.Method]
		if !ok {
			http.Error(w, "unknown method", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientChainIDAndBlockNumber(t *testing.T) {
	ctx := context.Background()
	srv, _ := newRPCServer(t, map[string]string{
		"eth_chainId":     "0x1",
		"eth_blockNumber": "0x1312d00",
	}, nil)

	client, err := NewClient(ctx, srv.URL, Options{MaxRetries: 1, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	id, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())

	number, err := client.LatestBlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(20000000), number)
}

func TestClientRetriesTransportErrors(t *testing.T) {
	ctx := context.Background()
	srv, calls := newRPCServer(t,
		map[string]string{"eth_chainId": "0x38"},
		map[string]int{"eth_chainId": 2},
	)

	client, err := NewClient(ctx, srv.URL, Options{MaxRetries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	id, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(56), id.Int64())
	assert.Equal(t, int32(3), calls.Load())
}
