package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gridtrader/gridtrader/pkg/market"
	"github.com/gridtrader/gridtrader/pkg/trader"
	"github.com/gridtrader/gridtrader/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	tr := trader.New(market.Participant{ID: "test-agent"}, trader.Options{
		BidPrice: 0.07,
		AskPrice: 0.14,
		Rand:     rand.New(rand.NewSource(1)),
	})
	return New(tr, ":0")
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.setupHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.setupHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		AgentID     string `json:"agentID"`
		BuyTrigger  bool   `json:"buyTrigger"`
		SellTrigger bool   `json:"sellTrigger"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "test-agent", status.AgentID)
	assert.False(t, status.BuyTrigger)
	assert.False(t, status.SellTrigger)
}

func TestPriceTable(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.setupHandler())
	defer ts.Close()

	for _, side := range []string{"bid", "ask"} {
		t.Run(side, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/pricetable?side=" + side)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var weights []types.SlotWeight
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&weights))
			require.Len(t, weights, types.MinutesPerDay)
			for _, w := range weights {
				assert.GreaterOrEqual(t, w.Price, 0.07)
				assert.LessOrEqual(t, w.Price, 0.14)
			}
		})
	}

	t.Run("unknown side", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/pricetable?side=mid")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.setupHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
