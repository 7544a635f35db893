package data

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMassive(t *testing.T, h http.HandlerFunc) (*massiveDataProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p := NewMassiveDataProvider("test-key", srv.URL, UpstreamConfig{Timeout: 5 * time.Second, RatePerSec: 1000, Burst: 100})
	p.now = func() time.Time { return time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC) }
	return p, srv
}

func TestMassiveProvider_GetBars_HTTPError(t *testing.T) {
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error"}`))
	})

	_, err := p.GetBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestMassiveProvider_GetBars_ClientErrorMessage(t *testing.T) {
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"status":"NOT_AUTHORIZED","message":"plan does not include this data"}`))
	})

	_, err := p.GetBars(context.Background(), "AAPL", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "plan does not include this data")
}

func TestMassiveProvider_GetBars(t *testing.T) {
	var gotAuth, gotPath string
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{
			"ticker": "AAPL",
			"results": [
				{"t": 1735689600000, "o":1,"h":2,"l":0.5,"c":1.5,"v":100},
				{"t": 1735776000000, "o":1.5,"h":2,"l":1,"c":1.75,"v":200}
			],
			"status": "OK"
		}`))
	})

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	bars, err := p.GetBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/v2/aggs/ticker/AAPL/range/1/day/2025-01-01/2025-01-05", gotPath)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 1.75, bars[1].Close)
}

func TestMassiveProvider_GetExpirations_Pagination(t *testing.T) {
	calls := 0
	var srvURL string
	p, srv := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			assert.Equal(t, "2025-01-02", r.URL.Query().Get("expiration_date.gte"))
			w.Write([]byte(`{
				"results": [
					{"expiration_date": "2025-01-17", "contract_type": "call"},
					{"expiration_date": "2025-01-17", "contract_type": "put"},
					{"expiration_date": "bogus"}
				],
				"next_url": "` + srvURL + `/page2"
			}`))
			return
		}
		w.Write([]byte(`{
			"results": [
				{"expiration_date": "2025-01-17"},
				{"expiration_date": "2025-02-21"}
			]
		}`))
	})
	srvURL = srv.URL

	exps, err := p.GetExpirations(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"2025-01-17", "2025-02-21"}, exps)
}

func TestMassiveProvider_GetChain(t *testing.T) {
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/snapshot/options/AAPL", r.URL.Path)
		assert.Equal(t, "2025-02-21", r.URL.Query().Get("expiration_date"))
		w.Write([]byte(`{
			"results": [
				{"details": {"contract_type":"call","strike_price":110,"ticker":"O:AAPL250221C00110000"},
				 "last_quote": {"bid": 1.1, "ask": 1.3}, "implied_volatility": 0.22},
				{"details": {"contract_type":"call","strike_price":105,"ticker":"O:AAPL250221C00105000"},
				 "last_quote": {"bid": 2.5}, "implied_volatility": 0.24},
				{"details": {"contract_type":"put","strike_price":95,"ticker":"O:AAPL250221P00095000"},
				 "last_quote": {}}
			],
			"status": "OK"
		}`))
	})

	chain, err := p.GetChain(context.Background(), "AAPL", "2025-02-21")
	require.NoError(t, err)

	require.Len(t, chain.Calls, 2)
	assert.Equal(t, 105.0, chain.Calls[0].Strike)
	assert.True(t, Missing(chain.Calls[0].Ask))
	assert.Equal(t, 0.22, chain.Calls[1].ImpliedVol)

	require.Len(t, chain.Puts, 1)
	assert.True(t, Missing(chain.Puts[0].Bid))
	assert.True(t, Missing(chain.Puts[0].ImpliedVol))
}

func TestMassiveProvider_ContextCanceled(t *testing.T) {
	p, _ := newTestMassive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.GetExpirations(ctx, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
