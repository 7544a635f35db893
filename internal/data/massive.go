package data

// Massive-backed Provider: bars from the aggregates endpoint, expirations from
// the options contract reference, quotes from the option chain snapshot.
// Pagination follows next_url until exhausted.

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/contactkeval/premium-backtest/internal/logger"
)

const defaultMassiveBaseURL = "https://api.massive.com"

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string

	http *upstream
	now  func() time.Time
}

// massiveContract represents a single option contract
// returned by Massive's contracts reference endpoint.
type massiveContract struct {
	ContractType     string  `json:"contract_type"`
	ExpiryDate       string  `json:"expiration_date"`
	StrikePrice      float64 `json:"strike_price"`
	Ticker           string  `json:"ticker"`
	UnderlyingTicker string  `json:"underlying_ticker"`
}

// massiveContractsResp models the paginated response
// returned by Massive's option contracts API.
type massiveContractsResp struct {
	Results   []massiveContract `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

type massiveSnapshotResp struct {
	Results []struct {
		Details struct {
			ContractType   string  `json:"contract_type"`
			ExpirationDate string  `json:"expiration_date"`
			StrikePrice    float64 `json:"strike_price"`
			Ticker         string  `json:"ticker"`
		} `json:"details"`
		LastQuote struct {
			Bid *float64 `json:"bid"`
			Ask *float64 `json:"ask"`
		} `json:"last_quote"`
		ImpliedVolatility *float64 `json:"implied_volatility"`
	} `json:"results"`
	Status  string `json:"status"`
	NextURL string `json:"next_url"`
}

type massiveAggsResp struct {
	Ticker       string `json:"ticker"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		Open      float64 `json:"o"`
		Close     float64 `json:"c"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Volume    float64 `json:"v"`
		Timestamp int64   `json:"t"` // epoch millis
	} `json:"results"`
	Status string `json:"status"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
// An empty baseURL selects the public endpoint.
func NewMassiveDataProvider(apiKey, baseURL string, cfg UpstreamConfig) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	if baseURL == "" {
		baseURL = defaultMassiveBaseURL
	}
	return &massiveDataProvider{
		BaseURL: baseURL,
		http: newUpstream("massive", cfg, map[string]string{
			"Authorization": "Bearer " + apiKey,
			"User-Agent":    "premium-backtest/1.0",
		}),
		now: time.Now,
	}
}

// GetBars retrieves daily bars for the given symbol and date range.
func (massiveDataProv *massiveDataProvider) GetBars(
	ctx context.Context,
	underlying string,
	fromDate, toDate time.Time,
) ([]Bar, error) {

	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		underlying,
		fromDate.Format(DateLayout),
		toDate.Format(DateLayout),
	)

	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=50000",
		massiveDataProv.BaseURL,
		url.PathEscape(underlying),
		fromDate.Format(DateLayout),
		toDate.Format(DateLayout),
	)

	var body massiveAggsResp
	if err := massiveDataProv.http.getJSON(ctx, reqURL, &body); err != nil {
		return nil, fmt.Errorf("massive bars %s: %w", underlying, err)
	}

	logger.Tracef("bars received: %d records", len(body.Results))

	out := make([]Bar, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Bar{
			Date:  DayOf(time.UnixMilli(r.Timestamp).UTC()),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   r.Volume,
		})
	}
	return out, nil
}

// GetExpirations lists unexpired expirations for the underlying, ascending.
func (massiveDataProv *massiveDataProvider) GetExpirations(
	ctx context.Context,
	underlying string,
) ([]string, error) {

	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/reference/options/contracts")
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("underlying_ticker", underlying)
	query.Set("expiration_date.gte", massiveDataProv.now().UTC().Format(DateLayout))
	query.Set("expired", "false")
	query.Set("sort", "expiration_date")
	query.Set("order", "asc")
	query.Set("limit", "1000")
	u.RawQuery = query.Encode()

	seen := map[string]bool{}
	var out []string

	// Handle pagination
	for reqURL := u.String(); reqURL != ""; {
		logger.Debugf("contracts request URL: %s", reqURL)

		var page massiveContractsResp
		if err := massiveDataProv.http.getJSON(ctx, reqURL, &page); err != nil {
			return nil, fmt.Errorf("massive expirations %s: %w", underlying, err)
		}
		for _, c := range page.Results {
			if _, err := ParseDate(c.ExpiryDate); err != nil {
				continue // skip malformed expiry dates
			}
			if !seen[c.ExpiryDate] {
				seen[c.ExpiryDate] = true
				out = append(out, c.ExpiryDate)
			}
		}
		reqURL = page.NextURL
	}

	logger.Debugf("resolved %d unique expiries for %s", len(out), underlying)
	return out, nil
}

// GetChain fetches the option chain snapshot for one expiration.
// Each side is ordered by strike.
func (massiveDataProv *massiveDataProvider) GetChain(
	ctx context.Context,
	underlying string,
	expiration string,
) (*Chain, error) {

	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/snapshot/options/" + url.PathEscape(underlying))
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("expiration_date", expiration)
	query.Set("limit", "250")
	u.RawQuery = query.Encode()

	chain := &Chain{Expiration: expiration}
	for reqURL := u.String(); reqURL != ""; {
		var page massiveSnapshotResp
		if err := massiveDataProv.http.getJSON(ctx, reqURL, &page); err != nil {
			return nil, fmt.Errorf("massive chain %s %s: %w", underlying, expiration, err)
		}
		for _, r := range page.Results {
			q := ContractQuote{
				Symbol:     r.Details.Ticker,
				Strike:     r.Details.StrikePrice,
				Bid:        optional(r.LastQuote.Bid),
				Ask:        optional(r.LastQuote.Ask),
				ImpliedVol: optional(r.ImpliedVolatility),
			}
			if q.Strike <= 0 {
				q.Strike = math.NaN()
			}
			switch r.Details.ContractType {
			case "call":
				chain.Calls = append(chain.Calls, q)
			case "put":
				chain.Puts = append(chain.Puts, q)
			}
		}
		reqURL = page.NextURL
	}

	sortByStrike(chain.Calls)
	sortByStrike(chain.Puts)

	logger.Tracef("chain %s %s: %d calls %d puts", underlying, expiration, len(chain.Calls), len(chain.Puts))
	return chain, nil
}

// sortByStrike orders quotes by strike; quotes without a strike go last.
func sortByStrike(qs []ContractQuote) {
	sort.SliceStable(qs, func(i, j int) bool {
		a, b := qs[i].Strike, qs[j].Strike
		if Missing(b) {
			return !Missing(a)
		}
		if Missing(a) {
			return false
		}
		return a < b
	})
}
