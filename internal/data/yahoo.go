package data

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/contactkeval/premium-backtest/internal/logger"
)

const (
	defaultYahooBaseURL   = "https://query2.finance.yahoo.com"
	defaultYahooCookieURL = "https://fc.yahoo.com"
)

// yahooDataProvider implements Provider using the public Yahoo Finance
// chart (v8) and options (v7) endpoints. Yahoo only publishes the current
// chain, which is what the backtest uses as its pricing proxy.
//
// The options endpoint wants a session cookie plus a matching crumb query
// parameter. The cookie comes from any response of CookieURL; the crumb
// from /v1/test/getcrumb. Both are fetched lazily and refreshed once when
// Yahoo answers 401.
type yahooDataProvider struct {
	BaseURL   string
	CookieURL string
	http      *upstream

	mu    sync.Mutex
	crumb string
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooQuote struct {
	ContractSymbol    string   `json:"contractSymbol"`
	Strike            *float64 `json:"strike"`
	Bid               *float64 `json:"bid"`
	Ask               *float64 `json:"ask"`
	ImpliedVolatility *float64 `json:"impliedVolatility"`
}

type yahooOptionsResp struct {
	OptionChain struct {
		Result []struct {
			UnderlyingSymbol string  `json:"underlyingSymbol"`
			ExpirationDates  []int64 `json:"expirationDates"`
			Options          []struct {
				ExpirationDate int64        `json:"expirationDate"`
				Calls          []yahooQuote `json:"calls"`
				Puts           []yahooQuote `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"optionChain"`
}

// NewYahooDataProvider constructs a Yahoo Finance provider.
// An empty baseURL selects the public endpoint.
func NewYahooDataProvider(baseURL string, cfg UpstreamConfig) *yahooDataProvider {
	logger.Infof("initializing Yahoo Finance data provider")

	cookieURL := defaultYahooCookieURL
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	} else {
		cookieURL = strings.TrimSuffix(baseURL, "/") + "/"
	}
	return &yahooDataProvider{
		BaseURL:   baseURL,
		CookieURL: cookieURL,
		http: newUpstream("yahoo", cfg, map[string]string{
			"User-Agent": "Mozilla/5.0 (compatible; premium-backtest/1.0)",
		}),
	}
}

// GetBars returns daily bars; sessions without a close are dropped.
func (yahooDataProv *yahooDataProvider) GetBars(
	ctx context.Context,
	underlying string,
	fromDate, toDate time.Time,
) ([]Bar, error) {

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=history",
		yahooDataProv.BaseURL,
		url.PathEscape(underlying),
		fromDate.Unix(),
		toDate.Unix(),
	)

	var body yahooChartResp
	if err := yahooDataProv.http.getJSON(ctx, reqURL, &body); err != nil {
		return nil, fmt.Errorf("yahoo bars %s: %w", underlying, err)
	}
	if e := body.Chart.Error; e != nil {
		return nil, fmt.Errorf("%w: yahoo bars %s: %s: %s", ErrUpstream, underlying, e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	res := body.Chart.Result[0]
	q := res.Indicators.Quote[0]
	out := make([]Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			continue
		}
		out = append(out, Bar{
			Date:  DayOf(time.Unix(ts+res.Meta.GMTOffset, 0).UTC()),
			Open:  deref(at(q.Open, i)),
			High:  deref(at(q.High, i)),
			Low:   deref(at(q.Low, i)),
			Close: *cl,
			Vol:   deref(at(q.Volume, i)),
		})
	}

	logger.Tracef("yahoo bars received: %d records", len(out))
	return out, nil
}

// GetExpirations returns expirations in the order Yahoo lists them.
func (yahooDataProv *yahooDataProvider) GetExpirations(
	ctx context.Context,
	underlying string,
) ([]string, error) {

	body, err := yahooDataProv.options(ctx, underlying, 0)
	if err != nil {
		return nil, err
	}
	if len(body.OptionChain.Result) == 0 {
		return nil, nil
	}

	dates := body.OptionChain.Result[0].ExpirationDates
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, time.Unix(d, 0).UTC().Format(DateLayout))
	}
	return out, nil
}

// GetChain returns calls and puts for one expiration in Yahoo's order (by strike).
func (yahooDataProv *yahooDataProvider) GetChain(
	ctx context.Context,
	underlying string,
	expiration string,
) (*Chain, error) {

	exp, err := ParseDate(expiration)
	if err != nil {
		return nil, fmt.Errorf("yahoo chain %s: bad expiration %q: %w", underlying, expiration, err)
	}

	body, err := yahooDataProv.options(ctx, underlying, exp.Unix())
	if err != nil {
		return nil, err
	}

	chain := &Chain{Expiration: expiration}
	if len(body.OptionChain.Result) == 0 || len(body.OptionChain.Result[0].Options) == 0 {
		return chain, nil
	}

	opt := body.OptionChain.Result[0].Options[0]
	chain.Calls = yahooQuotes(opt.Calls)
	chain.Puts = yahooQuotes(opt.Puts)
	return chain, nil
}

func (yahooDataProv *yahooDataProvider) options(ctx context.Context, underlying string, date int64) (*yahooOptionsResp, error) {
	crumb, err := yahooDataProv.sessionCrumb(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("yahoo options %s: %w", underlying, err)
	}

	var body yahooOptionsResp
	for attempt := 0; ; attempt++ {
		q := url.Values{}
		if date > 0 {
			q.Set("date", strconv.FormatInt(date, 10))
		}
		q.Set("crumb", crumb)
		reqURL := fmt.Sprintf("%s/v7/finance/options/%s?%s", yahooDataProv.BaseURL, url.PathEscape(underlying), q.Encode())

		err = yahooDataProv.http.getJSON(ctx, reqURL, &body)
		if err == nil {
			break
		}
		if attempt > 0 || upstreamStatus(err) != http.StatusUnauthorized {
			return nil, fmt.Errorf("yahoo options %s: %w", underlying, err)
		}

		logger.Debugf("yahoo crumb rejected, refreshing session")
		if crumb, err = yahooDataProv.sessionCrumb(ctx, crumb); err != nil {
			return nil, fmt.Errorf("yahoo options %s: %w", underlying, err)
		}
	}

	if e := body.OptionChain.Error; e != nil {
		return nil, fmt.Errorf("%w: yahoo options %s: %s: %s", ErrUpstream, underlying, e.Code, e.Description)
	}
	return &body, nil
}

// sessionCrumb returns the cached crumb, running the cookie and crumb
// handshake when there is none or when the cached one equals stale.
func (yahooDataProv *yahooDataProvider) sessionCrumb(ctx context.Context, stale string) (string, error) {
	yahooDataProv.mu.Lock()
	defer yahooDataProv.mu.Unlock()

	if yahooDataProv.crumb != "" && yahooDataProv.crumb != stale {
		return yahooDataProv.crumb, nil
	}
	yahooDataProv.crumb = ""

	// fc.yahoo.com answers 404 but still sets the session cookie
	if _, err := yahooDataProv.http.get(ctx, yahooDataProv.CookieURL, "*/*"); err != nil {
		return "", fmt.Errorf("session cookie: %w", err)
	}

	r, err := yahooDataProv.http.get(ctx, yahooDataProv.BaseURL+"/v1/test/getcrumb", "text/plain")
	if err != nil {
		return "", fmt.Errorf("crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(r.body))
	if r.status != http.StatusOK || crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return "", &upstreamStatusError{name: "yahoo crumb", status: r.status, msg: snippet(r.body)}
	}

	yahooDataProv.crumb = crumb
	return crumb, nil
}

func yahooQuotes(in []yahooQuote) []ContractQuote {
	out := make([]ContractQuote, 0, len(in))
	for _, q := range in {
		out = append(out, ContractQuote{
			Symbol:     q.ContractSymbol,
			Strike:     optional(q.Strike),
			Bid:        optional(q.Bid),
			Ask:        optional(q.Ask),
			ImpliedVol: optional(q.ImpliedVolatility),
		})
	}
	return out
}

func at(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
