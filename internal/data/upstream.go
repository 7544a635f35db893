package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/contactkeval/premium-backtest/internal/logger"
)

// UpstreamConfig tunes the HTTP client shared by remote providers.
type UpstreamConfig struct {
	Timeout    time.Duration // whole-request timeout, default 30s
	RatePerSec float64       // client-side request rate, default 5/s
	Burst      int           // limiter burst, default 5
}

func (c UpstreamConfig) withDefaults() UpstreamConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}

// upstream is a rate limited, circuit broken GETter. It never retries:
// a failed call fails the backtest that made it. Cookies set by a
// response are kept in a jar and sent on later requests.
type upstream struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	headers map[string]string
}

type upstreamResponse struct {
	status int
	body   []byte
}

// upstreamStatusError is a non-200 reply. It matches ErrUpstream.
type upstreamStatusError struct {
	name   string
	status int
	msg    string
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d: %s", ErrUpstream, e.name, e.status, e.msg)
}

func (e *upstreamStatusError) Unwrap() error { return ErrUpstream }

// upstreamStatus returns the HTTP status carried by err, or 0.
func upstreamStatus(err error) int {
	var se *upstreamStatusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func newUpstream(name string, cfg UpstreamConfig, headers map[string]string) *upstream {
	cfg = cfg.withDefaults()

	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warnf("upstream %s breaker %s -> %s", name, from, to)
	}

	// cookiejar.New only fails on a bad PublicSuffixList
	jar, _ := cookiejar.New(nil)

	return &upstream{
		name: name,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		headers: headers,
	}
}

// get fetches reqURL and returns the response whatever its status.
// Transport failures and 5xx responses count against the breaker and are
// returned as errors; 4xx are not.
func (u *upstream) get(ctx context.Context, reqURL, accept string) (upstreamResponse, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return upstreamResponse{}, fmt.Errorf("%s rate limiter: %w", u.name, err)
	}

	logger.Tracef("%s GET %s", u.name, reqURL)

	res, err := u.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		for k, v := range u.headers {
			req.Header.Set(k, v)
		}

		resp, err := u.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))
		}
		return upstreamResponse{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return upstreamResponse{}, err
		}
		return upstreamResponse{}, fmt.Errorf("%w: %s: %v", ErrUpstream, u.name, err)
	}
	return res.(upstreamResponse), nil
}

// getJSON fetches reqURL and decodes a 200 response into out. Any other
// status becomes an *upstreamStatusError.
func (u *upstream) getJSON(ctx context.Context, reqURL string, out any) error {
	r, err := u.get(ctx, reqURL, "application/json")
	if err != nil {
		return err
	}

	if r.status != http.StatusOK {
		var dbg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(r.body, &dbg)
		msg := dbg.Message
		if msg == "" {
			msg = snippet(r.body)
		}
		return &upstreamStatusError{name: u.name, status: r.status, msg: msg}
	}

	if len(r.body) == 0 {
		return fmt.Errorf("%w: %s: empty response body", ErrUpstream, u.name)
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUpstream, u.name, err)
	}
	return nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
