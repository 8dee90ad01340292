package hfhub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// hostGate rate-limits and circuit-breaks outbound requests to a single
// Hub host. A consecutive run of failures opens the breaker for a cool-down
// window; callers get CircuitOpenError back immediately instead of piling
// more requests onto a host that is already failing.
type hostGate struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var (
	hostGates   = map[string]*hostGate{}
	hostGatesMu sync.Mutex
)

// defaultBreakerSettings trips after 3 consecutive failures and keeps the
// circuit open for 60 seconds before allowing a single probe request.
func defaultBreakerSettings(host string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "hfhub:" + host,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

func gateForHost(host string) *hostGate {
	hostGatesMu.Lock()
	defer hostGatesMu.Unlock()

	g, ok := hostGates[host]
	if !ok {
		g = &hostGate{
			// a steady 5 req/s with a small burst is generous for Hub HEAD/
			// GET traffic and keeps us well under any reasonable per-IP quota.
			limiter: rate.NewLimiter(rate.Limit(5), 10),
			breaker: gobreaker.NewCircuitBreaker(defaultBreakerSettings(host)),
		}
		hostGates[host] = g
	}
	return g
}

// resetHostGates clears all per-host breaker/limiter state. Exposed for
// tests; production code never needs to call it.
func resetHostGates() {
	hostGatesMu.Lock()
	defer hostGatesMu.Unlock()
	hostGates = map[string]*hostGate{}
}

// blackoutUntil, keyed by host, holds the time before which requests should
// not be attempted at all following a 429 with a Retry-After header.
var (
	blackoutUntil   = map[string]time.Time{}
	blackoutUntilMu sync.Mutex
)

func setBlackout(host string, until time.Time) {
	blackoutUntilMu.Lock()
	defer blackoutUntilMu.Unlock()
	blackoutUntil[host] = until
}

func inBlackout(host string) (time.Duration, bool) {
	blackoutUntilMu.Lock()
	defer blackoutUntilMu.Unlock()
	until, ok := blackoutUntil[host]
	if !ok {
		return 0, false
	}
	remaining := time.Until(until)
	if remaining <= 0 {
		delete(blackoutUntil, host)
		return 0, false
	}
	return remaining, true
}

// serverError marks a 5xx response as a breaker failure without discarding
// the response that produced it.
type serverError struct{ statusCode int }

func (e *serverError) Error() string {
	return http.StatusText(e.statusCode)
}

// guardedDo performs req through the per-host rate limiter and circuit
// breaker. On an HTTP 429 response it records a blackout window (the
// Retry-After header if present, else a 60s floor) so subsequent calls to
// this host fail fast without burning a breaker failure slot.
func guardedDo(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if host == "" {
		host = req.Host
	}

	if remaining, blacked := inBlackout(host); blacked {
		return nil, NewRateLimitError(nil, remaining)
	}

	gate := gateForHost(host)
	if err := gate.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gate.breaker.Execute(func() (interface{}, error) {
		resp, doErr := client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if resp.StatusCode >= 500 {
			// treated as a breaker failure so repeated 5xx trips it the same
			// way connection errors do, but the response is still handed
			// back to the caller (via the wrapping type) to classify.
			return resp, &serverError{resp.StatusCode}
		}
		return resp, nil
	})
	if se, ok := err.(*serverError); ok {
		_ = se
		err = nil // the response itself carries the status; let caller decide
	}

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, NewCircuitOpenError(host)
	}
	if err != nil {
		return nil, err
	}

	resp := result.(*http.Response)
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp)
		if retryAfter <= 0 {
			retryAfter = 60 * time.Second
		}
		setBlackout(host, time.Now().Add(retryAfter))
	}

	return resp, nil
}
