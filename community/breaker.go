package community

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/keepselvesreal/xai-community-go/internal/metrics"
)

// breakerTransport wraps the HTTP transport with a circuit breaker so a
// failing backend stops costing a full timeout per call. Responses with
// 5xx status count as failures; everything the server answered
// deliberately (4xx included) counts as success.
type breakerTransport struct {
	next http.RoundTripper
	cb   circuitbreaker.CircuitBreaker[any]
}

var _ http.RoundTripper = (*breakerTransport)(nil)

// newBreakerTransport creates the transport wrapper with these settings:
// - WithFailureRateThreshold: 60% failure rate, min 5 requests, 10s rolling window
// - WithDelay: 30s before transitioning from open to half-open
// - WithSuccessThreshold: 1 successful request in half-open to close
func newBreakerTransport(next http.RoundTripper) *breakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}

	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "api",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)

			metrics.CircuitBreakerStateChanges.WithLabelValues(e.NewState.String()).Inc()
			metrics.CircuitBreakerState.Set(stateToFloat(e.NewState))
		}).
		Build()

	return &breakerTransport{next: next, cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cb.TryAcquirePermit() {
		return nil, fmt.Errorf("api circuit breaker open: %w", circuitbreaker.ErrOpen)
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.cb.RecordError(err)
		return nil, err
	}

	if resp.StatusCode >= 500 {
		t.cb.RecordFailure()
	} else {
		t.cb.RecordSuccess()
	}
	return resp, nil
}

// State returns the current breaker state (for testing/monitoring).
func (t *breakerTransport) State() circuitbreaker.State {
	return t.cb.State()
}
