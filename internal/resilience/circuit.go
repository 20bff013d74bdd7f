package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var nopLogger = zerolog.Nop()

// ErrOpenCircuit is returned when the breaker refuses a request outright.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker's position in its lifecycle.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker trips open once the rolling failure ratio crosses a threshold,
// cools off, then probes the dependency through a half-open window.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failCount int
	okCount   int
	minReqs   int
	ratio     float64
	openedAt  time.Time
	openFor   time.Duration
	target    string
	logger    *zerolog.Logger
}

// NewBreaker builds a closed breaker. minRequests is the sample size
// before the ratio is evaluated at all.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if failureRatio > 1 {
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		state:   Closed,
		minReqs: minRequests,
		ratio:   failureRatio,
		openFor: openFor,
	}
}

// WithTarget names the downstream dependency for metric labels and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.gaugeLocked()
	return b
}

// WithLogger sets the logger used for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

// Allow reports whether a request may proceed. An open breaker lets one
// request through after the cool-off and shifts to half-open to sample
// the dependency.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) >= b.openFor {
		b.transitionLocked(ctx, HalfOpen)
		return true
	}
	return false
}

// Report feeds one request outcome into the state machine.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.okCount++
	} else {
		b.failCount++
	}

	total := b.failCount + b.okCount
	if total < b.minReqs {
		return
	}
	if float64(b.failCount)/float64(total) >= b.ratio {
		b.transitionLocked(ctx, Open)
	} else if total > b.minReqs*2 {
		// halve the window so old outcomes age out
		b.okCount = int(math.Ceil(float64(b.okCount) * 0.5))
		b.failCount = int(math.Ceil(float64(b.failCount) * 0.5))
	}
}

// Backoff computes exponential backoff for the given attempt, with
// jitterPct as a +/- fraction of the computed delay.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.gaugeLocked()
		return
	}
	b.state = next
	switch next {
	case Open:
		b.openedAt = time.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.failCount = 0
	b.okCount = 0
	b.gaugeLocked()
	b.logTransition(ctx, prev, next)
}

func (b *Breaker) gaugeLocked() {
	if BreakerState == nil {
		return
	}
	BreakerState.WithLabelValues(b.label()).Set(gaugeValue(b.state))
}

func (b *Breaker) logTransition(ctx context.Context, from, to State) {
	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	evt := b.loggerFor(ctx).Info().
		Str("target", label).
		Str("from_state", from.String()).
		Str("to_state", to.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if t := strings.TrimSpace(b.target); t != "" {
		return t
	}
	return "default"
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil {
		logger := ctxLogger.With().Logger()
		return &logger
	}
	if b.logger == nil {
		return &nopLogger
	}
	return b.logger
}

func gaugeValue(state State) float64 {
	switch state {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}
