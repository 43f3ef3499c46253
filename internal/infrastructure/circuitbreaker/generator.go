package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/alexa-skills/internal/observability/telemetry"
	"github.com/seu-repo/alexa-skills/internal/ports"
)

// ErrUnavailable is returned without calling upstream while the breaker is
// open or probing.
var ErrUnavailable = errors.New("text generator temporarily unavailable")

// Settings configures the breaker
type Settings struct {
	Name string

	// MaxRequests allowed through while half-open
	MaxRequests uint32

	// Interval after which closed-state counts are cleared
	Interval time.Duration

	// Timeout spent open before probing again
	Timeout time.Duration

	// MinRequests and FailureRatio decide when the breaker trips
	MinRequests  uint32
	FailureRatio float64
}

// DefaultSettings returns default circuit breaker settings
func DefaultSettings(name string) Settings {
	return Settings{
		Name:         name,
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// Generator wraps a ports.TextGenerator with a circuit breaker so a failing
// upstream is answered immediately instead of burning the request deadline.
type Generator struct {
	next ports.TextGenerator
	cb   *gobreaker.CircuitBreaker
	log  *zap.Logger
}

func NewGenerator(next ports.TextGenerator, settings Settings, log *zap.Logger) *Generator {
	if settings.MinRequests == 0 {
		settings.MinRequests = 1
	}
	if settings.FailureRatio <= 0 {
		settings.FailureRatio = 0.6
	}

	telemetry.BreakerState.WithLabelValues(settings.Name).Set(float64(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			telemetry.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A caller hanging up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Generator{next: next, cb: cb, log: log}
}

func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %s %v", ErrUnavailable, g.cb.Name(), err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (g *Generator) Name() string {
	return g.cb.Name()
}

func (g *Generator) State() gobreaker.State {
	return g.cb.State()
}
