package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const checkTimeout = 2 * time.Second

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Skills    []string  `json:"skills,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// Service handles health checks
type Service struct {
	startTime time.Time
	version   string
	skills    []string
	checkers  map[string]Checker
	log       *zap.Logger
	mu        sync.RWMutex
}

// Config holds health service configuration
type Config struct {
	Version string
	Skills  []string
}

func NewService(config *Config, log *zap.Logger) *Service {
	return &Service{
		startTime: time.Now(),
		version:   config.Version,
		skills:    config.Skills,
		checkers:  make(map[string]Checker),
		log:       log,
	}
}

// RegisterChecker registers a custom health checker
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Info("Registered health checker", zap.String("name", name))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).String(),
		Skills:    s.skills,
		Timestamp: time.Now(),
	}
}

// Ready runs every checker concurrently. Only an unhealthy check makes the
// instance not ready; degraded checks are reported but still serve.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			result := checker(checkCtx)
			result.Name = name

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	allReady := true

	for _, result := range results {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			allReady = false
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     allReady,
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// PingChecker reports the result of ping. A failing dependency is reported
// as failStatus, so optional dependencies can degrade instead of fail.
func PingChecker(ping func() error, failStatus Status, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		result := CheckResult{Timestamp: start}

		errCh := make(chan error, 1)
		go func() { errCh <- ping() }()

		var err error
		select {
		case err = <-errCh:
		case <-ctx.Done():
			err = ctx.Err()
		}
		result.Duration = time.Since(start)

		if err != nil {
			result.Status = failStatus
			result.Message = fmt.Sprintf("ping failed: %v", err)
			log.Warn("Health check failed", zap.Error(err))
			return result
		}

		result.Status = StatusHealthy
		result.Message = "connection ok"
		return result
	}
}

// BreakerChecker reports an open breaker as degraded: the skill still answers,
// with the apology, until the breaker lets requests through again.
func BreakerChecker(state func() gobreaker.State) Checker {
	return func(ctx context.Context) CheckResult {
		st := state()
		result := CheckResult{
			Status:    StatusHealthy,
			Message:   st.String(),
			Timestamp: time.Now(),
		}
		if st != gobreaker.StateClosed {
			result.Status = StatusDegraded
		}
		return result
	}
}
