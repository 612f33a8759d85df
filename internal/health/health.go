// Package health checks the external services the gateway depends on.
package health

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Checker checks one dependency
type Checker interface {
	HealthCheck(ctx context.Context) error
	IsCritical() bool // Critical services block startup and fail /health if unhealthy
	Name() string
}

// Manager runs health checks for all registered dependencies
type Manager struct {
	checkers []Checker
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates a new health manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		checkers: make([]Checker, 0),
		logger:   logger,
	}
}

// AddChecker adds a health checker to the manager
func (h *Manager) AddChecker(checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, checker)
}

// StartupHealthCheck performs critical health checks that must pass for startup
func (h *Manager) StartupHealthCheck(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var criticalFailures []error

	for _, checker := range h.checkers {
		err := checker.HealthCheck(ctx)
		switch {
		case err == nil:
			h.logger.Info("Service health check passed",
				zap.String("service", checker.Name()),
				zap.Bool("critical", checker.IsCritical()))
		case checker.IsCritical():
			criticalFailures = append(criticalFailures, fmt.Errorf("%s: %w", checker.Name(), err))
			h.logger.Error("Critical service health check failed",
				zap.String("service", checker.Name()),
				zap.Error(err))
		default:
			h.logger.Warn("Non-critical service health check failed",
				zap.String("service", checker.Name()),
				zap.Error(err))
		}
	}

	if len(criticalFailures) > 0 {
		return fmt.Errorf("critical services failed health check: %v", criticalFailures)
	}

	h.logger.Info("All critical services healthy", zap.Int("total_checks", len(h.checkers)))
	return nil
}

// ComponentStatus is the result of one check
type ComponentStatus struct {
	Status   string `json:"status"`
	Critical bool   `json:"critical"`
	Error    string `json:"error,omitempty"`
}

// Report is the runtime health of all components. Healthy is false when any critical check fails.
type Report struct {
	Healthy    bool                       `json:"healthy"`
	Components map[string]ComponentStatus `json:"components"`
}

// RuntimeHealthCheck performs health checks during runtime
func (h *Manager) RuntimeHealthCheck(ctx context.Context) Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := Report{Healthy: true, Components: make(map[string]ComponentStatus, len(h.checkers))}
	for _, checker := range h.checkers {
		status := ComponentStatus{Status: "healthy", Critical: checker.IsCritical()}
		if err := checker.HealthCheck(ctx); err != nil {
			status.Status = "unhealthy"
			status.Error = err.Error()
			if checker.IsCritical() {
				report.Healthy = false
			}
		}
		report.Components[checker.Name()] = status
	}

	return report
}

// PingChecker adapts any Ping-style function into a Checker
type PingChecker struct {
	name     string
	critical bool
	ping     func(ctx context.Context) error
}

// NewPingChecker creates a checker calling ping
func NewPingChecker(name string, critical bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, critical: critical, ping: ping}
}

func (p *PingChecker) HealthCheck(ctx context.Context) error {
	if p.ping == nil {
		return fmt.Errorf("%s is not configured", p.name)
	}
	return p.ping(ctx)
}

func (p *PingChecker) IsCritical() bool {
	return p.critical
}

func (p *PingChecker) Name() string {
	return p.name
}
