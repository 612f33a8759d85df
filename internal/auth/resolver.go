package auth

import (
	"context"
	"errors"

	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/metrics"
	"github.com/eion/tenantgate/internal/zerrors"
)

// ErrNoCredentials is returned by a strategy when the request carries nothing it can check.
var ErrNoCredentials = errors.New("no credentials")

// Strategy is one way of establishing an identity.
type Strategy interface {
	Name() string
	// TryResolve returns ErrNoCredentials when the strategy does not apply, any other error when
	// the credentials it found were rejected.
	TryResolve(ctx context.Context, req *Request) (Context, error)
}

// Resolver tries its strategies in order and stops at the first success.
type Resolver struct {
	strategies []Strategy
	logger     logging.Logger
}

// NewResolver creates a resolver. The order of strategies is the precedence order.
func NewResolver(logger logging.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		logger:     logger,
	}
}

// Resolve returns the caller's identity or an AuthenticationError. The rejection is logged before
// it is returned.
func (r *Resolver) Resolve(ctx context.Context, req *Request) (Context, error) {
	reason := "no credentials provided"
	failedStrategy := ""

	for _, s := range r.strategies {
		ac, err := s.TryResolve(ctx, req)
		if err == nil {
			return ac, nil
		}
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		reason = err.Error()
		failedStrategy = s.Name()
	}

	label := "no_credentials"
	if failedStrategy != "" {
		label = failedStrategy + "_rejected"
	}
	metrics.RecordAuthFailure(label)
	r.logUnauthorized(req, reason)

	return Context{}, zerrors.NewAuthenticationError(reason)
}

func (r *Resolver) logUnauthorized(req *Request, reason string) {
	if sl, ok := r.logger.(logging.StructuredLogger); ok {
		sl.LogUnauthorized(logging.UnauthorizedEvent{
			RequestID: req.RequestID,
			Path:      req.Path,
			Method:    req.Method,
			Reason:    reason,
		})
		return
	}
	r.logger.Warn("unauthorized request", logging.Fields{
		"requestId": req.RequestID,
		"path":      req.Path,
		"method":    req.Method,
		"reason":    reason,
	})
}
