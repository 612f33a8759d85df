// Package auth resolves the tenant and user behind a request.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Method names how an identity was established.
type Method string

const (
	MethodAPIKey Method = "apikey"
	MethodJWT    Method = "jwt"
	// MethodNone is reported in logs and metrics when no identity was resolved.
	MethodNone Method = "none"
)

// Context is the identity of one request. TenantID and UserID are never empty.
type Context struct {
	TenantID string
	UserID   string
	Method   Method
}

// NewContext builds an identity, refusing partial ones.
func NewContext(tenantID, userID string, method Method) (Context, error) {
	if tenantID == "" {
		return Context{}, errors.New("tenant id is empty")
	}
	if userID == "" {
		return Context{}, errors.New("user id is empty")
	}
	return Context{TenantID: tenantID, UserID: userID, Method: method}, nil
}

type contextKey struct{}

// WithContext stores the identity on ctx.
func WithContext(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the identity stored by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

// Headers is a request header map with case-insensitive lookup.
type Headers map[string]string

// Get returns the value of the first header whose name matches case-insensitively.
func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Authorizer is the identity a trusted upstream gateway attached to the request.
type Authorizer struct {
	TenantID string
	UserID   string
}

// Request is what the resolver sees of an inbound request.
type Request struct {
	RequestID  string
	Path       string
	Method     string
	Headers    Headers
	Authorizer *Authorizer
}
