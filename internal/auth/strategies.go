package auth

import (
	"context"
	"fmt"
	"strings"
)

// AuthorizerStrategy trusts the identity attached by an upstream gateway.
type AuthorizerStrategy struct{}

func (AuthorizerStrategy) Name() string { return "authorizer" }

func (AuthorizerStrategy) TryResolve(_ context.Context, req *Request) (Context, error) {
	a := req.Authorizer
	if a == nil || a.TenantID == "" || a.UserID == "" {
		return Context{}, ErrNoCredentials
	}
	return NewContext(a.TenantID, a.UserID, MethodAPIKey)
}

// Claims is the verified identity carried by a token.
type Claims struct {
	TenantID string
	Subject  string
}

// TokenVerifier checks a bearer token's signature, expiry and issuer.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// JWTStrategy authenticates the Authorization header.
type JWTStrategy struct {
	verifier TokenVerifier
}

func NewJWTStrategy(verifier TokenVerifier) *JWTStrategy {
	return &JWTStrategy{verifier: verifier}
}

func (s *JWTStrategy) Name() string { return "jwt" }

func (s *JWTStrategy) TryResolve(ctx context.Context, req *Request) (Context, error) {
	header := strings.TrimSpace(req.Headers.Get("Authorization"))
	if header == "" {
		return Context{}, ErrNoCredentials
	}

	token := header
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		token = strings.TrimSpace(header[len("Bearer "):])
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return Context{}, fmt.Errorf("invalid bearer token: %w", err)
	}

	ac, err := NewContext(claims.TenantID, claims.Subject, MethodJWT)
	if err != nil {
		return Context{}, fmt.Errorf("invalid bearer token: %w", err)
	}
	return ac, nil
}

// Identity is what an API key maps to.
type Identity struct {
	TenantID string
	UserID   string
}

// KeyValidator looks up an API key.
type KeyValidator interface {
	Validate(ctx context.Context, key string) (Identity, error)
}

// DefaultAPIKeyHeader carries the API key when no other header is configured.
const DefaultAPIKeyHeader = "X-Api-Key"

// APIKeyStrategy authenticates an API key header.
type APIKeyStrategy struct {
	validator KeyValidator
	header    string
}

func NewAPIKeyStrategy(validator KeyValidator, header string) *APIKeyStrategy {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyStrategy{validator: validator, header: header}
}

func (s *APIKeyStrategy) Name() string { return "apikey" }

func (s *APIKeyStrategy) TryResolve(ctx context.Context, req *Request) (Context, error) {
	key := strings.TrimSpace(req.Headers.Get(s.header))
	if key == "" {
		return Context{}, ErrNoCredentials
	}

	id, err := s.validator.Validate(ctx, key)
	if err != nil {
		return Context{}, fmt.Errorf("invalid api key: %w", err)
	}

	ac, err := NewContext(id.TenantID, id.UserID, MethodAPIKey)
	if err != nil {
		return Context{}, fmt.Errorf("invalid api key: %w", err)
	}
	return ac, nil
}
