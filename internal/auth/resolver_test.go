package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/logging/logtest"
	"github.com/eion/tenantgate/internal/zerrors"
)

type stubVerifier struct {
	claims Claims
	err    error
	calls  int
}

func (s *stubVerifier) Verify(_ context.Context, token string) (Claims, error) {
	s.calls++
	return s.claims, s.err
}

type stubValidator struct {
	id    Identity
	err   error
	calls int
}

func (s *stubValidator) Validate(_ context.Context, key string) (Identity, error) {
	s.calls++
	return s.id, s.err
}

func newResolver(logger logging.Logger, v TokenVerifier, k KeyValidator) *Resolver {
	return NewResolver(logger,
		AuthorizerStrategy{},
		NewJWTStrategy(v),
		NewAPIKeyStrategy(k, ""),
	)
}

func TestAuthorizerWinsOverValidBearerToken(t *testing.T) {
	verifier := &stubVerifier{claims: Claims{TenantID: "jwt-tenant", Subject: "jwt-user"}}
	r := newResolver(logging.NewNop(), verifier, &stubValidator{err: ErrUnknownAPIKey})

	ac, err := r.Resolve(context.Background(), &Request{
		Headers:    Headers{"Authorization": "Bearer good"},
		Authorizer: &Authorizer{TenantID: "gw-tenant", UserID: "gw-user"},
	})

	require.NoError(t, err)
	assert.Equal(t, Context{TenantID: "gw-tenant", UserID: "gw-user", Method: MethodAPIKey}, ac)
	assert.Equal(t, 0, verifier.calls)
}

func TestIncompleteAuthorizerIsIgnored(t *testing.T) {
	verifier := &stubVerifier{claims: Claims{TenantID: "T", Subject: "U"}}
	r := newResolver(logging.NewNop(), verifier, &stubValidator{err: ErrUnknownAPIKey})

	ac, err := r.Resolve(context.Background(), &Request{
		Headers:    Headers{"authorization": "bearer tok"},
		Authorizer: &Authorizer{TenantID: "gw-tenant"},
	})

	require.NoError(t, err)
	assert.Equal(t, MethodJWT, ac.Method)
	assert.Equal(t, "T", ac.TenantID)
	assert.Equal(t, "U", ac.UserID)
}

func TestBearerPrefixIsStripped(t *testing.T) {
	var seen string
	verifier := verifierFunc(func(token string) (Claims, error) {
		seen = token
		return Claims{TenantID: "T", Subject: "U"}, nil
	})
	s := NewJWTStrategy(verifier)

	_, err := s.TryResolve(context.Background(), &Request{Headers: Headers{"AUTHORIZATION": "Bearer abc.def.ghi"}})
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", seen)

	_, err = s.TryResolve(context.Background(), &Request{Headers: Headers{"Authorization": "abc.def.ghi"}})
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", seen)
}

type verifierFunc func(token string) (Claims, error)

func (f verifierFunc) Verify(_ context.Context, token string) (Claims, error) { return f(token) }

func TestAPIKeyUsedWithoutAuthorizationHeader(t *testing.T) {
	verifier := &stubVerifier{}
	validator := &stubValidator{id: Identity{TenantID: "T", UserID: "U"}}
	r := newResolver(logging.NewNop(), verifier, validator)

	ac, err := r.Resolve(context.Background(), &Request{Headers: Headers{"x-api-key": "k"}})

	require.NoError(t, err)
	assert.Equal(t, MethodAPIKey, ac.Method)
	assert.Equal(t, 0, verifier.calls)
	assert.Equal(t, 1, validator.calls)
}

func TestInvalidJWTFallsThroughToAPIKey(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("expired")}
	validator := &stubValidator{id: Identity{TenantID: "T", UserID: "U"}}
	r := newResolver(logging.NewNop(), verifier, validator)

	ac, err := r.Resolve(context.Background(), &Request{Headers: Headers{
		"Authorization": "Bearer old",
		"X-Api-Key":     "k",
	}})

	require.NoError(t, err)
	assert.Equal(t, MethodAPIKey, ac.Method)
}

func TestJWTWithoutTenantIsRejected(t *testing.T) {
	verifier := &stubVerifier{claims: Claims{Subject: "U"}}
	s := NewJWTStrategy(verifier)

	_, err := s.TryResolve(context.Background(), &Request{Headers: Headers{"Authorization": "Bearer x"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCredentials)
}

func TestUnauthenticatedReturnsNoIdentityAndLogs(t *testing.T) {
	l, sink := logtest.New(t)
	r := newResolver(l, &stubVerifier{}, &stubValidator{err: ErrUnknownAPIKey})

	ac, err := r.Resolve(context.Background(), &Request{
		RequestID: "req-1",
		Path:      "/v1/chat/completions",
		Method:    "POST",
		Headers:   Headers{"X-Api-Key": "nope"},
	})

	require.Error(t, err)
	assert.Equal(t, zerrors.KindAuthentication, zerrors.KindOf(err))
	assert.Equal(t, Context{}, ac)

	rec := sink.Find(t, "unauthorized request")
	require.NotNil(t, rec)
	assert.Equal(t, "warn", rec["level"])
	ctx := logtest.Context(rec)
	assert.Equal(t, "req-1", ctx["requestId"])
	assert.Equal(t, "/v1/chat/completions", ctx["path"])
	assert.Contains(t, ctx["reason"], "invalid api key")
}

func TestNoCredentialsReason(t *testing.T) {
	l, sink := logtest.New(t)
	r := newResolver(l, &stubVerifier{}, &stubValidator{})

	_, err := r.Resolve(context.Background(), &Request{Headers: Headers{}})

	var authErr *zerrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "no credentials provided", authErr.Reason)
	assert.NotNil(t, sink.Find(t, "unauthorized request"))
}

func TestNewContextRefusesPartialIdentity(t *testing.T) {
	_, err := NewContext("", "u", MethodJWT)
	assert.Error(t, err)
	_, err = NewContext("t", "", MethodJWT)
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	ac := Context{TenantID: "t", UserID: "u", Method: MethodJWT}
	got, ok := FromContext(WithContext(context.Background(), ac))
	require.True(t, ok)
	assert.Equal(t, ac, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
