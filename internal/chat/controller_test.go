package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eion/tenantgate/internal/auth"
	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/logging/logtest"
	"github.com/eion/tenantgate/internal/zerrors"
)

// mockAuth resolves to a fixed identity or fails
type mockAuth struct {
	ac  auth.Context
	err error
}

func (m *mockAuth) Resolve(context.Context, *auth.Request) (auth.Context, error) {
	return m.ac, m.err
}

// mockUseCase records its input and returns the configured outcome
type mockUseCase struct {
	result *Result
	err    error
	panic  any
	calls  int
	input  Input
}

func (m *mockUseCase) Execute(_ context.Context, in Input) (*Result, error) {
	m.calls++
	m.input = in
	if m.panic != nil {
		panic(m.panic)
	}
	return m.result, m.err
}

var tenantUser = auth.Context{TenantID: "T", UserID: "U", Method: auth.MethodAPIKey}

const validBody = `{"model":"agent-1","messages":[{"role":"user","content":"hi"}]}`

func decodeError(t *testing.T, resp Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	return body["error"]
}

func TestHandleUnauthorized(t *testing.T) {
	uc := &mockUseCase{}
	c := NewController(&mockAuth{err: zerrors.NewAuthenticationError("no credentials provided")}, uc, logging.NewNop())

	resp := c.Handle(context.Background(), Event{Body: []byte(validBody)})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", decodeError(t, resp))
	assert.Equal(t, 0, uc.calls)
}

func TestHandleValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`, "model is required"},
		{"no messages", `{"model":"a","messages":[]}`, "messages must contain at least one message"},
		{"messages absent", `{"model":"a"}`, "messages must contain at least one message"},
		{"bad role", `{"model":"a","messages":[{"role":"robot","content":"hi"}]}`, "messages[0].role must be one of system user assistant"},
		{"not json", `{"model":`, "request body must be a valid JSON object"},
		{"empty", ``, "request body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockUseCase{}
			c := NewController(&mockAuth{ac: tenantUser}, uc, logging.NewNop())

			resp := c.Handle(context.Background(), Event{Body: []byte(tt.body)})

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, decodeError(t, resp))
			assert.Equal(t, 0, uc.calls)
		})
	}
}

func TestHandleUseCaseErrorIsOpaque(t *testing.T) {
	l, sink := logtest.New(t)
	uc := &mockUseCase{err: errors.New("db password=hunter2 leaked in message")}
	c := NewController(&mockAuth{ac: tenantUser}, uc, l)

	resp := c.Handle(context.Background(), Event{RequestID: "req-9", Path: "/v1/chat/completions", Method: "POST", Body: []byte(validBody)})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Internal server error"}`, string(resp.Body))
	assert.NotContains(t, string(resp.Body), "hunter2")

	stderr := sink.Stderr(t)
	require.Len(t, stderr, 1)
	rec := stderr[0]
	assert.Equal(t, "request failed", rec["message"])
	ctx := logtest.Context(rec)
	assert.Equal(t, "req-9", ctx["requestId"])
	assert.Equal(t, "T", ctx["tenantId"])
	assert.Equal(t, "U", ctx["userId"])
	assert.Equal(t, "apikey", ctx["authMethod"])
	assert.Equal(t, "POST", ctx["method"])
	assert.Contains(t, ctx, "durationMs")
}

func TestHandleUseCaseValidationErrorIsCallerFacing(t *testing.T) {
	uc := &mockUseCase{err: zerrors.NewValidationError("model", "unknown agent agent-1")}
	c := NewController(&mockAuth{ac: tenantUser}, uc, logging.NewNop())

	resp := c.Handle(context.Background(), Event{Body: []byte(validBody)})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown agent agent-1", decodeError(t, resp))
}

func TestHandleUseCaseValidationErrorHidesWrapping(t *testing.T) {
	cause := zerrors.NewValidationError("model", "unknown model agent-1")
	uc := &mockUseCase{err: fmt.Errorf("lookup in table knowledge_spaces failed: %w", cause)}
	c := NewController(&mockAuth{ac: tenantUser}, uc, logging.NewNop())

	resp := c.Handle(context.Background(), Event{Body: []byte(validBody)})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown model agent-1", decodeError(t, resp))
	assert.NotContains(t, string(resp.Body), "knowledge_spaces")
}

func TestHandleRecoversPanics(t *testing.T) {
	l, sink := logtest.New(t)
	uc := &mockUseCase{panic: "boom"}
	c := NewController(&mockAuth{ac: tenantUser}, uc, l)

	resp := c.Handle(context.Background(), Event{Body: []byte(validBody)})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decodeError(t, resp))
	assert.NotNil(t, sink.Find(t, "request failed"))
}

func TestHandlePassesIdentityToUseCase(t *testing.T) {
	uc := &mockUseCase{result: &Result{ID: "conv-1"}}
	c := NewController(&mockAuth{ac: tenantUser}, uc, logging.NewNop())

	body := `{"model":"agent-1","conversation_id":"conv-0","messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hi"}]}`
	resp := c.Handle(context.Background(), Event{RequestID: "req-1", Body: []byte(body)})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "T", uc.input.TenantID)
	assert.Equal(t, "U", uc.input.UserID)
	assert.Equal(t, "agent-1", uc.input.AgentID)
	assert.Equal(t, "req-1", uc.input.RequestID)
	assert.Equal(t, "conv-0", uc.input.ConversationID)
	assert.Len(t, uc.input.Messages, 2)
}

func TestRequestReceivedLoggedBeforeUseCase(t *testing.T) {
	l, sink := logtest.New(t)
	uc := &mockUseCase{panic: "crash"}
	c := NewController(&mockAuth{ac: tenantUser}, uc, l)

	body := `{"model":"agent-1","messages":[{"role":"system","content":"x"},{"role":"user","content":"hi"}]}`
	c.Handle(context.Background(), Event{RequestID: "req-2", Body: []byte(body)})

	rec := sink.Find(t, "request received")
	require.NotNil(t, rec)
	ctx := logtest.Context(rec)
	assert.Equal(t, "req-2", ctx["requestId"])
	assert.Equal(t, "agent-1", ctx["agentId"])
	assert.Equal(t, float64(2), ctx["messageCount"])
	assert.Equal(t, true, ctx["hasSystemPrompt"])
	assert.Equal(t, "apikey", ctx["authMethod"])
}

func TestPlainLoggerPathWhenNotStructured(t *testing.T) {
	l, sink := logtest.New(t)
	plain := struct{ logging.Logger }{l}
	uc := &mockUseCase{err: errors.New("down")}
	c := NewController(&mockAuth{ac: tenantUser}, uc, plain)

	c.Handle(context.Background(), Event{RequestID: "req-3", Body: []byte(validBody)})

	rec := sink.Find(t, "request failed")
	require.NotNil(t, rec)
	ctx := logtest.Context(rec)
	assert.Nil(t, ctx["event"], "plain path has no event tag")
	assert.Equal(t, "req-3", ctx["requestId"])
	assert.NotNil(t, sink.Find(t, "request received"))
}

func TestEndToEndWithJWT(t *testing.T) {
	const secret = "e2e-secret"
	verifier, err := auth.NewJWTVerifier(secret, "https://issuer.test", "")
	require.NoError(t, err)

	l, sink := logtest.New(t)
	resolver := auth.NewResolver(l, auth.AuthorizerStrategy{}, auth.NewJWTStrategy(verifier))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":              "U",
		"iss":              "https://issuer.test",
		"exp":              time.Now().Add(time.Hour).Unix(),
		"custom:tenant_id": "T",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	uc := &mockUseCase{result: &Result{
		ID: "conv-1",
		Choices: []Choice{{
			Message: ResultMessage{Role: RoleAssistant, Content: "hello", CitedURLs: []string{"https://x"}},
		}},
	}}
	c := NewController(resolver, uc, l)

	resp := c.Handle(context.Background(), Event{
		RequestID: "req-e2e",
		Path:      "/v1/chat/completions",
		Method:    "POST",
		Headers:   auth.Headers{"Authorization": "Bearer " + token},
		Body:      []byte(`{"model":"agent-1","messages":[{"role":"user","content":"hi"}]}`),
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result Result
	require.NoError(t, json.Unmarshal(resp.Body, &result))
	assert.Equal(t, "conv-1", result.ID)
	assert.Equal(t, "hello", result.Choices[0].Message.Content)

	rec := sink.Find(t, "request completed")
	require.NotNil(t, rec)
	ctx := logtest.Context(rec)
	assert.Equal(t, "T", ctx["tenantId"])
	assert.Equal(t, "U", ctx["userId"])
	assert.Equal(t, float64(1), ctx["citedUrlCount"])
	assert.Equal(t, "conv-1", ctx["conversationId"])
	assert.Equal(t, "jwt", ctx["authMethod"])
	assert.Empty(t, sink.Stderr(t))
}
