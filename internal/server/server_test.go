package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eion/tenantgate/internal/auth"
	"github.com/eion/tenantgate/internal/chat"
	"github.com/eion/tenantgate/internal/health"
	"github.com/eion/tenantgate/internal/knowledge"
	"github.com/eion/tenantgate/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingChat struct {
	events []chat.Event
}

func (r *recordingChat) Handle(_ context.Context, ev chat.Event) chat.Response {
	r.events = append(r.events, ev)
	return chat.Response{StatusCode: http.StatusOK, Body: []byte(`{"id":"chatcmpl-1"}`)}
}

// headerResolver trusts X-Test-Tenant so routes can be exercised without real credentials.
type headerResolver struct{}

func (headerResolver) Resolve(_ context.Context, req *auth.Request) (auth.Context, error) {
	tenant := req.Headers.Get("X-Test-Tenant")
	if tenant == "" {
		return auth.Context{}, errors.New("no credentials provided")
	}
	return auth.NewContext(tenant, "user-1", auth.MethodAPIKey)
}

type emptyManager struct {
	listedFor string
}

func (m *emptyManager) CreateKnowledgeSpace(context.Context, string, *knowledge.CreateKnowledgeSpaceRequest) (*knowledge.KnowledgeSpace, error) {
	return nil, errors.New("not implemented")
}

func (m *emptyManager) ListKnowledgeSpaces(_ context.Context, tenantID string) ([]*knowledge.KnowledgeSpace, error) {
	m.listedFor = tenantID
	return nil, nil
}

func (m *emptyManager) GetKnowledgeSpace(context.Context, string, string) (*knowledge.KnowledgeSpace, error) {
	return nil, errors.New("not implemented")
}

func (m *emptyManager) DeleteKnowledgeSpace(context.Context, string, string) error {
	return errors.New("not implemented")
}

type fixture struct {
	router  *gin.Engine
	chat    *recordingChat
	manager *emptyManager
}

func newFixture(t *testing.T, opts Options, checks ...health.Checker) *fixture {
	t.Helper()
	f := &fixture{chat: &recordingChat{}, manager: &emptyManager{}}

	hm := health.NewManager(zap.NewNop())
	for _, c := range checks {
		hm.AddChecker(c)
	}

	f.router = NewRouter(opts, Dependencies{
		Chat:      f.chat,
		Resolver:  headerResolver{},
		Knowledge: knowledge.NewHandlers(f.manager, logging.NewNop()),
		Health:    hm,
		Logger:    zap.NewNop(),
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestChatCompletionsForwardsEvent(t *testing.T) {
	f := newFixture(t, Options{MaxRequestSize: 1024})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"ks-1"}`))
	req.Header.Set("Authorization", "Bearer token-1")
	req.Header.Set(RequestIDHeader, "req-123")
	req.Header.Set(AuthorizerTenantHeader, "spoofed")
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"chatcmpl-1"}`, w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	require.Len(t, f.chat.events, 1)
	ev := f.chat.events[0]
	assert.Equal(t, "req-123", ev.RequestID)
	assert.Equal(t, "/v1/chat/completions", ev.Path)
	assert.Equal(t, http.MethodPost, ev.Method)
	assert.Equal(t, "Bearer token-1", ev.Headers.Get("authorization"))
	assert.Equal(t, `{"model":"ks-1"}`, string(ev.Body))
	assert.Nil(t, ev.Authorizer, "authorizer headers are ignored unless trusted")
}

func TestChatCompletionsTrustedAuthorizer(t *testing.T) {
	f := newFixture(t, Options{TrustUpstreamAuthorizer: true})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set(AuthorizerTenantHeader, "tenant-a")
	req.Header.Set(AuthorizerUserHeader, "user-a")
	f.do(req)

	require.Len(t, f.chat.events, 1)
	require.NotNil(t, f.chat.events[0].Authorizer)
	assert.Equal(t, "tenant-a", f.chat.events[0].Authorizer.TenantID)
	assert.Equal(t, "user-a", f.chat.events[0].Authorizer.UserID)
}

func TestRequestIDGenerated(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`)))

	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	require.Len(t, f.chat.events, 1)
	assert.Equal(t, id, f.chat.events[0].RequestID)
}

func TestBodyTooLarge(t *testing.T) {
	f := newFixture(t, Options{MaxRequestSize: 8})

	w := f.do(httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"too-long"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, f.chat.events)
}

func TestCORSHeaders(t *testing.T) {
	t.Run("all origins", func(t *testing.T) {
		f := newFixture(t, Options{AllowedOrigins: []string{"*"}})
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
		req.Header.Set("Origin", "https://app.example.com")

		w := f.do(req)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("listed origin", func(t *testing.T) {
		f := newFixture(t, Options{AllowedOrigins: []string{"https://app.example.com"}})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://app.example.com")

		w := f.do(req)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestKnowledgeRoutesRequireAuth(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/knowledge-spaces", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/v1/knowledge-spaces", nil)
	req.Header.Set("X-Test-Tenant", "tenant-a")
	w = f.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tenant-a", f.manager.listedFor)
}

func TestHealthEndpoint(t *testing.T) {
	up := health.NewPingChecker("docstore", true, func(context.Context) error { return nil })
	f := newFixture(t, Options{}, up)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down := health.NewPingChecker("apikeys", true, func(context.Context) error { return errors.New("dial tcp: refused") })
	f = newFixture(t, Options{}, up, down)

	w = f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Healthy)
	assert.Equal(t, "unhealthy", report.Components["apikeys"].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
