// Package completion forwards chat requests to the completion backend, scoped to the agent's
// retrieval namespace.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eion/tenantgate/internal/chat"
	"github.com/eion/tenantgate/internal/knowledge"
	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/zerrors"
)

// NamespaceHeader carries the retrieval partition key to the backend.
const NamespaceHeader = "X-Retrieval-Namespace"

// SpaceFinder looks up a tenant's knowledge space.
type SpaceFinder interface {
	GetKnowledgeSpace(ctx context.Context, tenantID, knowledgeSpaceID string) (*knowledge.KnowledgeSpace, error)
}

// Forwarder implements chat.UseCase over HTTP.
type Forwarder struct {
	spaces     SpaceFinder
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// backendRequest is the body sent to the completion backend
type backendRequest struct {
	Model          string         `json:"model"`
	Namespace      string         `json:"namespace"`
	TenantID       string         `json:"tenant_id"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Messages       []chat.Message `json:"messages"`
}

// NewForwarder creates a forwarder posting to baseURL.
func NewForwarder(spaces SpaceFinder, baseURL string, timeout time.Duration, logger logging.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Forwarder{
		spaces:  spaces,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Execute resolves the agent's namespace and forwards the conversation.
func (f *Forwarder) Execute(ctx context.Context, in chat.Input) (*chat.Result, error) {
	space, err := f.spaces.GetKnowledgeSpace(ctx, in.TenantID, in.AgentID)
	if err != nil {
		if zerrors.KindOf(err) == zerrors.KindNotFound {
			return nil, zerrors.NewValidationErrorWithCause("model", fmt.Sprintf("unknown model %s", in.AgentID), err)
		}
		return nil, err
	}
	ns := space.Namespace().String()

	requestBody, err := json.Marshal(backendRequest{
		Model:          in.AgentID,
		Namespace:      ns,
		TenantID:       in.TenantID,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		Messages:       in.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", in.RequestID)
	req.Header.Set(NamespaceHeader, ns)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion backend error (status %d): %s", resp.StatusCode, truncate(body, 512))
	}

	var result chat.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	f.logSearch(in, ns, result.CitedURLCount(), time.Since(start))
	return &result, nil
}

func (f *Forwarder) logSearch(in chat.Input, ns string, results int, elapsed time.Duration) {
	if sl, ok := f.logger.(logging.StructuredLogger); ok {
		sl.LogRAGSearch(logging.SearchEvent{
			RequestID:   in.RequestID,
			TenantID:    in.TenantID,
			Namespace:   ns,
			ResultCount: results,
			Duration:    elapsed,
		})
		return
	}
	f.logger.Info("retrieval search completed", logging.Fields{
		"requestId":   in.RequestID,
		"tenantId":    in.TenantID,
		"namespace":   ns,
		"resultCount": results,
		"durationMs":  elapsed.Milliseconds(),
	})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
