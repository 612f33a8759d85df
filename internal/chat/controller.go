// Package chat authenticates, validates and answers chat completion requests.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eion/tenantgate/internal/auth"
	"github.com/eion/tenantgate/internal/logging"
	"github.com/eion/tenantgate/internal/metrics"
	"github.com/eion/tenantgate/internal/zerrors"
)

// Event is one inbound request, independent of the transport that delivered it.
type Event struct {
	RequestID  string
	Path       string
	Method     string
	Headers    auth.Headers
	Body       []byte
	Authorizer *auth.Authorizer
}

// Response is the transport-neutral reply. Body is JSON.
type Response struct {
	StatusCode int
	Body       []byte
}

// Authenticator resolves the identity behind a request.
type Authenticator interface {
	Resolve(ctx context.Context, req *auth.Request) (auth.Context, error)
}

// Controller runs one chat request end to end and maps the outcome to a status code.
type Controller struct {
	auth     Authenticator
	useCase  UseCase
	logger   logging.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewController creates a new chat controller
func NewController(authenticator Authenticator, useCase UseCase, logger logging.Logger) *Controller {
	return &Controller{
		auth:     authenticator,
		useCase:  useCase,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
}

// requestState is what is known about the request so far, for error logging.
type requestState struct {
	ev    *Event
	start time.Time
	ac    auth.Context
	authd bool
}

func (s *requestState) authMethod() string {
	if !s.authd {
		return string(auth.MethodNone)
	}
	return string(s.ac.Method)
}

// Handle processes ev. It never returns an internal error message to the caller.
func (c *Controller) Handle(ctx context.Context, ev Event) (resp Response) {
	st := &requestState{ev: &ev, start: c.now()}

	defer func() {
		if r := recover(); r != nil {
			resp = c.fail(st, fmt.Errorf("panic: %v", r))
		}
		metrics.RecordRequest(resp.StatusCode, st.authMethod(), c.now().Sub(st.start))
	}()

	ac, err := c.auth.Resolve(ctx, &auth.Request{
		RequestID:  ev.RequestID,
		Path:       ev.Path,
		Method:     ev.Method,
		Headers:    ev.Headers,
		Authorizer: ev.Authorizer,
	})
	if err != nil {
		return errorResponse(http.StatusUnauthorized, "Unauthorized")
	}
	st.ac, st.authd = ac, true

	req, err := parseRequest(c.validate, ev.Body)
	if err != nil {
		c.logger.Warn("request validation failed", logging.Fields{
			"requestId":  ev.RequestID,
			"tenantId":   ac.TenantID,
			"userId":     ac.UserID,
			"reason":     err.Error(),
			"authMethod": string(ac.Method),
		})
		return errorResponse(http.StatusBadRequest, err.Error())
	}

	c.logRequest(&ev, ac, req)

	result, err := c.useCase.Execute(auth.WithContext(ctx, ac), Input{
		RequestID:      ev.RequestID,
		TenantID:       ac.TenantID,
		UserID:         ac.UserID,
		AgentID:        req.Model,
		ConversationID: req.ConversationID,
		Messages:       req.Messages,
	})
	if err != nil {
		if zerrors.KindOf(err) == zerrors.KindValidation {
			c.logger.Warn("use case rejected request", logging.Fields{
				"requestId": ev.RequestID,
				"tenantId":  ac.TenantID,
				"agentId":   req.Model,
				"reason":    err.Error(),
			})
			return errorResponse(http.StatusBadRequest, zerrors.CallerMessage(err))
		}
		return c.fail(st, err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return c.fail(st, fmt.Errorf("failed to encode result: %w", err))
	}

	c.logResponse(&ev, ac, req, result, c.now().Sub(st.start))
	return Response{StatusCode: http.StatusOK, Body: body}
}

func (c *Controller) logRequest(ev *Event, ac auth.Context, req *Request) {
	if sl, ok := c.logger.(logging.StructuredLogger); ok {
		sl.LogRequest(logging.RequestEvent{
			RequestID:       ev.RequestID,
			TenantID:        ac.TenantID,
			UserID:          ac.UserID,
			AgentID:         req.Model,
			MessageCount:    len(req.Messages),
			HasSystemPrompt: req.HasSystemPrompt(),
			AuthMethod:      string(ac.Method),
		})
		return
	}
	c.logger.Info("request received", logging.Fields{
		"requestId":       ev.RequestID,
		"tenantId":        ac.TenantID,
		"userId":          ac.UserID,
		"agentId":         req.Model,
		"messageCount":    len(req.Messages),
		"hasSystemPrompt": req.HasSystemPrompt(),
		"authMethod":      string(ac.Method),
	})
}

func (c *Controller) logResponse(ev *Event, ac auth.Context, req *Request, result *Result, elapsed time.Duration) {
	conversationID := ""
	if result != nil {
		conversationID = result.ID
	}

	if sl, ok := c.logger.(logging.StructuredLogger); ok {
		sl.LogResponse(logging.ResponseEvent{
			RequestID:      ev.RequestID,
			TenantID:       ac.TenantID,
			UserID:         ac.UserID,
			AgentID:        req.Model,
			ConversationID: conversationID,
			CitedURLCount:  result.CitedURLCount(),
			Duration:       elapsed,
			AuthMethod:     string(ac.Method),
		})
		return
	}
	c.logger.Info("request completed", logging.Fields{
		"requestId":      ev.RequestID,
		"tenantId":       ac.TenantID,
		"userId":         ac.UserID,
		"agentId":        req.Model,
		"conversationId": conversationID,
		"citedUrlCount":  result.CitedURLCount(),
		"durationMs":     elapsed.Milliseconds(),
		"authMethod":     string(ac.Method),
	})
}

// fail logs err with everything known about the request and returns the opaque 500.
func (c *Controller) fail(st *requestState, err error) Response {
	ec := logging.ErrorContext{
		RequestID:  st.ev.RequestID,
		Path:       st.ev.Path,
		Method:     st.ev.Method,
		TenantID:   st.ac.TenantID,
		UserID:     st.ac.UserID,
		Duration:   c.now().Sub(st.start),
		AuthMethod: st.authMethod(),
	}

	if sl, ok := c.logger.(logging.StructuredLogger); ok && ec.TenantID != "" {
		sl.LogErrorWithContext("request failed", err, ec)
	} else {
		c.logger.Error("request failed", err, ec.Fields())
	}
	return errorResponse(http.StatusInternalServerError, "Internal server error")
}

func errorResponse(status int, msg string) Response {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return Response{StatusCode: status, Body: body}
}
