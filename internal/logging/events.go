package logging

import "time"

// StructuredLogger is an optional capability: loggers that implement it get domain-shaped records
// instead of free-form ones. Callers check for it with a type assertion on Logger.
type StructuredLogger interface {
	Logger
	LogRequest(ev RequestEvent)
	LogResponse(ev ResponseEvent)
	LogErrorWithContext(msg string, err error, ec ErrorContext)
	LogRAGSearch(ev SearchEvent)
	LogUnauthorized(ev UnauthorizedEvent)
}

// RequestEvent is logged once a request is authenticated and validated, before the use case runs.
type RequestEvent struct {
	RequestID       string
	TenantID        string
	UserID          string
	AgentID         string
	MessageCount    int
	HasSystemPrompt bool
	AuthMethod      string
}

// ResponseEvent is logged after the use case returns successfully.
type ResponseEvent struct {
	RequestID      string
	TenantID       string
	UserID         string
	AgentID        string
	ConversationID string
	CitedURLCount  int
	Duration       time.Duration
	AuthMethod     string
}

// ErrorContext carries the request identity attached to an unhandled failure.
type ErrorContext struct {
	RequestID  string
	Path       string
	Method     string
	TenantID   string
	UserID     string
	Duration   time.Duration
	AuthMethod string
}

// Fields flattens the error context for loggers without the structured capability.
func (ec ErrorContext) Fields() Fields {
	return Fields{
		"requestId":  ec.RequestID,
		"path":       ec.Path,
		"method":     ec.Method,
		"tenantId":   ec.TenantID,
		"userId":     ec.UserID,
		"durationMs": ec.Duration.Milliseconds(),
		"authMethod": ec.AuthMethod,
	}
}

// SearchEvent describes a completed retrieval search against one namespace.
type SearchEvent struct {
	RequestID   string
	TenantID    string
	Namespace   string
	ResultCount int
	Duration    time.Duration
}

// UnauthorizedEvent is the audit record for a request that resolved no identity.
type UnauthorizedEvent struct {
	RequestID string
	Path      string
	Method    string
	Reason    string
}

func (l *ZapLogger) LogRequest(ev RequestEvent) {
	l.Info("request received", Fields{
		"event":           "request_received",
		"requestId":       ev.RequestID,
		"tenantId":        ev.TenantID,
		"userId":          ev.UserID,
		"agentId":         ev.AgentID,
		"messageCount":    ev.MessageCount,
		"hasSystemPrompt": ev.HasSystemPrompt,
		"authMethod":      ev.AuthMethod,
	})
}

func (l *ZapLogger) LogResponse(ev ResponseEvent) {
	l.Info("request completed", Fields{
		"event":          "request_completed",
		"requestId":      ev.RequestID,
		"tenantId":       ev.TenantID,
		"userId":         ev.UserID,
		"agentId":        ev.AgentID,
		"conversationId": ev.ConversationID,
		"citedUrlCount":  ev.CitedURLCount,
		"durationMs":     ev.Duration.Milliseconds(),
		"authMethod":     ev.AuthMethod,
	})
}

func (l *ZapLogger) LogErrorWithContext(msg string, err error, ec ErrorContext) {
	fields := ec.Fields()
	fields["event"] = "request_failed"
	l.Error(msg, err, fields)
}

func (l *ZapLogger) LogRAGSearch(ev SearchEvent) {
	l.Info("retrieval search completed", Fields{
		"event":       "rag_search",
		"requestId":   ev.RequestID,
		"tenantId":    ev.TenantID,
		"namespace":   ev.Namespace,
		"resultCount": ev.ResultCount,
		"durationMs":  ev.Duration.Milliseconds(),
	})
}

func (l *ZapLogger) LogUnauthorized(ev UnauthorizedEvent) {
	l.Warn("unauthorized request", Fields{
		"event":     "unauthorized",
		"requestId": ev.RequestID,
		"path":      ev.Path,
		"method":    ev.Method,
		"reason":    ev.Reason,
	})
}
