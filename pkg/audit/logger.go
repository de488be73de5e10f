package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/craftwork-crm/craftwork/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log writes an audit event to the trail
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// Searcher is implemented by loggers that support querying the trail
type Searcher interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
}

// NewNoopLogger returns a logger that discards all events. Used in tests and
// wherever audit wiring is optional.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

type noopLogger struct{}

func (l *noopLogger) Log(ctx context.Context, event *Event) error { return nil }
func (l *noopLogger) Close() error                                { return nil }

// NewEvent creates an event with the timestamp and request context populated.
// The request may be nil for events raised outside an HTTP handler.
func NewEvent(ctx context.Context, r *http.Request, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if actorID := contextkeys.GetUserID(ctx); actorID != 0 {
		event.ActorID = &actorID
	}

	if r != nil {
		event.IPAddress = ClientIP(r)
		event.UserAgent = r.UserAgent()
	}

	return event
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr
	return r.RemoteAddr
}
