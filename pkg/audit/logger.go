package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/badge/pkg/contextkeys"
	"github.com/platinummonkey/badge/pkg/httputil"
)

// Logger is the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}

// NewEvent builds an event carrying the request context of r
func NewEvent(r *http.Request, eventType EventType, status EventStatus, trustProxy bool) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
	if r != nil {
		event.IPAddress = httputil.ClientIP(r, trustProxy)
		event.UserAgent = r.UserAgent()
		event.RequestID = contextkeys.GetRequestID(r.Context())
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	return event
}

// LogrusLogger writes audit events as structured log lines
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates an audit logger on top of logger
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogrusLogger{logger: logger}
}

// Log writes event at info level, failures at warn
func (l *LogrusLogger) Log(_ context.Context, event *Event) error {
	entry := l.logger.WithFields(logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
		"subject":    event.Subject,
		"email":      event.Email,
		"ip_address": event.IPAddress,
		"request_id": event.RequestID,
		"path":       event.Path,
		"reason":     event.Reason,
	})
	if event.Status == EventStatusSuccess {
		entry.Info("audit")
	} else {
		entry.Warn("audit")
	}
	return nil
}

// Close is a no-op
func (l *LogrusLogger) Close() error {
	return nil
}

// NoOpLogger discards events
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *Event) error { return nil }
func (NoOpLogger) Close() error { return nil }
