package audit

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

var (
	mu     sync.Mutex
	logger = zerolog.New(os.Stdout)
)

// SetWriter redirects audit output; used by tests.
func SetWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w)
}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry for a ledger mutation, enriched with the
// request context.
func LogEvent(ctx context.Context, event string, fields map[string]string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	mu.Lock()
	l := logger
	mu.Unlock()

	e := l.Log().
		Str("ts", time.Now().UTC().Format(time.RFC3339Nano)).
		Str("type", "audit").
		Str("event", event)
	if rid := requestIDFromContext(ctx); rid != "" {
		e = e.Str("request_id", rid)
	}
	copyFields := make(map[string]string, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	e.Interface("fields", copyFields).Send()
	return nil
}
