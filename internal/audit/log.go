package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/obs"
)

type requestIDKey struct{}

const redacted = "[redacted]"

// Field names whose values never reach the audit log.
var sensitiveFields = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"authorization": {},
}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// LogEvent writes one JSON audit line. The acting identity, when the context
// carries one, is recorded as user_id, user_email and user_role.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  event,
		"fields": scrub(fields),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		entry["user_id"] = identity.ID
		entry["user_email"] = identity.Email
		entry["user_role"] = string(identity.Role)
		if identity.FacultyID != nil {
			entry["user_faculty_id"] = *identity.FacultyID
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

// scrub copies fields, masking secrets.
func scrub(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, secret := sensitiveFields[strings.ToLower(k)]; secret {
			out[k] = redacted
			continue
		}
		out[k] = v
	}
	return out
}
