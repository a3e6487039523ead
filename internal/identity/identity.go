// Package identity validates the caller-supplied identifiers that key an evening.
//
// There is no authentication: the user id is whatever the client sends. The
// only guarantee is that ids are short and made of URL-safe characters.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

// ErrInvalidID is returned for empty or malformed identifiers.
var ErrInvalidID = errors.New("invalid identifier")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Validate trims id and checks it against the identifier pattern.
// field names the offending parameter in the returned error.
func Validate(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidID, field)
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %s must match %s", ErrInvalidID, field, idPattern.String())
	}
	return id, nil
}

// WithEvening stores the evening key on ctx for downstream logging.
func WithEvening(ctx context.Context, sessionID, userID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the evening session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}
