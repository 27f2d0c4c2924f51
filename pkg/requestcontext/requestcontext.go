// Package requestcontext carries per-request values (request id, client
// metadata, authenticated identity) between middleware, handlers and services.
package requestcontext

import (
	"context"
	"time"

	id "voxid/pkg/domain"
)

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyClientIP
	keyUserAgent
	keyDeviceName
	keyIdentityID
	keyTokenID
	keyTime
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID returns the request id or "" when none was set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}

// WithClientMetadata stores the resolved client IP and raw User-Agent header.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(keyClientIP).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(keyUserAgent).(string)
	return v
}

func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyDeviceName, name)
}

// DeviceName returns the human readable device label derived from the User-Agent.
func DeviceName(ctx context.Context) string {
	v, _ := ctx.Value(keyDeviceName).(string)
	return v
}

func WithIdentityID(ctx context.Context, identityID id.IdentityID) context.Context {
	return context.WithValue(ctx, keyIdentityID, identityID)
}

// IdentityID returns the authenticated identity or the nil id.
func IdentityID(ctx context.Context) id.IdentityID {
	v, _ := ctx.Value(keyIdentityID).(id.IdentityID)
	return v
}

func WithTokenID(ctx context.Context, tokenID id.TokenID) context.Context {
	return context.WithValue(ctx, keyTokenID, tokenID)
}

func TokenID(ctx context.Context) id.TokenID {
	v, _ := ctx.Value(keyTokenID).(id.TokenID)
	return v
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyTime, t)
}

// Now returns the request-scoped time, or time.Now() outside an HTTP request
// (workers, CLI, tests that skip the middleware chain).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyTime).(time.Time); ok {
		return t
	}
	return time.Now()
}
