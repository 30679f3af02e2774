package loginguard

import (
	"context"

	internalaudit "github.com/MrEthical07/loginguard/internal/audit"
)

// WithClientIP attaches the caller's IP address to ctx. Audit events emitted
// for an Authenticate call made with ctx carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return internalaudit.WithClientIP(ctx, ip)
}

// WithRequestID attaches a request identifier to ctx. Audit events emitted for
// an Authenticate call made with ctx carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return internalaudit.WithRequestID(ctx, id)
}
