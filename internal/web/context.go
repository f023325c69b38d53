package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/hdlcheck/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for run history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
