// Package middleware provides HTTP middleware for authentication, logging, and request processing.
package middleware

import (
	"context"
	"strings"

	pkglog "InferGate/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// apiKeyContextKey is the context key for storing the caller's API key
	apiKeyContextKey contextKey = "api_key"
)

// Auth returns an HTTP middleware that extracts the caller's API key
// from Authorization or X-API-Key headers, logs it masked, and injects
// it into the context for downstream handlers. Requests without a key
// pass through; enforcement is a deployment concern handled upstream.
func Auth(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			var apiKey string

			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()

					authHeader := httpReq.Header.Get("Authorization")
					if authHeader != "" {
						apiKey = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
					}
					if apiKey == "" {
						apiKey = httpReq.Header.Get("X-API-Key")
					}
				}
			}

			if apiKey != "" {
				masked := pkglog.SanitizeField("api_key", apiKey)
				logger.Debugw("authenticated request",
					"type", "request",
					"api_key", masked)

				ctx = context.WithValue(ctx, apiKeyContextKey, apiKey)
			}

			return handler(ctx, req)
		}
	}
}

// APIKeyFromContext returns the caller's API key, if one was supplied.
func APIKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(string)
	return key, ok
}
