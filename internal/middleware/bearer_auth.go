package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront-graphql/internal/auth"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/observability"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// BearerAuthMiddleware resolves the request viewer from an Authorization
// bearer token. Requests without a token pass through anonymously; a token
// that fails verification is rejected with 401.
func BearerAuthMiddleware(verifier TokenVerifier, metrics *observability.AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			endpoint := r.URL.Path
			tokenString := bearerToken(header)
			if tokenString == "" {
				metrics.RecordUnauthorizedAttempt(ctx, endpoint)
				writeUnauthorized(w, "malformed authorization header")
				return
			}

			claims, err := verifier.Verify(tokenString)
			var viewer auth.Viewer
			if err == nil {
				viewer, err = claims.Viewer()
			}
			if err != nil {
				reason := tokenErrorReason(err)
				metrics.RecordTokenValidationError(ctx, reason)
				metrics.RecordUnauthorizedAttempt(ctx, endpoint)
				logging.FromContext(ctx).Warn("access token rejected",
					slog.String("reason", reason),
					slog.String("error", err.Error()),
					slog.String("endpoint", endpoint),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid token")
				return
			}

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.Int64("auth.user_id", viewer.UserID),
					attribute.Bool("auth.staff", viewer.IsStaff),
				)
			}
			reqLogger := logging.FromContext(ctx).WithFields(slog.Int64("user_id", viewer.UserID))
			ctx = logging.WithLogger(auth.WithViewer(ctx, viewer), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenErrorReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not_valid_yet"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

func bearerToken(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
