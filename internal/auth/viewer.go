// Package auth issues and verifies staff access tokens and exposes the
// authenticated viewer to resolvers.
package auth

import (
	"context"
	"errors"

	"storefront-graphql/internal/observability"
)

// ErrPermissionDenied is returned by guards when the viewer may not proceed.
var ErrPermissionDenied = errors.New("You do not have permission to perform this action.")

// Viewer is the authenticated caller of a request.
type Viewer struct {
	UserID  int64
	Email   string
	IsStaff bool
}

type viewerContextKey struct{}

// WithViewer attaches v to ctx.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey{}, v)
}

// ViewerFromContext returns the viewer of an authenticated request.
func ViewerFromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerContextKey{}).(Viewer)
	return v, ok
}

// RequireStaff returns a mutation guard that admits staff viewers only.
// metrics may be nil.
func RequireStaff(metrics *observability.AuthMetrics) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if v, ok := ViewerFromContext(ctx); ok && v.IsStaff {
			return nil
		}
		metrics.RecordUnauthorizedAttempt(ctx, "mutation")
		return ErrPermissionDenied
	}
}
