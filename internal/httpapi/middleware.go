package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"webshop/internal/authz"
	"webshop/internal/events"
)

const (
	HeaderUserID        = "X-User-Id"
	HeaderUserRole      = "X-User-Role"
	HeaderCorrelationID = "X-Correlation-Id"
)

type ctxKey string

const ctxUserID ctxKey = "user_id"

// Identity attaches the authenticated user id and role supplied by the
// upstream gateway to the request context. The core trusts these values as
// given; authentication itself lives outside this application.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if uid := strings.TrimSpace(r.Header.Get(HeaderUserID)); uid != "" {
			ctx = context.WithValue(ctx, ctxUserID, uid)
		}
		if role := strings.TrimSpace(r.Header.Get(HeaderUserRole)); role != "" {
			ctx = authz.WithRole(ctx, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Correlation seeds event tracing metadata from the request. A correlation id
// supplied by the caller is propagated unchanged so events join the caller's
// trace; otherwise the request id starts a new correlation chain. The request
// id is always the causation.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		corrID := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
		if corrID == "" {
			corrID = reqID
		}
		ctx := events.WithMetadata(r.Context(), events.EnvelopeMetadata{
			CorrelationID: corrID,
			CausationID:   reqID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests that carry no user identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			writeError(w, http.StatusBadRequest, "missing required header: "+HeaderUserID)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}
