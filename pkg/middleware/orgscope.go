package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// OrgHeader is the request header that scopes every API call to an organization.
const OrgHeader = "X-Organization-ID"

type contextKeyType string

const orgIDKey contextKeyType = "organization_id"

// OrgScope middleware requires a valid X-Organization-ID header on every
// request and injects the organization ID into the request context. All data
// access downstream is scoped to it.
func OrgScope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(OrgHeader)
			if raw == "" {
				writeOrgError(w, http.StatusBadRequest, "missing "+OrgHeader+" header")
				return
			}

			orgID, err := uuid.Parse(raw)
			if err != nil {
				writeOrgError(w, http.StatusBadRequest, "invalid "+OrgHeader+" header")
				return
			}

			ctx := context.WithValue(r.Context(), orgIDKey, orgID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgIDFromContext returns the organization ID set by the OrgScope middleware,
// or empty string when not present.
func OrgIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(orgIDKey).(string); ok {
		return v
	}
	return ""
}

func writeOrgError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    "INVALID_ORGANIZATION",
		"message": message,
	})
}
