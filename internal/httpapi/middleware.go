package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type correlationIDKey struct{}

// CorrelationIDMiddleware extracts the caller-supplied x-ms-correlation-id
// header (generating one when absent), attaches it to the access logger and
// the request context, and echoes it back on the response.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("x-ms-correlation-id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("x-ms-correlation-id", correlationID)

		log := hlog.FromRequest(r)
		log.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("correlation_id", correlationID)
		})

		ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFromContext returns the correlation id attached by
// CorrelationIDMiddleware, or the empty string if none was set.
func CorrelationIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey{}).(string)
	return v
}

// extractBearerToken implements the gateway's bearer-scheme parsing: the
// Authorization header must start with "bearer" (case-insensitive),
// followed by a space and a non-empty token after trimming.
func extractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 {
		return "", false
	}
	scheme := auth[:6]
	if !equalFoldASCII(scheme, "bearer") || auth[6] != ' ' {
		return "", false
	}
	token := trimSpaceASCII(auth[7:])
	if token == "" {
		return "", false
	}
	return token, true
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func trimSpaceASCII(s string) string {
	start := 0
	for start < len(s) && s[start] == ' ' {
		start++
	}
	end := len(s)
	for end > start && s[end-1] == ' ' {
		end--
	}
	return s[start:end]
}

// requireBearerAuth checks the Authorization header and, when an allowlist
// is configured, membership in it. It writes the 401/2001 response itself
// on failure and returns false.
func requireBearerAuth(w http.ResponseWriter, r *http.Request, allowed map[string]struct{}) bool {
	token, ok := extractBearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or malformed bearer token", nil)
		return false
	}
	if len(allowed) > 0 {
		if _, member := allowed[token]; !member {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "token not permitted", nil)
			return false
		}
	}
	return true
}

// requireAPIVersion implements step 2 of the request handler protocol: a
// missing api-version query parameter rejects with 400/4000; a present but
// different value is logged and allowed through (forward-compatibility).
func requireAPIVersion(w http.ResponseWriter, r *http.Request) bool {
	version := r.URL.Query().Get("api-version")
	if version == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingAPIVersion,
			"missing required api-version query parameter, expected \""+APIVersion+"\"", nil)
		return false
	}
	if version != APIVersion {
		hlog.FromRequest(r).Info().Str("api_version", version).Msg("api-version mismatch, proceeding")
	}
	return true
}
