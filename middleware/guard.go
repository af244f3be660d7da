package middleware

import (
	"context"
	"net/http"
	"strings"

	gdprAuth "github.com/MrEthical07/gdprAuth"
)

type accessResultContextKey struct{}

// AccessValidator is satisfied by *gdprAuth.Engine.
type AccessValidator interface {
	ValidateAccess(accessToken string) (*gdprAuth.AccessResult, error)
}

// AccessResultFromContext returns the token validated by RequireAccess.
func AccessResultFromContext(ctx context.Context) (*gdprAuth.AccessResult, bool) {
	res, ok := ctx.Value(accessResultContextKey{}).(*gdprAuth.AccessResult)
	return res, ok
}

// PseudoIDFromContext returns the pseudonymous user id of the caller.
func PseudoIDFromContext(ctx context.Context) (string, bool) {
	res, ok := AccessResultFromContext(ctx)
	if !ok || res.PseudoID == "" {
		return "", false
	}
	return res.PseudoID, true
}

// RequireAccess rejects requests without a valid "Authorization: Bearer"
// access token with 401.
func RequireAccess(v AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				unauthorized(w)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			res, err := v.ValidateAccess(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), accessResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="gdprauth"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
