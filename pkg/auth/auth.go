package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/memberhub/achievement-service/pkg/apierror"
)

// Mode selects how bearer tokens are verified.
type Mode string

const (
	// ModeClerk verifies Clerk-issued JWTs against the configured JWKS endpoint.
	ModeClerk Mode = "clerk"
	// ModeNoop skips verification and uses the token itself as the member id. Local use only.
	ModeNoop Mode = "noop"
)

// Config selects and parameterises a Verifier.
type Config struct {
	Mode     Mode
	JWKSURL  string
	Audience string
	Issuer   string
}

// AuthenticatedUser is the caller resolved from a request's credentials.
type AuthenticatedUser struct {
	UserID    string
	SessionID string
	ExpiresAt int64
	Token     string
}

// Verifier resolves a credential to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (AuthenticatedUser, error)
}

// HeaderUserID carries the member id on internal calls that have no bearer token. The value
// is still passed through the Verifier, so only ModeNoop accepts a bare id.
const HeaderUserID = "X-User-ID"

var (
	errMissingCredentials = errors.New("missing bearer token")
	errInvalidAuthHeader  = errors.New("authorization header is malformed")
)

type ctxKey struct{}

// Middleware resolves the caller with verifier and stores it on the request context.
// Requests without valid credentials get a 401 error envelope. A nil verifier disables
// authentication.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if verifier == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, err := credentialFromRequest(r)
			if err != nil {
				unauthorized(w, r, err)
				return
			}

			user, err := verifier.Verify(r.Context(), credential)
			if err != nil {
				unauthorized(w, r, fmt.Errorf("invalid credentials: %w", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// credentialFromRequest prefers the Authorization bearer token and falls back to
// HeaderUserID.
func credentialFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", errInvalidAuthHeader
		}
		return token, nil
	}

	if userID := strings.TrimSpace(r.Header.Get(HeaderUserID)); userID != "" {
		return userID, nil
	}
	return "", errMissingCredentials
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(apierror.ErrorResponse{
		Code:      apierror.CodeUnauthorized,
		Message:   err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// WithUser stores user on ctx.
func WithUser(ctx context.Context, user AuthenticatedUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the user stored by Middleware or WithUser.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(ctxKey{}).(AuthenticatedUser)
	return user, ok
}

// NewVerifier builds the Verifier for cfg.Mode.
func NewVerifier(cfg Config) (Verifier, error) {
	switch cfg.Mode {
	case ModeClerk:
		return newClerkVerifier(cfg)
	case ModeNoop:
		return noopVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}
