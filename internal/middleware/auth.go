package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"sos-bknd/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier turns a bearer token into a caller identity.
type TokenVerifier interface {
	Verify(token string) (models.Identity, error)
}

// TokenVersionChecker confirms a token has not been revoked by a version bump.
type TokenVersionChecker interface {
	CheckTokenVersion(ctx context.Context, userID uuid.UUID, tokenVersion int) (bool, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	versions TokenVersionChecker
	logr     *zap.Logger
}

type contextKey string

const ContextIdentityKey contextKey = "identity"

// NewAuthMiddleware creates a reusable JWT auth middleware instance
func NewAuthMiddleware(verifier TokenVerifier, versions TokenVersionChecker, logr *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		versions: versions,
		logr:     logr,
	}
}

// JWTAuth validates the token and attaches the caller identity to the request context
func (m *AuthMiddleware) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "invalid token format")
			return
		}

		identity, err := m.verifier.Verify(tokenString)
		if err != nil {
			m.logr.Warn("token parse error", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		valid, err := m.versions.CheckTokenVersion(r.Context(), identity.UserID, identity.TokenVersion)
		if err != nil {
			m.logr.Error("failed checking token version", zap.Error(err), zap.String("user_id", identity.UserID.String()))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !valid {
			m.logr.Warn("token version invalid", zap.String("user_id", identity.UserID.String()))
			writeError(w, http.StatusUnauthorized, "token revoked or invalid")
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose token role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient role")
		})
	}
}

func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, ContextIdentityKey, identity)
}

// IdentityFrom returns the identity attached by JWTAuth.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(ContextIdentityKey).(models.Identity)
	return identity, ok && identity.Authenticated()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": msg,
	})
}
