package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/padelops/tournament-engine/services"
)

type contextKey string

const callerContextKey contextKey = "caller"

// Claim names set by the Gateway when it forwards a request.
const (
	jwtClaimProfileID    = "profile_id"
	jwtClaimTenantID     = "tenant_id"
	jwtClaimTenantUserID = "tenant_user_id"
	jwtClaimRole         = "role"
)

// Authenticator verifies the Gateway-issued HS256 token and materializes the
// caller identity into the request context.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		caller, err := callerFromClaims(claims)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		caller.RequestID = chiMiddleware.GetReqID(r.Context())

		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromClaims(claims jwt.MapClaims) (services.Caller, error) {
	var caller services.Caller
	var err error

	if caller.ProfileID, err = uuidClaim(claims, jwtClaimProfileID); err != nil {
		return caller, err
	}
	if caller.TenantID, err = uuidClaim(claims, jwtClaimTenantID); err != nil {
		return caller, err
	}
	if caller.TenantUserID, err = uuidClaim(claims, jwtClaimTenantUserID); err != nil {
		return caller, err
	}

	role, ok := claims[jwtClaimRole].(string)
	if !ok {
		return caller, fmt.Errorf("missing %q claim in token", jwtClaimRole)
	}
	switch role {
	case services.RoleOwner, services.RoleAdmin, services.RolePlayer:
		caller.Role = role
	default:
		return caller, fmt.Errorf("invalid role value in claim: %q", role)
	}
	return caller, nil
}

func uuidClaim(claims jwt.MapClaims, name string) (uuid.UUID, error) {
	raw, ok := claims[name].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing %q claim in token", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %q claim in token: %w", name, err)
	}
	return id, nil
}

// CallerFromContext extracts the authenticated caller placed there by
// Authenticate.
func CallerFromContext(ctx context.Context) (services.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(services.Caller)
	return caller, ok
}

// RequireRole rejects requests whose caller has none of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if role == caller.Role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}
