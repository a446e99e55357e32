package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/normahq/norma/internal/api"
)

type contextKey string

const TenantIDKey contextKey = "tenant_id"

// AuthValidator resolves a bearer token to the tenant it belongs to.
type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticValidator resolves tokens from a fixed token-to-tenant map loaded at
// startup. Identity management lives outside this service; the deployment
// provisions one token per tenant.
type StaticValidator struct {
	tokens map[string]string
}

func NewStaticValidator(tokens map[string]string) *StaticValidator {
	return &StaticValidator{tokens: tokens}
}

func (v *StaticValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	tenantID, ok := v.tokens[token]
	if !ok {
		return "", ErrUnknownToken
	}
	return tenantID, nil
}

// ErrUnknownToken is returned for tokens not present in the validator's map.
var ErrUnknownToken = &unknownTokenError{}

type unknownTokenError struct{}

func (*unknownTokenError) Error() string { return "unknown api token" }

func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			tenantID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set("X-Tenant-ID", tenantID)
			ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetTenantID(ctx context.Context) string {
	tenantID, _ := ctx.Value(TenantIDKey).(string)
	return tenantID
}
