package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/LeeRoiii/Image-Vault/internal/identity"
	"github.com/LeeRoiii/Image-Vault/internal/logging"
	"github.com/LeeRoiii/Image-Vault/internal/models"
)

type ctxKey string

const userKey ctxKey = "api_user"

func userFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireBearer resolves the access token in the Authorization header and
// stores the user on the request context. Requests without a valid token get 401.
func RequireBearer(provider identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r)
			if token == "" {
				writeError(ctx, w, identity.ErrNoSession, "")
				return
			}

			user, err := provider.GetUser(ctx, token)
			if err != nil {
				writeError(ctx, w, err, "")
				return
			}

			ctx = logging.WithUserID(ctx, user.ID)
			ctx = context.WithValue(ctx, userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
