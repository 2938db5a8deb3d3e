package client

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// Verifier looks for a token in the Authorization header or the jwt cookie.
// It never rejects a request on its own.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie)
}

// AuthUserMiddleware puts an AuthUser into the request context when the
// request carries a valid token. Anonymous requests pass through untouched.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			next.ServeHTTP(w, r)
			return
		}

		authUser := new(AuthUser)
		if err := loadFromMap(claims, authUser); err != nil {
			slog.Warn("Ignoring token with unreadable claims", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("Ignoring token without a valid user id", "user_id", authUser.UserId)
			next.ServeHTTP(w, r)
			return
		}
		authUser.UserUuid = userUUID

		next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), authUser)))
	})
}

func loadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}
