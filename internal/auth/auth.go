package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/utils"
)

// Verifier возвращает пользователя по токену.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type userKey struct{}

// WithUser кладёт ID пользователя в контекст.
func WithUser(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userKey{}, userId)
}

// UserFromContext достаёт ID пользователя из контекста.
func UserFromContext(ctx context.Context) (string, bool) {
	userId, ok := ctx.Value(userKey{}).(string)
	return userId, ok && userId != ""
}

// TokenFromRequest читает токен из заголовка Authorization или параметра access_token.
// Параметр нужен для websocket, где браузер не может задать заголовок.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// Authenticator проверяет токен каждого запроса.
type Authenticator struct {
	Verifier Verifier
	Logger   *log.Logger
}

// NewAuthenticator создает новый экземпляр Authenticator.
func NewAuthenticator(verifier Verifier, logger *log.Logger) *Authenticator {
	return &Authenticator{Verifier: verifier, Logger: logger}
}

// Authenticate возвращает пользователя запроса.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return "", models.ErrUnauthorized
	}
	return a.Verifier.Verify(r.Context(), token)
}

// Middleware пропускает дальше только аутентифицированные запросы.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, err := a.Authenticate(r)
		if err != nil {
			utils.SendError(w, a.Logger, err, "failed to verify token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userId)))
	})
}
