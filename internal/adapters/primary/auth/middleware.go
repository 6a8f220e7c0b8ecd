package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

// Noms des cookies posés au login.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var principalCtxKey = &contextKey{"principal"}

// ErrorWriter écrit la réponse d'erreur au format de l'adapter appelant.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Options struct {
	// AllowQuery accepte ?token=... (navigateurs : pas de header sur un upgrade WebSocket).
	AllowQuery bool
	OnError    ErrorWriter
}

// Middleware exige un access token valide : header Bearer, cookie accessToken,
// ou paramètre token si AllowQuery.
func Middleware(identity ports.IdentityService, opts Options) func(http.Handler) http.Handler {
	onError := opts.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Extraction du jeton
			token, err := TokenFromRequest(r, opts.AllowQuery)
			if err != nil {
				onError(w, r, err)
				return
			}

			// 2. Validation (signature, révocation, compte actif)
			principal, err := identity.Authenticate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			// 3. Succès : on injecte le Principal dans le contexte
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// TokenFromRequest applique l'ordre header, cookie, puis query.
func TokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", domain.ErrInvalidToken
		}
		return token, nil
	}
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if allowQuery {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return "", domain.ErrNotLoggedIn
}

func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// ForContext renvoie le Principal posé par Middleware, nil hors route protégée.
func ForContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalCtxKey).(*domain.Principal)
	return p
}
