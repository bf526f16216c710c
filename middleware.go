package authx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Default cookie names carrying the session and scoped tokens.
const (
	DefaultSessionCookie = "token"
	DefaultScopedCookie  = "tempToken"
)

// TargetExtractor pulls the target resource identifiers out of a request.
type TargetExtractor func(r *http.Request) Target

// PathTarget reads the "user_id" and "game_id" path wildcards of a net/http ServeMux pattern.
func PathTarget(r *http.Request) Target {
	return Target{
		UserID: r.PathValue("user_id"),
		GameID: r.PathValue("game_id"),
	}
}

// Middleware enforces authorization on HTTP handlers using cookie-carried tokens.
type Middleware struct {
	resolver      *Resolver
	extract       TargetExtractor
	sessionCookie string
	scopedCookie  string
	logger        *slog.Logger
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// WithLogger sets a custom logger for the middleware.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(m *Middleware) {
		m.logger = l
	}
}

// WithTargetExtractor replaces PathTarget.
func WithTargetExtractor(fn TargetExtractor) MiddlewareOption {
	return func(m *Middleware) {
		m.extract = fn
	}
}

// WithCookieNames overrides the session and scoped cookie names.
func WithCookieNames(session, scoped string) MiddlewareOption {
	return func(m *Middleware) {
		m.sessionCookie = session
		m.scopedCookie = scoped
	}
}

// NewMiddleware creates authorization middleware backed by resolver.
func NewMiddleware(resolver *Resolver, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		resolver:      resolver,
		extract:       PathTarget,
		sessionCookie: DefaultSessionCookie,
		scopedCookie:  DefaultScopedCookie,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Require wraps next so it only runs for callers holding at least level for the request target.
// On success the caller is bound into the request context; see CallerClaimsFromContext.
func (m *Middleware) Require(level AuthorizationLevel, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			SessionToken: cookieValue(r, m.sessionCookie),
			ScopedToken:  cookieValue(r, m.scopedCookie),
			Required:     level,
			Target:       m.extract(r),
		}

		decision, err := m.resolver.Resolve(r.Context(), req)
		if err != nil {
			var authErr *Error
			if !errors.As(err, &authErr) {
				m.logger.Error("authorization failed unexpectedly",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
				)
				m.writeError(w, http.StatusInternalServerError, "Internal error")
				return
			}
			m.writeError(w, authErr.HTTPStatus(), authErr.PublicMessage())
			return
		}

		ctx := BindCallerClaims(r.Context(), decision.callerClaims())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: true, Message: message}); err != nil {
		m.logger.Warn("write error response", "error", err)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SessionCookie builds the cookie that carries a session token to the browser.
func SessionCookie(name, token string, maxAge time.Duration, domain string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
