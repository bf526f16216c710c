package authx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestMux(t *testing.T, f *resolverFixture, captured *CallerClaims) *http.ServeMux {
	t.Helper()
	mw := NewMiddleware(f.resolver, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := CallerClaimsFromContext(r.Context())
		if !ok {
			t.Error("caller claims not bound")
		}
		*captured = claims
		w.WriteHeader(http.StatusNoContent)
	})

	mux := http.NewServeMux()
	mux.Handle("GET /users/{user_id}", mw.Require(LevelDefault, handler))
	mux.Handle("GET /users/{user_id}/games/{game_id}", mw.Require(LevelScopedTemporary, handler))
	mux.Handle("GET /admin", mw.Require(LevelAdmin, handler))
	return mux
}

func serve(mux http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Error {
		t.Fatal("expected error flag")
	}
	return body
}

func TestMiddleware_SessionCookie(t *testing.T) {
	f := newResolverFixture(t)
	var caller CallerClaims
	mux := newTestMux(t, f, &caller)
	session := f.issue(t, NewClaims("7", LevelDefault), time.Hour)

	rec := serve(mux, "/users/7", &http.Cookie{Name: DefaultSessionCookie, Value: session})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if caller.Subject() != "7" || caller.Level != LevelDefault || caller.Source != SourceSession {
		t.Fatalf("unexpected caller %+v", caller)
	}

	rec = serve(mux, "/users/8", &http.Cookie{Name: DefaultSessionCookie, Value: session})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message != "Forbidden" {
		t.Fatalf("unexpected message %q", body.Message)
	}

	rec = serve(mux, "/admin", &http.Cookie{Name: DefaultSessionCookie, Value: session})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message != "Forbidden" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestMiddleware_TokenFailures(t *testing.T) {
	f := newResolverFixture(t)
	var caller CallerClaims
	mux := newTestMux(t, f, &caller)

	rec := serve(mux, "/users/7")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message != "Token not provided" {
		t.Fatalf("unexpected message %q", body.Message)
	}

	rec = serve(mux, "/users/7", &http.Cookie{Name: DefaultSessionCookie, Value: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Message != "Token malformed" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestMiddleware_ScopedCookie(t *testing.T) {
	f := newResolverFixture(t)
	var caller CallerClaims
	mux := newTestMux(t, f, &caller)
	scoped := f.issue(t, NewScopedClaims("3", "9"), time.Hour)

	rec := serve(mux, "/users/3/games/9", &http.Cookie{Name: DefaultScopedCookie, Value: scoped})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if caller.Source != SourceScoped || caller.Level != LevelScopedTemporary {
		t.Fatalf("unexpected caller %+v", caller)
	}

	rec = serve(mux, "/users/3/games/10", &http.Cookie{Name: DefaultScopedCookie, Value: scoped})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 once the scoped token does not apply, got %d", rec.Code)
	}

	// The scoped token never reaches endpoints above scoped-temporary.
	rec = serve(mux, "/users/3", &http.Cookie{Name: DefaultScopedCookie, Value: scoped})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_CustomCookieNames(t *testing.T) {
	f := newResolverFixture(t)
	mw := NewMiddleware(f.resolver, WithCookieNames("sid", "tmp"), WithTargetExtractor(func(*http.Request) Target {
		return Target{UserID: "7"}
	}))
	handler := mw.Require(LevelDefault, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	session := f.issue(t, NewClaims("7", LevelDefault), time.Hour)

	if rec := serve(handler, "/anything", &http.Cookie{Name: "sid", Value: session}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(handler, "/anything", &http.Cookie{Name: DefaultSessionCookie, Value: session}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("default cookie name should be ignored, got %d", rec.Code)
	}
}

func TestSessionCookie(t *testing.T) {
	c := SessionCookie(DefaultSessionCookie, "tok", 24*time.Hour, "example.com")
	if c.MaxAge != 86400 || c.Path != "/" || c.Domain != "example.com" {
		t.Fatalf("unexpected cookie %+v", c)
	}
	if !c.Secure || !c.HttpOnly || c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("cookie is missing security attributes: %+v", c)
	}
}
