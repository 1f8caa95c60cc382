package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/staffauth/internal/actorctx"
	"github.com/geocoder89/staffauth/internal/auth"
	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type fakeGate struct {
	authenticate func(ctx context.Context, header string) (user.User, error)
}

func (f fakeGate) Authenticate(ctx context.Context, header string) (user.User, error) {
	return f.authenticate(ctx, header)
}

func (f fakeGate) Authorize(u user.User, allowed user.RoleSet) error {
	if !allowed.Allows(u.Role) {
		return auth.ErrForbidden
	}
	return nil
}

type countingRecorder map[string]int

func (c countingRecorder) RecordAuthFailure(reason string) { c[reason]++ }

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return body
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireAuthMapsGateErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing token", auth.ErrTokenRequired, http.StatusUnauthorized, "token_required"},
		{"expired", auth.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{"invalid", auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
		{"subject gone", auth.ErrUnknownSubject, http.StatusUnauthorized, "user_not_found"},
		{"inactive", user.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
		{"lookup failure", fmt.Errorf("resolve token subject: %w", errors.New("db down")), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := countingRecorder{}
			m := NewAuthMiddleware(fakeGate{authenticate: func(context.Context, string) (user.User, error) {
				return user.User{}, tc.err
			}}, rec, discardLogger())

			r := gin.New()
			r.Use(RequestID())
			r.GET("/me", m.RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("X-Request-Id", "req-1")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			body := decodeError(t, w)
			if body.Error.Code != tc.wantCode || body.Error.RequestID != "req-1" {
				t.Fatalf("unexpected body %+v", body)
			}
			if tc.wantStatus != http.StatusInternalServerError && rec[tc.wantCode] != 1 {
				t.Fatalf("failure not recorded: %v", rec)
			}
		})
	}
}

func TestRequireAuthAttachesUser(t *testing.T) {
	live := user.User{ID: "u1", Role: user.RoleAdmin, IsActive: true}
	m := NewAuthMiddleware(fakeGate{authenticate: func(_ context.Context, header string) (user.User, error) {
		if header != "Bearer good" {
			return user.User{}, auth.ErrInvalidToken
		}
		return live, nil
	}}, nil, discardLogger())

	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		fromGin, ok1 := UserFromContext(c)
		fromCtx, ok2 := actorctx.UserFrom(c.Request.Context())
		if !ok1 || !ok2 || fromGin.ID != "u1" || fromCtx.ID != "u1" {
			c.Status(http.StatusTeapot)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireRoleAndSelf(t *testing.T) {
	tests := []struct {
		name    string
		role    user.Role
		userID  string
		path    string
		allowed user.RoleSet
		self    bool
		want    int
	}{
		{"admin passes admin-only", user.RoleAdmin, "a", "/users/x", user.AdminOnly, false, http.StatusOK},
		{"waiter blocked from admin-only", user.RoleWaiter, "w", "/users/x", user.AdminOnly, false, http.StatusForbidden},
		{"cashier passes admin-cashier", user.RoleCashier, "c", "/users/x", user.AdminCashier, false, http.StatusOK},
		{"kitchen blocked from admin-waiter", user.RoleKitchen, "k", "/users/x", user.AdminWaiter, false, http.StatusForbidden},
		{"waiter changes own password", user.RoleWaiter, "w", "/users/w", user.AdminOnly, true, http.StatusOK},
		{"waiter blocked on someone else", user.RoleWaiter, "w", "/users/x", user.AdminOnly, true, http.StatusForbidden},
		{"admin changes anyone", user.RoleAdmin, "a", "/users/x", user.AdminOnly, true, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			live := user.User{ID: tc.userID, Role: tc.role, IsActive: true}
			m := NewAuthMiddleware(fakeGate{authenticate: func(context.Context, string) (user.User, error) {
				return live, nil
			}}, countingRecorder{}, discardLogger())

			guard := m.RequireRole(tc.allowed)
			if tc.self {
				guard = m.RequireSelfOrRole("id", tc.allowed)
			}

			r := gin.New()
			r.GET("/users/:id", m.RequireAuth(), guard, func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestRequireRoleWithoutAuth(t *testing.T) {
	m := NewAuthMiddleware(fakeGate{}, nil, discardLogger())

	r := gin.New()
	r.GET("/x", m.RequireRole(user.AdminOnly), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/auth/login", rl.RateLimiterMiddleware(KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := call(); w.Code != http.StatusOK {
			t.Fatalf("call %d: status %d", i, w.Code)
		}
	}

	w := call()
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected 429 with Retry-After 60, got %d %q", w.Code, w.Header().Get("Retry-After"))
	}
	if decodeError(t, w).Error.Code != "rate_limited" {
		t.Fatalf("unexpected code")
	}

	now = now.Add(time.Minute)
	if w := call(); w.Code != http.StatusOK {
		t.Fatalf("new window should reset, got %d", w.Code)
	}
}

func TestKeyByUserOrIP(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	r := gin.New()
	r.PUT("/users/:id/password", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(CtxUser, user.User{ID: id, Role: user.RoleWaiter})
		}
		c.Next()
	}, rl.RateLimiterMiddleware(KeyByUserOrIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(userID string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/users/x/password", nil)
		req.RemoteAddr = "10.0.0.7:4000"
		if userID != "" {
			req.Header.Set("X-Test-User", userID)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := call("u-1"); got != http.StatusOK {
		t.Fatalf("first call for u-1: %d", got)
	}
	if got := call("u-1"); got != http.StatusTooManyRequests {
		t.Fatalf("second call for u-1: %d", got)
	}
	// same address, different user: separate bucket
	if got := call("u-2"); got != http.StatusOK {
		t.Fatalf("u-2 shares a bucket with u-1: %d", got)
	}
	if got := call(""); got != http.StatusOK {
		t.Fatalf("anonymous falls back to IP bucket: %d", got)
	}
}

func TestRequireJSONExemptsUploads(t *testing.T) {
	r := gin.New()
	r.Use(RequireJSON("/users/import"))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/users", ok)
	r.POST("/users/import", ok)
	r.GET("/users", ok)

	tests := []struct {
		method, path, contentType string
		want                      int
	}{
		{http.MethodPost, "/users", "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "/users", "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "/users", "", http.StatusUnsupportedMediaType},
		{http.MethodPost, "/users/import", "multipart/form-data; boundary=x", http.StatusOK},
		{http.MethodGet, "/users", "", http.StatusOK},
	}

	for _, tc := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s %s (%q): status %d, want %d", tc.method, tc.path, tc.contentType, w.Code, tc.want)
		}
	}
}

func TestMaxBodyBytesPerRoute(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8, map[string]int64{"/big": 64}))
	read := func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	}
	r.POST("/small", read)
	r.POST("/big", read)

	body := strings.Repeat("x", 32)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/small", strings.NewReader(body)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("small route: status %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/big", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("big route: status %d", w.Code)
	}
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(discardLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Error.Code != "internal_error" || body.Error.RequestID == "" {
		t.Fatalf("unexpected body %+v", body)
	}
	if w.Header().Get("X-Request-Id") != body.Error.RequestID {
		t.Fatalf("request id header and body disagree")
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://pos.restaurant.com/"}))
	r.GET("/users", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"allowed origin", http.MethodGet, "https://pos.restaurant.com", http.StatusOK, "https://pos.restaurant.com"},
		{"unknown origin", http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "https://pos.restaurant.com", http.StatusNoContent, "https://pos.restaurant.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/users", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORSWildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.GET("/auth/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(true))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/auth/login", ok)
	r.GET("/users", ok)
	r.GET("/swagger", ok)

	get := func(method, path string) http.Header {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w.Header()
	}

	login := get(http.MethodPost, "/auth/login")
	if login.Get("Cache-Control") != "no-store" {
		t.Fatalf("auth responses must not be cached: %v", login)
	}
	if login.Get("Strict-Transport-Security") == "" || login.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("hardening headers missing: %v", login)
	}

	if got := get(http.MethodGet, "/users").Get("Cache-Control"); got != "" {
		t.Fatalf("users cache control = %q", got)
	}
	if csp := get(http.MethodGet, "/swagger").Get("Content-Security-Policy"); !strings.Contains(csp, "unpkg.com") {
		t.Fatalf("docs csp = %q", csp)
	}
}
