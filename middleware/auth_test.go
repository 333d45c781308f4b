package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"
)

func requestWithRole(role string) *http.Request {
	req := httptest.NewRequest("POST", "http://example.local/", nil)
	ctx := context.WithValue(req.Context(), utils.UserIDKey, uint(1))
	ctx = context.WithValue(ctx, utils.UserRoleKey, role)
	return req.WithContext(ctx)
}

func TestRequireRole_Allowed(t *testing.T) {
	gate := RequireRole(models.RoleTeacher, models.RoleAdmin)
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, role := range []string{models.RoleTeacher, models.RoleAdmin} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithRole(role))
		if rec.Code != http.StatusOK {
			t.Fatalf("role %s should pass, got %d", role, rec.Code)
		}
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	gate := RequireRole(models.RoleTeacher)
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithRole(models.RoleStudent))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student should be forbidden, got %d", rec.Code)
	}
}

func TestRequireRole_NoContext(t *testing.T) {
	gate := RequireRole(models.RoleTeacher)
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "http://example.local/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing role context should be forbidden, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "http://example.local/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer token should be 401, got %d", rec.Code)
	}
}

func TestOptionalAuth_AnonymousPassthrough(t *testing.T) {
	handler := OptionalAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := utils.GetUserID(r.Context()); ok {
			t.Fatal("anonymous request should carry no user id")
		}
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "http://example.local/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous request should pass through, got %d", rec.Code)
	}
}
