package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/renalworks/pdcare/libs/auth"
)

func signedToken(t *testing.T, role, secret string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "user-1",
		Role: role,
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestWithAuthAndRequireRole(t *testing.T) {
	secret := "test-secret"
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClaimsFromContext(r.Context()) == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler = RequireRole(handler, auth.RoleStaff, auth.RoleAdmin)
	handler = WithAuth(secret)(handler)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + signedToken(t, auth.RolePatient, secret), http.StatusForbidden},
		{"staff ok", "Bearer " + signedToken(t, auth.RoleStaff, secret), http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "http://clinic.local/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rw := httptest.NewRecorder()
		handler.ServeHTTP(rw, req)
		if rw.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rw.Code)
		}
	}
}
