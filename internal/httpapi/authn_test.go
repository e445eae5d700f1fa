package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"schedulehub.org/internal/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer   abc.def  ", "abc.def", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer ", "", false},
		{"Bear", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.ok != (err == nil) || got != tc.token {
			t.Fatalf("%q: got %q, %v", tc.header, got, err)
		}
	}
}

func TestWithAuthIsSoft(t *testing.T) {
	svc, _, _ := testServices(t)
	a := New(nil, "test", svc)
	client := newTestAPI(t)
	// Tokens from another API share the signing key but not the identity store.
	foreign := client.tokens["admin3"].AccessToken

	pair, err := svc.Auth.Register(t.Context(), auth.Registration{Email: "soft@univ.edu", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}

	var (
		seen   auth.Identity
		authed bool
	)
	handler := a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, authed = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for name, header := range map[string]string{
		"none":            "",
		"garbage":         "Bearer not-a-token",
		"refresh token":   "Bearer " + pair.RefreshToken,
		"unknown subject": "Bearer " + foreign,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK || authed {
			t.Fatalf("%s: expected anonymous pass-through, got %d authed=%v", name, rr.Code, authed)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !authed || seen.Email != "soft@univ.edu" || seen.Role != auth.RoleStudent {
		t.Fatalf("expected identity attached, got %+v (authed=%v)", seen, authed)
	}
}
