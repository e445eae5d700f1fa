package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type profile struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// smoke-auth walks a running schedule-api through register, login, refresh
// and /user/me with a throwaway student account.
func main() {
	base := os.Getenv("SCHEDULE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	base = strings.TrimRight(base, "/")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 5 * time.Second}

	email := fmt.Sprintf("smoke-%s@example.edu", uuid.NewString()[:8])
	password := "smoke-pass-1"

	var registered tokenPair
	if _, err := call(ctx, client, http.MethodPost, base+"/api/v1/auth/register", "", map[string]any{
		"email":     email,
		"password":  password,
		"firstName": "Smoke",
		"lastName":  "Test",
		"role":      "STUDENT",
	}, &registered); err != nil {
		log.Fatalf("register: %v", err)
	}

	var login tokenPair
	if _, err := call(ctx, client, http.MethodPost, base+"/api/v1/auth/authenticate", "", map[string]any{
		"email":    email,
		"password": password,
	}, &login); err != nil {
		log.Fatalf("authenticate: %v", err)
	}

	var refreshed tokenPair
	header, err := call(ctx, client, http.MethodPost, base+"/api/v1/auth/refresh-token", "", map[string]any{
		"refreshToken": login.RefreshToken,
	}, &refreshed)
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}
	if header.Get("Authorization") != "Bearer "+refreshed.AccessToken {
		log.Fatalf("refresh: Authorization header does not carry the new access token")
	}
	if refreshed.RefreshToken != login.RefreshToken {
		log.Fatalf("refresh: refresh token must be echoed back unchanged")
	}

	var me profile
	if _, err := call(ctx, client, http.MethodGet, base+"/api/v1/user/me", refreshed.AccessToken, nil, &me); err != nil {
		log.Fatalf("me: %v", err)
	}
	if me.Email != email || me.Role != "STUDENT" {
		log.Fatalf("me: unexpected profile %+v", me)
	}

	if _, err := call(ctx, client, http.MethodGet, base+"/api/v1/admin/users", refreshed.AccessToken, nil, nil); err == nil {
		log.Fatalf("admin listing must be forbidden for students")
	}

	fmt.Printf("✅ schedule-api auth smoke test passed: user=%d email=%s\n", me.ID, me.Email)
}

func call(ctx context.Context, client *http.Client, method, url, token string, body, out any) (http.Header, error) {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.Header, fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("decode: %w", err)
		}
	}
	return resp.Header, nil
}
