//go:build integration

package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/pkg/auth"
)

// APIResponse represents the API response envelope
type APIResponse struct {
	HTTPStatus int             `json:"-"`
	Status     string          `json:"status"`
	Code       string          `json:"code,omitempty"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func (r APIResponse) IsSuccess() bool {
	return r.Status == "success"
}

func apiURL() string {
	if u := os.Getenv("API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080/api/v1"
}

func checkAPIServer(t *testing.T) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL() + "/health/live")
	if err != nil {
		t.Skipf("API server not reachable at %s: %v", apiURL(), err)
	}
	resp.Body.Close()
}

type user struct {
	ID    uuid.UUID
	Token string
}

func newUser(t *testing.T, role model.Role, hospital uuid.UUID) user {
	t.Helper()
	secret := os.Getenv("MEDVAULT_JWT_SECRET")
	if secret == "" {
		t.Skip("MEDVAULT_JWT_SECRET not set")
	}
	issuer := os.Getenv("MEDVAULT_JWT_ISSUER")
	if issuer == "" {
		issuer = "medvault"
	}

	p := &model.Principal{
		UserID:     uuid.New(),
		Name:       fmt.Sprintf("it-%s", role),
		Email:      "it@example.com",
		Role:       role,
		HospitalID: hospital,
	}
	tok, err := auth.IssueToken(secret, issuer, p, 10*time.Minute)
	require.NoError(t, err)
	return user{ID: p.UserID, Token: tok}
}

func makeRequest(t *testing.T, method, path string, body interface{}, token string) APIResponse {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, apiURL()+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	out.HTTPStatus = resp.StatusCode
	return out
}
