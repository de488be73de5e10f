package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "carol@acme.test", req["email"])

		json.NewEncoder(w).Encode(LoginResult{
			Token: "cwk_issued",
			User:  &User{ID: 9, Email: "carol@acme.test"},
		})
	}))
	t.Cleanup(server.Close)

	c := New(server.URL)
	result, err := c.Login(context.Background(), "carol@acme.test", "hunter2", "")
	require.NoError(t, err)

	assert.Equal(t, "cwk_issued", result.Token)
	assert.Equal(t, "cwk_issued", c.Token())
}

func TestBearerTokenIsSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cwk_token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(User{ID: 9})
	}))
	t.Cleanup(server.Close)

	c := New(server.URL)
	c.SetToken("cwk_token")

	_, err := c.Me(context.Background())
	require.NoError(t, err)
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"code": "unauthorized", "message": "invalid or expired token"})
	}))
	t.Cleanup(server.Close)

	c := New(server.URL)
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAPIErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"code": "already_member", "message": "user is already an active member"})
	}))
	t.Cleanup(server.Close)

	c := New(server.URL)
	_, err := c.SwitchOrganization(context.Background(), 10)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "already_member", apiErr.Code)
}

func TestLogoutClearsTokenEvenOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"code": "internal_error", "message": "internal server error"})
	}))
	t.Cleanup(server.Close)

	c := New(server.URL)
	c.SetToken("cwk_token")

	err := c.Logout(context.Background())
	assert.Error(t, err)
	assert.Empty(t, c.Token())
}
