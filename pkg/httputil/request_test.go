package httputil

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"organization_id": 7}`))
		var req struct {
			OrganizationID int64 `json:"organization_id"`
		}
		require.NoError(t, ParseJSON(r, &req))
		assert.Equal(t, int64(7), req.OrganizationID)
	})

	t.Run("invalid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
		var req map[string]any
		err := ParseJSON(r, &req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})
}

func TestParsePathInt64(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orgs/42", nil)
		r = mux.SetURLVars(r, map[string]string{"id": "42"})
		val, err := ParsePathInt64(r, "id")
		require.NoError(t, err)
		assert.Equal(t, int64(42), val)
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orgs", nil)
		_, err := ParsePathInt64(r, "id")
		require.Error(t, err)
	})

	t.Run("not an integer", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/orgs/acme", nil)
		r = mux.SetURLVars(r, map[string]string{"id": "acme"})
		_, err := ParsePathInt64(r, "id")
		require.Error(t, err)
	})
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/audit?limit=25", nil)

	val, err := ParseQueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(r, "offset", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, val)

	r = httptest.NewRequest("GET", "/audit?limit=lots", nil)
	_, err = ParseQueryInt(r, "limit", 50)
	require.Error(t, err)
}
