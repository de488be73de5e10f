package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

func putJSON(t *testing.T, server *Server, path, token string, body interface{}) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(data))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func adminEnv(t *testing.T) (*testEnv, string) {
	env := newTestEnv(t)
	env.orgs.addOrg(10, "acme", true)
	env.orgs.addMembership(1, 10, roles.OrgOwner)
	env.users.addUser(&users.User{ID: 1, Email: "admin@acme.test", HomeOrgID: 10, PlatformRole: roles.PlatformOrgAdmin, IsActive: true})
	return env, env.login(t, 1)
}

func TestCreateOrganizationEndpoint(t *testing.T) {
	env, token := adminEnv(t)

	t.Run("creates", func(t *testing.T) {
		rec := postJSON(t, env.server, "/api/v1/orgs", token, orgs.CreateOrgRequest{Code: "globex", Name: "Globex"})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "globex")
	})

	t.Run("missing name", func(t *testing.T) {
		rec := postJSON(t, env.server, "/api/v1/orgs", token, orgs.CreateOrgRequest{Code: "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate code is 409", func(t *testing.T) {
		env.orgs.createErr = orgs.ErrCodeTaken
		defer func() { env.orgs.createErr = nil }()

		rec := postJSON(t, env.server, "/api/v1/orgs", token, orgs.CreateOrgRequest{Code: "acme", Name: "Acme"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("permission denied is 403", func(t *testing.T) {
		env.orgs.createErr = orgs.ErrPermissionDenied
		defer func() { env.orgs.createErr = nil }()

		rec := postJSON(t, env.server, "/api/v1/orgs", token, orgs.CreateOrgRequest{Code: "y", Name: "Y"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestGetOrganizationEndpoint(t *testing.T) {
	env, token := adminEnv(t)

	t.Run("found", func(t *testing.T) {
		rec := getJSON(t, env.server, "/api/v1/orgs/10", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "acme")
	})

	t.Run("not found", func(t *testing.T) {
		rec := getJSON(t, env.server, "/api/v1/orgs/404", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := getJSON(t, env.server, "/api/v1/orgs/zero", token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateOrganizationEndpoint(t *testing.T) {
	env, token := adminEnv(t)

	name := "Acme Renamed"
	rec := putJSON(t, env.server, "/api/v1/orgs/10", token, orgs.UpdateOrgRequest{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Renamed")
}

func TestDeactivateOrganizationEndpoint(t *testing.T) {
	env, token := adminEnv(t)

	rec := deleteJSON(t, env.server, "/api/v1/orgs/10", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.orgs.orgsByID[10].IsActive)
}

func TestMembershipEndpoints(t *testing.T) {
	t.Run("grant", func(t *testing.T) {
		env, token := adminEnv(t)

		rec := postJSON(t, env.server, "/api/v1/orgs/10/members", token, GrantAccessRequest{UserID: 9, Role: roles.OrgMember})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, roles.OrgMember, env.orgs.memberships[apiMemberKey{9, 10}])
	})

	t.Run("grant defaults to MEMBER", func(t *testing.T) {
		env, token := adminEnv(t)

		rec := postJSON(t, env.server, "/api/v1/orgs/10/members", token, GrantAccessRequest{UserID: 9})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, roles.OrgMember, env.orgs.memberships[apiMemberKey{9, 10}])
	})

	t.Run("duplicate grant is 409 already_member", func(t *testing.T) {
		env, token := adminEnv(t)
		env.orgs.addMembership(9, 10, roles.OrgMember)

		rec := postJSON(t, env.server, "/api/v1/orgs/10/members", token, GrantAccessRequest{UserID: 9})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already_member")
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		env, token := adminEnv(t)

		rec := postJSON(t, env.server, "/api/v1/orgs/10/members", token, GrantAccessRequest{UserID: 9, Role: "EMPEROR"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("revoke", func(t *testing.T) {
		env, token := adminEnv(t)
		env.orgs.addMembership(9, 10, roles.OrgMember)

		rec := deleteJSON(t, env.server, "/api/v1/orgs/10/members/9", token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("revoking a home membership is 409", func(t *testing.T) {
		env, token := adminEnv(t)
		env.orgs.revokeErr = orgs.ErrCannotRevokeHome

		rec := deleteJSON(t, env.server, "/api/v1/orgs/10/members/9", token)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "cannot_revoke_home_membership")
	})

	t.Run("role change", func(t *testing.T) {
		env, token := adminEnv(t)
		env.orgs.addMembership(9, 10, roles.OrgMember)

		rec := putJSON(t, env.server, "/api/v1/orgs/10/members/9", token, UpdateMemberRoleRequest{Role: roles.OrgAdmin})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, roles.OrgAdmin, env.orgs.memberships[apiMemberKey{9, 10}])
	})

	t.Run("role change for a non-member is 404", func(t *testing.T) {
		env, token := adminEnv(t)

		rec := putJSON(t, env.server, "/api/v1/orgs/10/members/9", token, UpdateMemberRoleRequest{Role: roles.OrgAdmin})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list members", func(t *testing.T) {
		env, token := adminEnv(t)
		env.orgs.addMembership(9, 10, roles.OrgMember)

		rec := getJSON(t, env.server, "/api/v1/orgs/10/members", token)
		require.Equal(t, http.StatusOK, rec.Code)

		var members []*orgs.Membership
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
		assert.Len(t, members, 2)
	})
}
