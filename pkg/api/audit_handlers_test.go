package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

func TestAuditSearchEndpoint(t *testing.T) {
	t.Run("org admin queries their organization", func(t *testing.T) {
		env := newTestEnv(t)
		env.orgs.addOrg(10, "acme", true)
		env.orgs.addMembership(1, 10, roles.OrgAdmin)
		env.users.addUser(&users.User{ID: 1, HomeOrgID: 10, PlatformRole: roles.PlatformOrgAdmin, IsActive: true})
		env.searcher.events = []*audit.Event{{ID: 1, EventType: audit.EventTypeLogin}}
		token := env.login(t, 1)

		rec := getJSON(t, env.server, "/api/v1/audit?limit=10", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "auth.login")

		// The query is pinned to the caller's organization.
		require.NotNil(t, env.searcher.lastFilter.OrganizationID)
		assert.Equal(t, int64(10), *env.searcher.lastFilter.OrganizationID)
		assert.Equal(t, 10, env.searcher.lastFilter.Limit)
	})

	t.Run("plain member is denied", func(t *testing.T) {
		env := newTestEnv(t)
		env.orgs.addOrg(10, "acme", true)
		env.orgs.addMembership(9, 10, roles.OrgMember)
		env.users.addUser(&users.User{ID: 9, HomeOrgID: 10, PlatformRole: roles.PlatformUser, IsActive: true})
		token := env.login(t, 9)

		rec := getJSON(t, env.server, "/api/v1/audit", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unscoped super admin queries platform wide", func(t *testing.T) {
		env := newTestEnv(t)
		env.users.addUser(&users.User{ID: 1, PlatformRole: roles.PlatformSuperAdmin, IsActive: true})
		token := env.login(t, 1)

		rec := getJSON(t, env.server, "/api/v1/audit?event_type=auth.login&event_type=context.switch&status=denied", token)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Nil(t, env.searcher.lastFilter.OrganizationID)
		assert.Len(t, env.searcher.lastFilter.EventTypes, 2)
		require.NotNil(t, env.searcher.lastFilter.Status)
		assert.Equal(t, audit.EventStatusDenied, *env.searcher.lastFilter.Status)
	})

	t.Run("bad time filter", func(t *testing.T) {
		env := newTestEnv(t)
		env.orgs.addOrg(10, "acme", true)
		env.orgs.addMembership(1, 10, roles.OrgAdmin)
		env.users.addUser(&users.User{ID: 1, HomeOrgID: 10, PlatformRole: roles.PlatformOrgAdmin, IsActive: true})
		token := env.login(t, 1)

		rec := getJSON(t, env.server, "/api/v1/audit?start_time=yesterday", token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("limit is capped", func(t *testing.T) {
		env := newTestEnv(t)
		env.users.addUser(&users.User{ID: 1, PlatformRole: roles.PlatformSuperAdmin, IsActive: true})
		token := env.login(t, 1)

		rec := getJSON(t, env.server, "/api/v1/audit?limit=99999", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxAuditLimit, env.searcher.lastFilter.Limit)
	})
}
