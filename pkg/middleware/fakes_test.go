package middleware

import (
	"context"
	"errors"
	"sort"

	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// fakeUserStore serves GetByID from a map; the rest of the interface is
// unused by the middleware under test.
type fakeUserStore struct {
	byID map[int64]*users.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byID: make(map[int64]*users.User)}
}

func (f *fakeUserStore) addUser(u *users.User) {
	f.byID[u.ID] = u
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) Create(ctx context.Context, requester *auth.Identity, req *users.CreateUserRequest) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserStore) GetByEmailAndOrg(ctx context.Context, email string, orgID int64) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserStore) Authenticate(ctx context.Context, email, password string, orgID *int64) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserStore) UpdatePlatformRole(ctx context.Context, requester *auth.Identity, userID int64, role roles.PlatformRole) error {
	return errors.New("not implemented")
}

func (f *fakeUserStore) Deactivate(ctx context.Context, requester *auth.Identity, userID int64) error {
	return errors.New("not implemented")
}

func (f *fakeUserStore) ChangePassword(ctx context.Context, requester *auth.Identity, userID int64, currentPassword, newPassword string) error {
	return errors.New("not implemented")
}

func (f *fakeUserStore) SetCurrentOrg(ctx context.Context, userID int64, orgID *int64) error {
	return errors.New("not implemented")
}

func (f *fakeUserStore) ListByOrg(ctx context.Context, requester *auth.Identity, orgID int64) ([]*users.User, error) {
	return nil, errors.New("not implemented")
}

type orgMemberKey struct {
	userID int64
	orgID  int64
}

// fakeOrgStore backs context resolution in the tenant middleware tests.
type fakeOrgStore struct {
	orgsByID    map[int64]*orgs.Organization
	memberships map[orgMemberKey]roles.OrgRole
}

func newFakeOrgStore() *fakeOrgStore {
	return &fakeOrgStore{
		orgsByID:    make(map[int64]*orgs.Organization),
		memberships: make(map[orgMemberKey]roles.OrgRole),
	}
}

func (f *fakeOrgStore) addOrg(id int64, code, name string, active bool) {
	f.orgsByID[id] = &orgs.Organization{ID: id, Code: code, Name: name, IsActive: active}
}

func (f *fakeOrgStore) addMembership(userID, orgID int64, role roles.OrgRole) {
	f.memberships[orgMemberKey{userID, orgID}] = role
}

func (f *fakeOrgStore) GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error) {
	org, ok := f.orgsByID[id]
	if !ok {
		return nil, orgs.ErrOrgNotFound
	}
	return org, nil
}

func (f *fakeOrgStore) ValidateAccess(ctx context.Context, userID, orgID int64, minRole roles.OrgRole) (*orgs.MembershipInfo, error) {
	org, ok := f.orgsByID[orgID]
	if !ok || !org.IsActive {
		return nil, nil
	}
	role, ok := f.memberships[orgMemberKey{userID, orgID}]
	if !ok || !roles.MeetsMinimumOrg(role, minRole) {
		return nil, nil
	}
	info := &orgs.MembershipInfo{}
	info.OrganizationID = orgID
	info.UserID = userID
	info.Role = role
	info.IsActive = true
	return info, nil
}

func (f *fakeOrgStore) ListAccessible(ctx context.Context, userID int64) ([]*orgs.MembershipInfo, error) {
	var infos []*orgs.MembershipInfo
	for key, role := range f.memberships {
		if key.userID != userID {
			continue
		}
		org, ok := f.orgsByID[key.orgID]
		if !ok || !org.IsActive {
			continue
		}
		info := &orgs.MembershipInfo{}
		info.OrganizationID = key.orgID
		info.UserID = userID
		info.Role = role
		info.IsActive = true
		info.OrganizationCode = org.Code
		info.OrganizationName = org.Name
		info.OrgIsActive = org.IsActive
		infos = append(infos, info)
	}
	return infos, nil
}

func (f *fakeOrgStore) ListActiveOrganizations(ctx context.Context) ([]*orgs.Organization, error) {
	var result []*orgs.Organization
	for _, org := range f.orgsByID {
		if org.IsActive {
			result = append(result, org)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeOrgStore) CreateOrganization(ctx context.Context, requester *auth.Identity, req *orgs.CreateOrgRequest) (*orgs.Organization, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgStore) GetOrganizationByCode(ctx context.Context, code string) (*orgs.Organization, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgStore) UpdateOrganization(ctx context.Context, requester *auth.Identity, id int64, updates *orgs.UpdateOrgRequest) error {
	return errors.New("not implemented")
}

func (f *fakeOrgStore) DeactivateOrganization(ctx context.Context, requester *auth.Identity, id int64) error {
	return errors.New("not implemented")
}

func (f *fakeOrgStore) GrantAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) (*orgs.Membership, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgStore) RevokeAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64) error {
	return errors.New("not implemented")
}

func (f *fakeOrgStore) UpdateMemberRole(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) error {
	return errors.New("not implemented")
}

func (f *fakeOrgStore) ListMembers(ctx context.Context, requester *auth.Identity, orgID int64) ([]*orgs.Membership, error) {
	return nil, errors.New("not implemented")
}
