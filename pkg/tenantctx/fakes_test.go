package tenantctx

import (
	"context"
	"errors"
	"sync"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

type memberKey struct {
	userID int64
	orgID  int64
}

// fakeOrgService backs the resolver and switcher tests with in-memory state.
type fakeOrgService struct {
	orgsByID    map[int64]*orgs.Organization
	memberships map[memberKey]roles.OrgRole
	getCalls    int
}

func newFakeOrgService() *fakeOrgService {
	return &fakeOrgService{
		orgsByID:    make(map[int64]*orgs.Organization),
		memberships: make(map[memberKey]roles.OrgRole),
	}
}

func (f *fakeOrgService) addOrg(id int64, active bool) {
	f.orgsByID[id] = &orgs.Organization{ID: id, Code: "org", Name: "Org", IsActive: active}
}

func (f *fakeOrgService) addMembership(userID, orgID int64, role roles.OrgRole) {
	f.memberships[memberKey{userID, orgID}] = role
}

func (f *fakeOrgService) GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error) {
	f.getCalls++
	org, ok := f.orgsByID[id]
	if !ok {
		return nil, orgs.ErrOrgNotFound
	}
	return org, nil
}

func (f *fakeOrgService) ValidateAccess(ctx context.Context, userID, orgID int64, minRole roles.OrgRole) (*orgs.MembershipInfo, error) {
	org, ok := f.orgsByID[orgID]
	if !ok || !org.IsActive {
		return nil, nil
	}
	role, ok := f.memberships[memberKey{userID, orgID}]
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

func (f *fakeOrgService) CreateOrganization(ctx context.Context, requester *auth.Identity, req *orgs.CreateOrgRequest) (*orgs.Organization, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgService) GetOrganizationByCode(ctx context.Context, code string) (*orgs.Organization, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgService) ListActiveOrganizations(ctx context.Context) ([]*orgs.Organization, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgService) UpdateOrganization(ctx context.Context, requester *auth.Identity, id int64, updates *orgs.UpdateOrgRequest) error {
	return errors.New("not implemented")
}

func (f *fakeOrgService) DeactivateOrganization(ctx context.Context, requester *auth.Identity, id int64) error {
	return errors.New("not implemented")
}

func (f *fakeOrgService) GrantAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) (*orgs.Membership, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrgService) RevokeAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64) error {
	return errors.New("not implemented")
}

func (f *fakeOrgService) UpdateMemberRole(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) error {
	return errors.New("not implemented")
}

func (f *fakeOrgService) ListAccessible(ctx context.Context, userID int64) ([]*orgs.MembershipInfo, error) {
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

func (f *fakeOrgService) ListMembers(ctx context.Context, requester *auth.Identity, orgID int64) ([]*orgs.Membership, error) {
	return nil, errors.New("not implemented")
}

// fakeUserService records current-organization pointer writes.
type fakeUserService struct {
	mu         sync.Mutex
	currentOrg map[int64]*int64
	setErr     error
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{currentOrg: make(map[int64]*int64)}
}

func (f *fakeUserService) SetCurrentOrg(ctx context.Context, userID int64, orgID *int64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentOrg[userID] = orgID
	return nil
}

func (f *fakeUserService) Create(ctx context.Context, requester *auth.Identity, req *users.CreateUserRequest) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) GetByID(ctx context.Context, id int64) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) GetByEmailAndOrg(ctx context.Context, email string, orgID int64) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string, orgID *int64) (*users.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) UpdatePlatformRole(ctx context.Context, requester *auth.Identity, userID int64, role roles.PlatformRole) error {
	return errors.New("not implemented")
}

func (f *fakeUserService) Deactivate(ctx context.Context, requester *auth.Identity, userID int64) error {
	return errors.New("not implemented")
}

func (f *fakeUserService) ChangePassword(ctx context.Context, requester *auth.Identity, userID int64, currentPassword, newPassword string) error {
	return errors.New("not implemented")
}

func (f *fakeUserService) ListByOrg(ctx context.Context, requester *auth.Identity, orgID int64) ([]*users.User, error) {
	return nil, errors.New("not implemented")
}

// recordingAuditLogger captures events for assertions.
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAuditLogger) Log(ctx context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditLogger) Close() error { return nil }

func (r *recordingAuditLogger) last() *audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}
