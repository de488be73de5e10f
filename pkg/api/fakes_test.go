package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/roles"
	"github.com/craftwork-crm/craftwork/pkg/sessions"
	"github.com/craftwork-crm/craftwork/pkg/tenantctx"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// fakeUserService is an in-memory users.Service for handler tests.
type fakeUserService struct {
	mu         sync.Mutex
	byID       map[int64]*users.User
	currentOrg map[int64]*int64

	authenticateFn func(email, password string, orgID *int64) (*users.User, error)
	createErr      error
	roleErr        error
	deactivateErr  error
	passwordErr    error
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{
		byID:       make(map[int64]*users.User),
		currentOrg: make(map[int64]*int64),
	}
}

func (f *fakeUserService) addUser(u *users.User) {
	f.byID[u.ID] = u
}

func (f *fakeUserService) Create(ctx context.Context, requester *auth.Identity, req *users.CreateUserRequest) (*users.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	user := &users.User{
		ID:           int64(len(f.byID) + 1),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PlatformRole: req.PlatformRole,
		HomeOrgID:    req.HomeOrgID,
		IsActive:     true,
	}
	f.addUser(user)
	return user, nil
}

func (f *fakeUserService) GetByID(ctx context.Context, id int64) (*users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserService) GetByEmailAndOrg(ctx context.Context, email string, orgID int64) (*users.User, error) {
	for _, u := range f.byID {
		if u.Email == email && u.HomeOrgID == orgID {
			return u, nil
		}
	}
	return nil, users.ErrNotFound
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string, orgID *int64) (*users.User, error) {
	if f.authenticateFn != nil {
		return f.authenticateFn(email, password, orgID)
	}
	return nil, users.ErrInvalidCredentials
}

func (f *fakeUserService) UpdatePlatformRole(ctx context.Context, requester *auth.Identity, userID int64, role roles.PlatformRole) error {
	if f.roleErr != nil {
		return f.roleErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return users.ErrNotFound
	}
	u.PlatformRole = role
	return nil
}

func (f *fakeUserService) Deactivate(ctx context.Context, requester *auth.Identity, userID int64) error {
	if f.deactivateErr != nil {
		return f.deactivateErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return users.ErrNotFound
	}
	u.IsActive = false
	return nil
}

func (f *fakeUserService) ChangePassword(ctx context.Context, requester *auth.Identity, userID int64, currentPassword, newPassword string) error {
	if f.passwordErr != nil {
		return f.passwordErr
	}
	if _, ok := f.byID[userID]; !ok {
		return users.ErrNotFound
	}
	return nil
}

func (f *fakeUserService) SetCurrentOrg(ctx context.Context, userID int64, orgID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentOrg[userID] = orgID
	if u, ok := f.byID[userID]; ok {
		u.CurrentOrgID = orgID
	}
	return nil
}

func (f *fakeUserService) ListByOrg(ctx context.Context, requester *auth.Identity, orgID int64) ([]*users.User, error) {
	var list []*users.User
	for _, u := range f.byID {
		if u.HomeOrgID == orgID {
			list = append(list, u)
		}
	}
	return list, nil
}

type apiMemberKey struct {
	userID int64
	orgID  int64
}

// fakeOrgService is an in-memory orgs.Service for handler tests.
type fakeOrgService struct {
	orgsByID    map[int64]*orgs.Organization
	byCode      map[string]*orgs.Organization
	memberships map[apiMemberKey]roles.OrgRole

	createErr error
	grantErr  error
	revokeErr error
	updateErr error
	roleErr   error
}

func newFakeOrgService() *fakeOrgService {
	return &fakeOrgService{
		orgsByID:    make(map[int64]*orgs.Organization),
		byCode:      make(map[string]*orgs.Organization),
		memberships: make(map[apiMemberKey]roles.OrgRole),
	}
}

func (f *fakeOrgService) addOrg(id int64, code string, active bool) *orgs.Organization {
	org := &orgs.Organization{ID: id, Code: code, Name: code, IsActive: active}
	f.orgsByID[id] = org
	f.byCode[code] = org
	return org
}

func (f *fakeOrgService) addMembership(userID, orgID int64, role roles.OrgRole) {
	f.memberships[apiMemberKey{userID, orgID}] = role
}

func (f *fakeOrgService) CreateOrganization(ctx context.Context, requester *auth.Identity, req *orgs.CreateOrgRequest) (*orgs.Organization, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := int64(len(f.orgsByID) + 1)
	org := f.addOrg(id, req.Code, true)
	org.Name = req.Name
	return org, nil
}

func (f *fakeOrgService) GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error) {
	org, ok := f.orgsByID[id]
	if !ok {
		return nil, orgs.ErrOrgNotFound
	}
	return org, nil
}

func (f *fakeOrgService) GetOrganizationByCode(ctx context.Context, code string) (*orgs.Organization, error) {
	org, ok := f.byCode[code]
	if !ok {
		return nil, orgs.ErrOrgNotFound
	}
	return org, nil
}

func (f *fakeOrgService) ListActiveOrganizations(ctx context.Context) ([]*orgs.Organization, error) {
	var result []*orgs.Organization
	for _, org := range f.orgsByID {
		if org.IsActive {
			result = append(result, org)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeOrgService) UpdateOrganization(ctx context.Context, requester *auth.Identity, id int64, updates *orgs.UpdateOrgRequest) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	org, ok := f.orgsByID[id]
	if !ok {
		return orgs.ErrOrgNotFound
	}
	if updates.Name != nil {
		org.Name = *updates.Name
	}
	return nil
}

func (f *fakeOrgService) DeactivateOrganization(ctx context.Context, requester *auth.Identity, id int64) error {
	org, ok := f.orgsByID[id]
	if !ok {
		return orgs.ErrOrgNotFound
	}
	org.IsActive = false
	return nil
}

func (f *fakeOrgService) GrantAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) (*orgs.Membership, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	if _, ok := f.orgsByID[orgID]; !ok {
		return nil, orgs.ErrInvalidOrganization
	}
	if _, ok := f.memberships[apiMemberKey{userID, orgID}]; ok {
		return nil, orgs.ErrAlreadyMember
	}
	f.addMembership(userID, orgID, role)
	membership := &orgs.Membership{
		ID:             int64(len(f.memberships)),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		IsActive:       true,
		JoinedAt:       time.Now().UTC(),
	}
	return membership, nil
}

func (f *fakeOrgService) RevokeAccess(ctx context.Context, requester *auth.Identity, orgID, userID int64) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	if _, ok := f.memberships[apiMemberKey{userID, orgID}]; !ok {
		return orgs.ErrNotMember
	}
	delete(f.memberships, apiMemberKey{userID, orgID})
	return nil
}

func (f *fakeOrgService) UpdateMemberRole(ctx context.Context, requester *auth.Identity, orgID, userID int64, role roles.OrgRole) error {
	if f.roleErr != nil {
		return f.roleErr
	}
	if _, ok := f.memberships[apiMemberKey{userID, orgID}]; !ok {
		return orgs.ErrNotMember
	}
	f.memberships[apiMemberKey{userID, orgID}] = role
	return nil
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

func (f *fakeOrgService) ValidateAccess(ctx context.Context, userID, orgID int64, minRole roles.OrgRole) (*orgs.MembershipInfo, error) {
	org, ok := f.orgsByID[orgID]
	if !ok || !org.IsActive {
		return nil, nil
	}
	role, ok := f.memberships[apiMemberKey{userID, orgID}]
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

func (f *fakeOrgService) ListMembers(ctx context.Context, requester *auth.Identity, orgID int64) ([]*orgs.Membership, error) {
	var members []*orgs.Membership
	for key, role := range f.memberships {
		if key.orgID != orgID {
			continue
		}
		members = append(members, &orgs.Membership{
			OrganizationID: orgID,
			UserID:         key.userID,
			Role:           role,
			IsActive:       true,
		})
	}
	return members, nil
}

// recordingAuditLogger captures events for assertions.
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (l *recordingAuditLogger) Log(ctx context.Context, event *audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *recordingAuditLogger) Close() error { return nil }

func (l *recordingAuditLogger) byType(eventType audit.EventType) []*audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []*audit.Event
	for _, e := range l.events {
		if e.EventType == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// fakeSearcher returns canned events and records the filter it was given.
type fakeSearcher struct {
	events     []*audit.Event
	lastFilter audit.SearchFilter
	err        error
}

func (f *fakeSearcher) Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

// testEnv bundles a server with its fakes and a live session store.
type testEnv struct {
	server   *Server
	users    *fakeUserService
	orgs     *fakeOrgService
	sessions *sessions.Store
	audit    *recordingAuditLogger
	searcher *fakeSearcher
}

func newTestEnv(t *testing.T) *testEnv {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	userSvc := newFakeUserService()
	orgSvc := newFakeOrgService()
	sessionStore := sessions.NewStore(client, time.Hour)
	recorder := &recordingAuditLogger{}
	searcher := &fakeSearcher{}

	resolver := tenantctx.NewResolver(orgSvc, nil, nil, nil)
	switcher := tenantctx.NewSwitcher(orgSvc, userSvc, nil, recorder, nil, nil)

	server := NewServer(Dependencies{
		Users:       userSvc,
		Orgs:        orgSvc,
		Sessions:    sessionStore,
		Resolver:    resolver,
		Switcher:    switcher,
		Audit:       recorder,
		AuditSearch: searcher,
	})

	return &testEnv{
		server:   server,
		users:    userSvc,
		orgs:     orgSvc,
		sessions: sessionStore,
		audit:    recorder,
		searcher: searcher,
	}
}

// login creates a session for the user and returns the bearer token.
func (e *testEnv) login(t *testing.T, userID int64) string {
	token, _, err := e.sessions.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return token
}

var errBoom = errors.New("boom")
