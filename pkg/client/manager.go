package client

import (
	"context"
	"sync"
)

// State is the context manager's lifecycle state.
type State int

const (
	// StateUninitialized means no context load has been attempted
	StateUninitialized State = iota
	// StateLoading means a load or switch is in flight
	StateLoading
	// StateReady means the context is known; the organization may be nil for
	// an unscoped super-admin or when a selection is still required
	StateReady
	// StateError means the last load or switch failed. No organization data
	// from before the failure is served.
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the manager's state.
type Snapshot struct {
	State State

	// Organization is the active organization, nil when unscoped or when a
	// selection is required.
	Organization *Organization
	Role         string
	Source       string

	// SelectionRequired is set when the caller must pick from Candidates.
	SelectionRequired bool
	Candidates        []OrgCandidate

	Err error
}

// ContextManager tracks the active organization on the client side. All
// transitions are serialized; responses from superseded requests are
// discarded, so a slow response can never clobber a newer switch.
type ContextManager struct {
	client *Client

	mu         sync.Mutex
	snapshot   Snapshot
	generation uint64
	onChange   func(Snapshot)
}

// NewContextManager creates a manager in the uninitialized state
func NewContextManager(client *Client) *ContextManager {
	return &ContextManager{
		client:   client,
		snapshot: Snapshot{State: StateUninitialized},
	}
}

// OnChange registers a callback invoked after every state transition. The
// callback runs with the lock released and receives a copy.
func (m *ContextManager) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Current returns the current snapshot
func (m *ContextManager) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Initialize loads the context after sign-in. When the server requires a
// selection and exactly one organization is available, it is selected
// automatically.
func (m *ContextManager) Initialize(ctx context.Context) Snapshot {
	generation := m.begin()

	result, err := m.client.GetContext(ctx)
	if err != nil {
		return m.fail(generation, err)
	}

	if result.Status == "selection_required" {
		if len(result.Organizations) == 1 {
			return m.switchLocked(ctx, generation, result.Organizations[0].OrganizationID)
		}
		return m.commit(generation, Snapshot{
			State:             StateReady,
			SelectionRequired: true,
			Candidates:        result.Organizations,
		})
	}

	return m.commit(generation, Snapshot{
		State:        StateReady,
		Organization: result.Organization,
		Role:         result.Role,
		Source:       result.Source,
	})
}

// Switch changes the active organization. On failure the manager lands in
// the error state; it never silently keeps serving the previous
// organization.
func (m *ContextManager) Switch(ctx context.Context, orgID int64) Snapshot {
	generation := m.begin()
	return m.switchLocked(ctx, generation, orgID)
}

// ClearContext drops the selection, returning a super-admin to unscoped mode
func (m *ContextManager) ClearContext(ctx context.Context) Snapshot {
	generation := m.begin()

	if err := m.client.ClearContext(ctx); err != nil {
		return m.fail(generation, err)
	}

	return m.commit(generation, Snapshot{State: StateReady})
}

// SignOut resets the manager and clears the client token
func (m *ContextManager) SignOut() {
	m.mu.Lock()
	m.generation++
	m.snapshot = Snapshot{State: StateUninitialized}
	snapshot := m.snapshot
	onChange := m.onChange
	m.mu.Unlock()

	m.client.SetToken("")
	if onChange != nil {
		onChange(snapshot)
	}
}

func (m *ContextManager) switchLocked(ctx context.Context, generation uint64, orgID int64) Snapshot {
	org, err := m.client.SwitchOrganization(ctx, orgID)
	if err != nil {
		return m.fail(generation, err)
	}

	return m.commit(generation, Snapshot{
		State:        StateReady,
		Organization: org,
		Source:       "current",
	})
}

// begin starts a new request generation and moves to loading.
func (m *ContextManager) begin() uint64 {
	m.mu.Lock()
	m.generation++
	generation := m.generation
	m.snapshot = Snapshot{State: StateLoading}
	snapshot := m.snapshot
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	return generation
}

// commit installs the snapshot unless a newer request superseded this one.
func (m *ContextManager) commit(generation uint64, snapshot Snapshot) Snapshot {
	m.mu.Lock()
	if generation != m.generation {
		// Stale response; whatever superseded us owns the state now.
		current := m.snapshot
		m.mu.Unlock()
		return current
	}
	m.snapshot = snapshot
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	return snapshot
}

func (m *ContextManager) fail(generation uint64, err error) Snapshot {
	return m.commit(generation, Snapshot{State: StateError, Err: err})
}
