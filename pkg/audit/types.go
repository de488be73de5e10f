// Package audit records security-relevant actions to an append-only trail.
//
// Events are written after the action succeeds (or is denied) and are never
// updated or deleted by application code. Retention is handled out of band.
package audit

import (
	"encoding/json"
	"strconv"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeLogin       EventType = "auth.login"
	EventTypeLoginFailed EventType = "auth.login_failed"
	EventTypeLogout      EventType = "auth.logout"

	// User lifecycle events
	EventTypeUserCreate     EventType = "user.create"
	EventTypeUserDeactivate EventType = "user.deactivate"
	EventTypeRoleChange     EventType = "user.role_change"
	EventTypePasswordReset  EventType = "user.password_reset"

	// Session events
	EventTypeForceLogout EventType = "session.force_logout"

	// Organization membership events
	EventTypeMembershipGrant  EventType = "membership.grant"
	EventTypeMembershipRevoke EventType = "membership.revoke"

	// Organization context events
	EventTypeContextSwitch EventType = "context.switch"

	// Organization lifecycle events
	EventTypeOrgCreate     EventType = "org.create"
	EventTypeOrgDeactivate EventType = "org.deactivate"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// SystemOrg is the rendered organization value for events recorded outside
// any organization scope (unscoped super-admin actions, system jobs).
const SystemOrg = "_system"

// Event represents a single audit trail entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	ActorID    *int64 `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// OrganizationID is nil for unscoped events; rendered as SystemOrg.
	OrganizationID *int64 `json:"organization_id,omitempty"`

	// Target information
	TargetUserID *int64 `json:"target_user_id,omitempty"`
	TargetID     string `json:"target_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Scope renders the organization scope of the event.
func (e *Event) Scope() string {
	if e.OrganizationID == nil {
		return SystemOrg
	}
	return strconv.FormatInt(*e.OrganizationID, 10)
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter represents filters for querying the audit trail
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	ActorID *int64

	// Scope filters
	OrganizationID *int64

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Target filters
	TargetUserID *int64

	// Pagination; results are always newest first
	Limit  int
	Offset int
}

// Stats summarizes trail activity over a time range
type Stats struct {
	TotalEvents    int64                 `json:"total_events"`
	EventsByType   map[EventType]int64   `json:"events_by_type"`
	EventsByStatus map[EventStatus]int64 `json:"events_by_status"`
	AccessDenials  int64                 `json:"access_denials"`
}
