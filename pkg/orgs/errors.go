package orgs

import "errors"

var (
	// ErrOrgNotFound is returned when an organization does not exist
	ErrOrgNotFound = errors.New("organization not found")

	// ErrInvalidOrganization is returned when the target organization does
	// not exist or is deactivated
	ErrInvalidOrganization = errors.New("invalid organization")

	// ErrPermissionDenied is returned when the requester lacks the role
	// required for the operation
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAlreadyMember is returned when the user already holds an active
	// membership in the organization
	ErrAlreadyMember = errors.New("user is already a member")

	// ErrNotMember is returned when no active membership exists to revoke
	ErrNotMember = errors.New("user is not a member")

	// ErrCannotRevokeHome is returned when revocation targets the user's
	// home organization membership
	ErrCannotRevokeHome = errors.New("cannot revoke home organization membership")

	// ErrCodeTaken is returned when an organization code is already in use
	ErrCodeTaken = errors.New("organization code already in use")
)
