package users

import "errors"

var (
	// ErrNotFound is returned when the user does not exist
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when the email is already registered in the
	// organization
	ErrEmailTaken = errors.New("email already registered in organization")

	// ErrAmbiguousEmail is returned when a login without an organization
	// matches users in more than one organization
	ErrAmbiguousEmail = errors.New("email exists in multiple organizations")

	// ErrInvalidCredentials is returned on a failed password check. It is
	// deliberately indistinguishable from "no such user".
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserInactive is returned when a deactivated user tries to sign in
	ErrUserInactive = errors.New("user is deactivated")

	// ErrPermissionDenied is returned when the requester may not manage the
	// target user
	ErrPermissionDenied = errors.New("permission denied")
)
