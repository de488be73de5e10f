package api

import (
	"errors"
	"net/http"

	"github.com/craftwork-crm/craftwork/pkg/httputil"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

// writeServiceError maps domain errors onto the HTTP error envelope. Unknown
// errors are logged and answered with an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orgs.ErrOrgNotFound):
		httputil.WriteNotFound(w, "organization not found")
	case errors.Is(err, users.ErrNotFound):
		httputil.WriteNotFound(w, "user not found")
	case errors.Is(err, orgs.ErrNotMember):
		httputil.WriteNotFound(w, "user is not a member of the organization")
	case errors.Is(err, orgs.ErrPermissionDenied), errors.Is(err, users.ErrPermissionDenied):
		httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodePermissionDenied, "permission denied")
	case errors.Is(err, orgs.ErrAlreadyMember):
		httputil.WriteConflict(w, httputil.CodeAlreadyMember, "user is already an active member")
	case errors.Is(err, orgs.ErrCannotRevokeHome):
		httputil.WriteConflict(w, httputil.CodeCannotRevokeHome, "home organization membership cannot be revoked")
	case errors.Is(err, orgs.ErrInvalidOrganization):
		httputil.WriteErrorCode(w, http.StatusBadRequest, httputil.CodeInvalidOrganization, "organization does not exist or is inactive")
	case errors.Is(err, orgs.ErrCodeTaken):
		httputil.WriteConflict(w, httputil.CodeConflict, "organization code already in use")
	case errors.Is(err, users.ErrInvalidCredentials):
		httputil.WriteErrorCode(w, http.StatusForbidden, httputil.CodePermissionDenied, "current password is incorrect")
	case errors.Is(err, users.ErrEmailTaken):
		httputil.WriteConflict(w, httputil.CodeConflict, "email already registered in organization")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
	}
}
