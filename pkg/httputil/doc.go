// Package httputil provides HTTP utilities for standardized request/response handling.
//
// Every non-2xx response uses the ErrorResponse envelope:
//
//	{"code": "organization_access_denied", "message": "no active membership"}
//
// Codes are stable identifiers clients may branch on; messages are for humans
// and may change.
//
// Request parsing:
//
//	var req SwitchContextRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//
//	orgID, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	if !ok {
//		return
//	}
package httputil
