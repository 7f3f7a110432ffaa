package testutil

import (
	"net/http"

	"checkin/internal/platform/middleware"
	id "checkin/pkg/domain"
)

// AsPatient marks the request as coming from patientID, the way the edge
// gateway does after authenticating the caller.
func AsPatient(req *http.Request, patientID id.PatientID) *http.Request {
	req.Header.Set(middleware.PatientIDHeader, patientID.String())
	return req
}

// AsStaff marks the request as coming from a staff member with no patient
// identity.
func AsStaff(req *http.Request, actor string) *http.Request {
	req.Header.Del(middleware.PatientIDHeader)
	req.Header.Set(middleware.ActorHeader, actor)
	return req
}
