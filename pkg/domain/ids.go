// Package domain holds typed identifiers shared across modules.
//
// Each ID is a distinct named type over uuid.UUID so the compiler rejects
// passing a PatientID where a ConsentID is expected. Construct IDs from
// external input only through the Parse functions, which reject empty, malformed
// and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "checkin/pkg/domain-errors"
)

type (
	ConsentID      uuid.UUID
	PatientID      uuid.UUID
	FormTemplateID uuid.UUID
	OrganizationID uuid.UUID
	SubmissionID   uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID("consent ID", s)
	return ConsentID(u), err
}

func ParsePatientID(s string) (PatientID, error) {
	u, err := parseUUID("patient ID", s)
	return PatientID(u), err
}

func ParseFormTemplateID(s string) (FormTemplateID, error) {
	u, err := parseUUID("form template ID", s)
	return FormTemplateID(u), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID("organization ID", s)
	return OrganizationID(u), err
}

func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID("submission ID", s)
	return SubmissionID(u), err
}

func (id ConsentID) String() string      { return uuid.UUID(id).String() }
func (id PatientID) String() string      { return uuid.UUID(id).String() }
func (id FormTemplateID) String() string { return uuid.UUID(id).String() }
func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) String() string   { return uuid.UUID(id).String() }

func (id ConsentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PatientID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id FormTemplateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs appear as plain UUID strings in JSON and logs.
func (id ConsentID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id PatientID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id FormTemplateID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SubmissionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *ConsentID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PatientID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *FormTemplateID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrganizationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SubmissionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
