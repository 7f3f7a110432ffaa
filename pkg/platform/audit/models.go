package audit

import (
	"context"
	"time"

	id "checkin/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every consent decision a patient or the scheduler makes. These go
	// through the transactional outbox and are retained indefinitely.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine, high-volume activity such as access
	// checks and reminder dispatch. These can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is the stored form of every audit record. Keep it transport-agnostic
// so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	PatientID id.PatientID
	ConsentID string
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID is who drove the action: "patient", "scheduler" or a staff ID.
	ActorID string
	// Channel is a coarse summary of the client (see metadata.Channel), kept
	// instead of the raw User-Agent.
	Channel  string
	ClientIP string
}

type AuditEvent string

const (
	EventConsentGranted     AuditEvent = "consent_granted"
	EventConsentDeclined    AuditEvent = "consent_declined"
	EventConsentWithdrawn   AuditEvent = "consent_withdrawn"
	EventConsentRenewed     AuditEvent = "consent_renewed"
	EventConsentAutoRenewed AuditEvent = "consent_auto_renewed"

	EventConsentChecked AuditEvent = "consent_checked"
	EventReminderSent   AuditEvent = "consent_reminder_sent"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentGranted:     CategoryCompliance,
	EventConsentDeclined:    CategoryCompliance,
	EventConsentWithdrawn:   CategoryCompliance,
	EventConsentRenewed:     CategoryCompliance,
	EventConsentAutoRenewed: CategoryCompliance,

	EventConsentChecked: CategoryOperations,
	EventReminderSent:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The Postgres implementation writes to the
// outbox and joins the caller's transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPatient(ctx context.Context, patientID id.PatientID) ([]Event, error)
}

// ComplianceEvent captures a consent decision requiring guaranteed persistence.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp time.Time    // set from the request time when zero
	PatientID id.PatientID // required
	ConsentID string
	Action    string // e.g. "consent_withdrawn"
	Decision  string // e.g. "withdrawn", "renewed:12m"
	Reason    string
	RequestID string
	ActorID   string
	Channel   string
	ClientIP  string
}

func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		PatientID: e.PatientID,
		ConsentID: e.ConsentID,
		Subject:   e.ConsentID,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
		Channel:   e.Channel,
		ClientIP:  e.ClientIP,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are best effort and may be sampled.
type OpsEvent struct {
	Timestamp time.Time
	PatientID id.PatientID
	Subject   string
	Action    string
	Decision  string
	RequestID string
}

func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		PatientID: e.PatientID,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		RequestID: e.RequestID,
	}
}
