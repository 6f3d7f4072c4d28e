package audit

import (
	"context"
	"time"

	"eduverify/pkg/domain"
)

// EventCategory decides how an event is written: compliance events block the
// caller, operations events may be sampled or shed.
type EventCategory string

const (
	// CategoryCompliance marks changes to what the registry holds for a student.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations marks read-side activity such as verification lookups.
	CategoryOperations EventCategory = "operations"
)

// Event is the stored form of every audit record.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Student   domain.Address
	Subject   string // content hash or "index:N"
	Action    string
	Decision  string
	Reason    string
	RequestID string // Correlation ID from HTTP request context
}

type AuditEvent string

const (
	EventCertificateIssued   AuditEvent = "certificate_issued"
	EventCertificateRevoked  AuditEvent = "certificate_revoked"
	EventStudentRegistered   AuditEvent = "student_registered"
	EventCertificateVerified AuditEvent = "certificate_verified"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCertificateIssued:  CategoryCompliance,
	EventCertificateRevoked: CategoryCompliance,
	EventStudentRegistered:  CategoryCompliance,

	EventCertificateVerified: CategoryOperations,
}

// Category looks e up in the classification table; unlisted actions are
// operational.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByStudent(ctx context.Context, student domain.Address) ([]Event, error)
}

// ComplianceEvent describes an issue, revoke or registration that the
// registry accepted.
type ComplianceEvent struct {
	Timestamp time.Time      // set automatically if zero
	Student   domain.Address // required
	Subject   string
	Action    string // required
	Decision  string
	RequestID string
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the Event type stores persist.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		Student:   e.Student,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		RequestID: e.RequestID,
	}
}

// OpsEvent describes a verification lookup and its outcome.
type OpsEvent struct {
	Timestamp time.Time
	Student   domain.Address
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the Event type stores persist.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		Student:   e.Student,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
}
