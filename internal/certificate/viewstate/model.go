// Package viewstate holds the transient presentation state of one client
// session and folds service results into it. It performs no I/O.
package viewstate

import (
	"errors"
	"sync"

	"eduverify/internal/certificate/models"
	dErrors "eduverify/pkg/domain-errors"
)

type Tab string

const (
	TabView   Tab = "view"
	TabIssue  Tab = "issue"
	TabVerify Tab = "verify"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification messages shown to the user.
const (
	MsgIssued         = "Certificate issued successfully!"
	MsgRevoked        = "Certificate revoked!"
	MsgListFailed     = "Error fetching certificates"
	MsgIssueFailed    = "Issuance failed"
	MsgRevokeFailed   = "Revocation failed"
	MsgVerifyFailed   = "Verification failed"
	MsgNoCertificates = "No certificates found"
	MsgEnterStudent   = "Enter a student address to view certificates"
)

type Notification struct {
	Message  string
	Severity Severity
	Open     bool
}

// State is an immutable copy of the model.
type State struct {
	Tab          Tab
	Student      string
	IssueStudent string
	PendingFile  *models.Document
	VerifyHash   string
	Certificates []models.Certificate
	DialogTarget *models.Certificate
	Verification models.Outcome // Valid, Invalid or empty
	Notification Notification
}

// Model is safe for concurrent use; results may arrive from several flows.
type Model struct {
	mu sync.Mutex
	s  State
}

func New() *Model {
	return &Model{s: State{Tab: TabView, Certificates: []models.Certificate{}}}
}

func (m *Model) SelectTab(t Tab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Tab = t
}

func (m *Model) SetStudent(student string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Student = student
}

func (m *Model) SetIssueForm(student string, doc *models.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.IssueStudent = student
	m.s.PendingFile = doc
}

func (m *Model) SetVerifyHash(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.VerifyHash = hash
}

func (m *Model) OpenRevokeDialog(cert models.Certificate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.DialogTarget = &cert
}

func (m *Model) CloseDialog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.DialogTarget = nil
}

func (m *Model) DismissNotification() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.Notification.Open = false
}

// ApplyList replaces the certificate snapshot, or reports the failure and
// keeps the previous snapshot.
func (m *Model) ApplyList(certs []models.Certificate, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.fail(MsgListFailed)
		return
	}
	m.s.Certificates = snapshot(certs)
}

// ApplyIssue clears the issue form and shows the issued student's fresh list.
func (m *Model) ApplyIssue(res *models.IssueResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.fail(userMessage(err, MsgIssueFailed))
		return
	}
	m.notify(MsgIssued, SeveritySuccess)
	m.s.IssueStudent = ""
	m.s.PendingFile = nil
	if res.Refreshed {
		m.s.Student = res.Student.String()
		m.s.Certificates = snapshot(res.Certificates)
	}
}

// ApplyRevoke closes the dialog and replaces the list with the fresh read.
func (m *Model) ApplyRevoke(res *models.RevokeResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.fail(userMessage(err, MsgRevokeFailed))
		return
	}
	m.notify(MsgRevoked, SeveritySuccess)
	m.s.DialogTarget = nil
	if res.Refreshed {
		m.s.Certificates = snapshot(res.Certificates)
	}
}

// ApplyVerify records Valid or Invalid. A failed check or a rejected query
// clears the previous result and notifies.
func (m *Model) ApplyVerify(res models.VerificationResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil || res.Outcome == models.OutcomeCheckFailed {
		m.s.Verification = ""
		m.fail(MsgVerifyFailed)
		return
	}
	m.s.Verification = res.Outcome
}

// Snapshot returns a copy safe to read without the lock.
func (m *Model) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.s
	out.Certificates = snapshot(m.s.Certificates)
	if m.s.DialogTarget != nil {
		c := *m.s.DialogTarget
		out.DialogTarget = &c
	}
	if m.s.PendingFile != nil {
		f := *m.s.PendingFile
		out.PendingFile = &f
	}
	return out
}

// EmptyStateMessage is what the list view shows with no certificates.
func (m *Model) EmptyStateMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return EmptyStateMessage(m.s.Student, len(m.s.Certificates))
}

// EmptyStateMessage returns the list placeholder for a student and list
// length, or "" when there is something to show.
func EmptyStateMessage(student string, n int) string {
	if n > 0 {
		return ""
	}
	if student == "" {
		return MsgEnterStudent
	}
	return MsgNoCertificates
}

func (m *Model) notify(msg string, sev Severity) {
	m.s.Notification = Notification{Message: msg, Severity: sev, Open: true}
}

func (m *Model) fail(msg string) {
	m.notify(msg, SeverityError)
}

// userMessage prefers the registry's own wording carried by a coded error.
func userMessage(err error, fallback string) string {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}

func snapshot(certs []models.Certificate) []models.Certificate {
	out := make([]models.Certificate, len(certs))
	copy(out, certs)
	return out
}
