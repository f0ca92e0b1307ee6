package models

import (
	"encoding/json"
	"time"
)

// AuditEventType represents the type of an audit event
type AuditEventType string

const (
	AuditEventSectionCompleted  AuditEventType = "section_completed"
	AuditEventCertificateIssued AuditEventType = "certificate_issued"
)

// AuditEvent is reported to the audit sink after a successful transition
type AuditEvent struct {
	Type       AuditEventType  `json:"type"`
	StudentID  int             `json:"studentId"`
	CourseID   int             `json:"courseId"`
	SectionID  int             `json:"sectionId,omitempty"`
	Percentage int             `json:"percentage,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// ReconciliationReport summarizes a reconciliation sweep
type ReconciliationReport struct {
	Checked            int `json:"checked"`
	CertificatesIssued int `json:"certificatesIssued"`
	Failed             int `json:"failed"`
}
