package models

import "time"

// FixedCertificateScore is the score stored on every certificate issued on course completion.
// Quiz results are not weighted into it.
const FixedCertificateScore = 100

// Certificate represents a permanent proof-of-completion record
type Certificate struct {
	ID                int       `json:"id"`
	StudentID         int       `json:"studentId"`
	CourseID          int       `json:"courseId"`
	CertificateNumber string    `json:"certificateNumber"`
	IssuedAt          time.Time `json:"issuedAt"`
	ScorePercentage   int       `json:"scorePercentage"`
}

// CertificateListItem represents a certificate with the course title for list responses
type CertificateListItem struct {
	CertificateNumber string    `json:"certificateNumber"`
	CourseID          int       `json:"courseId"`
	CourseTitle       string    `json:"courseTitle"`
	IssuedAt          time.Time `json:"issuedAt"`
	ScorePercentage   int       `json:"scorePercentage"`
}

// IssueCertificateRequest represents an administrative request to issue a certificate
type IssueCertificateRequest struct {
	StudentID int `json:"studentId" example:"1"`
	CourseID  int `json:"courseId" example:"1"`
}
