package models

import "time"

// Certificate is the formal completion record for a workflow. At most one
// exists per workflow and it is immutable once issued.
type Certificate struct {
	WorkflowID    string     `json:"-"`
	Issued        bool       `json:"issued"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
	CertificateNo string     `json:"certificateNo,omitempty"`
	FileKey       string     `json:"fileUrl,omitempty"`
}
