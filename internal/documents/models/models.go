// Package models defines onboarding document metadata. File bytes live
// in object storage; this service tracks metadata and review state only.
package models

import "time"

type DocumentType string

const (
	TypeIDCard          DocumentType = "id_card"
	TypeAddressProof    DocumentType = "address_proof"
	TypeHealthInsurance DocumentType = "health_insurance"
)

// RequiredTypes are the documents every beneficiary must have approved
// before onboarding completes.
var RequiredTypes = []DocumentType{TypeIDCard, TypeAddressProof, TypeHealthInsurance}

func KnownType(t DocumentType) bool {
	for _, known := range RequiredTypes {
		if known == t {
			return true
		}
	}
	return false
}

type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusApproved DocumentStatus = "approved"
	StatusRejected DocumentStatus = "rejected"
)

type Document struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Type         DocumentType   `json:"type"`
	Status       DocumentStatus `json:"status"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	SizeBytes    int64          `json:"size_bytes"`
	SHA256       string         `json:"sha256"`
	RejectReason string         `json:"reject_reason,omitempty"`
	ReviewedBy   string         `json:"reviewed_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type UploadRequest struct {
	Type      DocumentType `json:"type"`
	Filename  string       `json:"filename"`
	MimeType  string       `json:"mime_type"`
	SizeBytes int64        `json:"size_bytes"`
	SHA256    string       `json:"sha256"`
}

type ReviewRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Completion reports per-type review state for one user.
type Completion struct {
	Complete bool                            `json:"complete"`
	Statuses map[DocumentType]DocumentStatus `json:"statuses"`
}
