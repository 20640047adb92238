package models

import "time"

type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

type AuditRecord struct {
	ID              string       `json:"id"`
	ContentID       string       `json:"contentId"`
	ContentType     ContentType  `json:"contentType"`
	ContentData     string       `json:"contentData"`
	Reason          string       `json:"reason"`
	ConfidenceScore float64      `json:"confidenceScore"`
	EvidenceKey     string       `json:"evidenceKey,omitempty"`
	Status          ReviewStatus `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
}

type Review struct {
	ID          string       `json:"id"`
	RecordID    string       `json:"recordId"`
	ModeratorID string       `json:"moderatorId"`
	Decision    ReviewStatus `json:"decision"`
	Note        string       `json:"note,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}
