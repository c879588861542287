package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is a complaint filed by a regular user against another account or a post.
type Report struct {
	ID         string    `json:"report_id"`
	TargetID   string    `json:"target_id"`
	ReporterID string    `json:"reporter_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewReport(targetID, reporterID, reason string) Report {
	return Report{
		ID:         uuid.NewString(),
		TargetID:   targetID,
		ReporterID: reporterID,
		Reason:     reason,
		CreatedAt:  Now(),
	}
}
