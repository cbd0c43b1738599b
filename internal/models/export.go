package models

import (
	"time"

	"github.com/google/uuid"
)

// Export status values.
const (
	ExportStatusPending   = "pending"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// Export is a CSV export of a survey's responses stored in S3.
type Export struct {
	ID           uuid.UUID  `json:"id"`
	SurveyNo     int64      `json:"surveyNo"`
	Status       string     `json:"status"`
	ObjectKey    string     `json:"objectKey,omitempty"`
	RowCount     int        `json:"rowCount"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}
