package model

import "time"

// JobStatus represents the lifecycle state of a print job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{JobPending, JobPrinting, JobCompleted, JobError}

// IsValid checks if the status is a known value.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobPrinting, JobCompleted, JobError:
		return true
	}
	return false
}

// PrintJob is a document queued for printing on an account's printer.
// Intake creates jobs as pending; the desktop agent moves them forward.
type PrintJob struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	PrinterID       string    `json:"printer_id"`
	ComputerID      *string   `json:"computer_id,omitempty"`
	Status          JobStatus `json:"status"`
	FileStoragePath string    `json:"file_storage_path"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
}
