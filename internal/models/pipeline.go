package models

import "time"

type ValidationResult struct {
	IsValid            bool     `json:"isValid"`
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
	StandardizedRecord *Report  `json:"standardizedRecord,omitempty"`
}

func (v *ValidationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
}

func (v *ValidationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// SyncQueueItem wraps a locally stored record that has not yet been delivered.
type SyncQueueItem struct {
	Report        *Report   `json:"report"`
	Attempts      int       `json:"attempts"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
	LastAttemptAt time.Time `json:"lastAttemptAt,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
}

func (q *SyncQueueItem) RecordID() string {
	if q.Report == nil {
		return ""
	}
	return q.Report.ID
}

type SubmitResult struct {
	Accepted    bool     `json:"success"`
	Message     string   `json:"message"`
	RecordID    string   `json:"reportId,omitempty"`
	DuplicateOf string   `json:"duplicateOf,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

type SyncResult struct {
	Synced int `json:"syncedCount"`
	Failed int `json:"failedCount"`
}
