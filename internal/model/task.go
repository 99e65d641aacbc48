package model

import "time"

// TaskStatus enumerates the lifecycle states of a generation task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// GeneratedDocument is one finished petition document. Produced exactly
// once per producer per run; never reordered or mutated afterwards.
type GeneratedDocument struct {
	Seq       int    `json:"sequence_number"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	PageCount int    `json:"page_count"`
}

// Task is the caller-visible state of one generation run, keyed by case id.
// Documents is non-nil if and only if Status is completed; a failed task
// always carries a non-empty ErrorMessage.
type Task struct {
	CaseID       string              `json:"case_id"`
	Status       TaskStatus          `json:"status"`
	Progress     int                 `json:"progress"`
	Stage        string              `json:"current_stage"`
	Message      string              `json:"current_message"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Documents    []GeneratedDocument `json:"documents,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// UploadedFile is a caller-supplied, pre-extracted file record. The
// scheduler wraps these into ExtractedFile entries without re-extraction.
type UploadedFile struct {
	Filename      string `json:"filename"`
	Kind          string `json:"kind,omitempty"`
	ExtractedText string `json:"extracted_text"`
	WordCount     int    `json:"word_count,omitempty"`
	PageCount     int    `json:"page_count,omitempty"`
}

// GenerationInput is everything a caller submits to start a run.
type GenerationInput struct {
	Case  CaseInfo       `json:"case"`
	URLs  []string       `json:"urls,omitempty"`
	Files []UploadedFile `json:"files,omitempty"`
}
