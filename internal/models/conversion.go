package models

import (
	"time"
)

// Operation identifies which transformation a job performs
type Operation string

const (
	OpImageToPDFOCR   Operation = "image_to_pdf_ocr"
	OpImageToPDFPlain Operation = "image_to_pdf_plain"
	OpWordToPDF       Operation = "word_to_pdf"
	OpExcelToPDF      Operation = "excel_to_pdf"
)

// IsOffice reports whether the operation is delegated to the external
// office converter rather than the OCR/assembly path.
func (op Operation) IsOffice() bool {
	return op == OpWordToPDF || op == OpExcelToPDF
}

// JobState represents the lifecycle state of a conversion job
type JobState string

const (
	JobStateStaged     JobState = "staged"
	JobStateConverting JobState = "converting"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
)

// ConversionJob tracks one request's workspace and progress. It is owned
// exclusively by the orchestrator for the duration of a single request;
// its workspace is removed on every exit path.
type ConversionJob struct {
	Operation     Operation
	WorkspacePath string
	InputPath     string
	OutputPath    string
	State         JobState
	StartedAt     time.Time
}

// UsageRecord represents a user's free-conversion usage row
type UsageRecord struct {
	UserID    string    `json:"user_id"`
	FreeCount int       `json:"free_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Upload carries one received multipart file, held in memory. The bytes
// are never written to disk outside a job's workspace.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}
