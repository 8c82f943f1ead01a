package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
)

// FileRecord tracks one input file through a session.
type FileRecord struct {
	Name      string               `json:"name"`
	Size      int64                `json:"size"`
	Status    constants.FileStatus `json:"status"`
	StartTime *time.Time           `json:"startTime,omitempty"`
	EndTime   *time.Time           `json:"endTime,omitempty"`
	Result    *ExtractedInvoice    `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// FileError is a per-file failure recorded on the session.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ProcessingSession aggregates the outcome of one batch.
type ProcessingSession struct {
	SessionID      uuid.UUID    `json:"sessionId"`
	UserEmail      string       `json:"userEmail"`
	StartTime      time.Time    `json:"startTime"`
	EndTime        *time.Time   `json:"endTime,omitempty"`
	FilesProcessed int          `json:"filesProcessed"`
	SuccessCount   int          `json:"successCount"`
	ErrorCount     int          `json:"errorCount"`
	TotalAmount    float64      `json:"totalAmount"`
	Errors         []FileError  `json:"errors"`
	Files          []FileRecord `json:"files"`
	ToolVersion    string       `json:"toolVersion"`
}

// SessionSummary is the reporting view of a session.
type SessionSummary struct {
	SessionID      string      `json:"sessionId"`
	UserEmail      string      `json:"userEmail"`
	NumberOfFiles  int         `json:"numberOfFiles"`
	ProcessingTime int64       `json:"processingTime"`
	SuccessRate    int         `json:"successRate"`
	ErrorCount     int         `json:"errorCount"`
	TotalAmount    float64     `json:"totalAmount"`
	Errors         []FileError `json:"errors"`
	ToolVersion    string      `json:"toolVersion"`
}

// Progress reports how far a session has advanced.
type Progress struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Percentage int `json:"percentage"`
	Success    int `json:"success"`
	Errors     int `json:"errors"`
}
