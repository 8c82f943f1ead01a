package constants

// FileStatus is the lifecycle state of a file inside a processing session.
type FileStatus string

// Stable values (stored as-is in session_files.status).
const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusError      FileStatus = "error"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusError
}

// UsageEvent names the events posted to the usage log endpoint.
type UsageEvent string

const (
	UsageSessionStart UsageEvent = "session_start"
	UsageSessionEnd   UsageEvent = "session_end"
	UsageError        UsageEvent = "error"
)
