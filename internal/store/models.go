package store

import (
	"fmt"
	"time"

	"reelvault/internal/media"
)

// SessionStatus tracks an import session through its lifecycle.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionScanning   SessionStatus = "scanning"
	SessionHashing    SessionStatus = "hashing"
	SessionCopying    SessionStatus = "copying"
	SessionValidating SessionStatus = "validating"
	SessionFinalizing SessionStatus = "finalizing"
	SessionCompleted  SessionStatus = "completed"
	SessionPaused     SessionStatus = "paused"
	SessionCancelled  SessionStatus = "cancelled"
	SessionFailed     SessionStatus = "failed"
)

// Active reports whether the session is still mid-pipeline.
func (s SessionStatus) Active() bool {
	switch s {
	case SessionPending, SessionScanning, SessionHashing, SessionCopying, SessionValidating, SessionFinalizing:
		return true
	}
	return false
}

// Resumable reports whether a session in this status may be picked back up.
// Failed sessions stay in the set: storage faults are usually transient and
// the row keeps its can_resume flag until the run actually completes.
func (s SessionStatus) Resumable() bool {
	return s.Active() || s == SessionPaused || s == SessionFailed
}

// ParseSessionStatus validates a stored status string.
func ParseSessionStatus(value string) (SessionStatus, error) {
	status := SessionStatus(value)
	switch status {
	case SessionPending, SessionScanning, SessionHashing, SessionCopying, SessionValidating,
		SessionFinalizing, SessionCompleted, SessionPaused, SessionCancelled, SessionFailed:
		return status, nil
	}
	return "", fmt.Errorf("unknown session status %q", value)
}

// JobStatus tracks a background job through the queue.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobComplete   JobStatus = "complete"
	JobError      JobStatus = "error"
	JobDead       JobStatus = "dead"
)

// Terminal reports whether the job will never run again without operator
// intervention.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobError || s == JobDead
}

// ParseJobStatus validates a stored status string.
func ParseJobStatus(value string) (JobStatus, error) {
	status := JobStatus(value)
	switch status {
	case JobPending, JobProcessing, JobComplete, JobError, JobDead:
		return status, nil
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// PatternKind names the matching strategies a camera pattern may use.
type PatternKind string

const (
	PatternFilename  PatternKind = "filename"
	PatternFolder    PatternKind = "folder"
	PatternExtension PatternKind = "extension"
)

// ParsePatternKind validates a stored pattern kind.
func ParsePatternKind(value string) (PatternKind, error) {
	kind := PatternKind(value)
	switch kind {
	case PatternFilename, PatternFolder, PatternExtension:
		return kind, nil
	}
	return "", fmt.Errorf("unknown pattern kind %q", value)
}

// File is one piece of footage in the library, keyed by content hash.
type File struct {
	ID            int64
	ContentHash   string
	OriginalName  string
	OriginalPath  string
	ManagedPath   string
	Extension     string
	SizeBytes     int64
	FileKind      media.FileKind
	Medium        media.Medium
	FootageType   media.FootageType
	DetectedMake  string
	DetectedModel string
	CameraID      *int64
	Duration      float64
	Width         int
	Height        int
	FrameRate     float64
	Codec         string
	Processed     bool
	Hidden        bool
	ThumbnailPath string
	Caption       string
	SceneCount    *int64
	RecordedAt    *time.Time
	ImportedAt    time.Time
}

// Camera is a known capture device.
type Camera struct {
	ID     int64
	Name   string
	Make   string
	Model  string
	Medium media.Medium
}

// CameraPattern assigns files to a camera by filename or extension rule.
// Patterns evaluate in priority order; the first hit wins.
type CameraPattern struct {
	ID       int64
	CameraID int64
	Kind     PatternKind
	Pattern  string
	Priority int
}

// CameraSignature is a learned metadata profile produced by a training
// session.
type CameraSignature struct {
	ID          int64
	Name        string
	Make        string
	Model       string
	Width       int
	Height      int
	FrameRate   float64
	Confidence  float64
	MarkersJSON string
	CreatedAt   time.Time
}

// Project groups footage belonging to one wedding.
type Project struct {
	ID        int64
	Name      string
	EventDate *time.Time
	CreatedAt time.Time
}

// ImportSession records the persistent state of one import run. Step
// payloads are JSON blobs written as each pipeline step completes so an
// interrupted run resumes without repeating work.
type ImportSession struct {
	ID              string
	ProjectID       *int64
	Status          SessionStatus
	LastStep        int
	CanResume       bool
	SourcePathsJSON string
	DestinationPath string
	CopyToManaged   bool
	FootageOverride string
	TotalFiles      int64
	ProcessedFiles  int64
	DuplicateFiles  int64
	ErrorFiles      int64
	TotalBytes      int64
	ProcessedBytes  int64
	ScanJSON        string
	HashJSON        string
	CopyJSON        string
	ValidateJSON    string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Job is one queued unit of background work.
type Job struct {
	ID           int64
	JobType      string
	PayloadJSON  string
	FileID       *int64
	ProjectID    *int64
	Priority     int
	DependsOn    *int64
	Status       JobStatus
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	DurationMS   *int64
}

// JobStats summarizes queue state per status.
type JobStats struct {
	Pending    int64
	Processing int64
	Complete   int64
	Error      int64
	Dead       int64
}

// Total returns the number of jobs ever enqueued that still exist.
func (s JobStats) Total() int64 {
	return s.Pending + s.Processing + s.Complete + s.Error + s.Dead
}
