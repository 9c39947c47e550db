package store

import "time"

// CommitmentType classifies what kind of action a commitment promises.
type CommitmentType string

const (
	CommitmentSendEmail   CommitmentType = "send_email"
	CommitmentCreateEvent CommitmentType = "create_event"
	CommitmentSendFile    CommitmentType = "send_file"
	CommitmentFollowUp    CommitmentType = "follow_up"
	CommitmentMakeCall    CommitmentType = "make_call"
	CommitmentOther       CommitmentType = "other"
)

// CommitmentStatus is a commitment's lifecycle state. The only legal
// transitions are pending -> completed, pending -> dismissed, and
// pending -> expired.
type CommitmentStatus string

const (
	StatusPending   CommitmentStatus = "pending"
	StatusCompleted CommitmentStatus = "completed"
	StatusDismissed CommitmentStatus = "dismissed"
	StatusExpired   CommitmentStatus = "expired"
)

// Priority is an action item's priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ScreenCapture is one screenshot + window metadata observation. Immutable
// once persisted.
type ScreenCapture struct {
	ID           int64
	Timestamp    time.Time
	AppName      string
	WindowTitle  string
	TextContent  string
	AnalysisJSON string
	ImageHash    string
}

// Commitment is a detected promise of future action.
type Commitment struct {
	ID              string
	Text            string
	Type            CommitmentType
	Recipient       string
	Deadline        *time.Time
	DetectedAt      time.Time
	CompletedAt     *time.Time
	Status          CommitmentStatus
	SourceCaptureID *int64
	ContextJSON     string
	Confidence      float64
	Synced          bool
}

// ActionItem is a detected task. Simpler lifecycle than a commitment:
// pending or completed, manual completion only.
type ActionItem struct {
	ID              string
	Text            string
	Priority        Priority
	Source          string // email, document, chat, calendar, browser, other
	DetectedAt      time.Time
	CompletedAt     *time.Time
	Status          string // pending, completed
	SourceCaptureID *int64
	ContextJSON     string
}

// EmailContext records that the user appeared to be composing, sending, or
// to have sent an email. Matching evidence only; insert-only lifecycle.
type EmailContext struct {
	ID              int64
	Timestamp       time.Time
	AppName         string
	Action          string // composing, sending, sent
	Recipient       string
	Subject         string
	BodyPreview     string
	HasAttachment   bool
	SourceCaptureID *int64
}

// CalendarContext records that the user appeared to be viewing or creating
// a calendar event. Matching evidence only; insert-only lifecycle.
type CalendarContext struct {
	ID               int64
	Timestamp        time.Time
	AppName          string
	Action           string // viewing, creating
	EventTitle       string
	EventTime        string
	ParticipantsJSON string
	SourceCaptureID  *int64
}

// CompletedAction records that a commitment was satisfied.
type CompletedAction struct {
	ID                  int64
	ActionType          string
	DetailsJSON         string
	Timestamp           time.Time
	AppName             string
	MatchedCommitmentID string
}

// millis converts a time to millisecond epoch for storage.
func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts a stored millisecond epoch back to a time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// optMillis converts a nullable time for storage.
func optMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
