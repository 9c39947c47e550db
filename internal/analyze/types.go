// Package analyze converts extracted screen text into structured semantic
// records: activity classification, commitments, action items, and
// email/calendar side-channel context.
//
// It is a two-tier design. The heuristic tier (regex/keyword rule tables)
// always runs and needs no external service. The LLM tier is optional,
// gated by configuration, an API key, and a minimum text length; its
// requests are collected by a small batching queue and any failure falls
// back to the heuristic result for the same text.
package analyze

import (
	"time"

	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Every heuristic detection carries this confidence.
const heuristicConfidence = 0.7

// Request is one analysis request: the OCR text plus window metadata.
type Request struct {
	Text        string
	AppName     string
	WindowTitle string
	Timestamp   time.Time
}

// AppContext classifies what the user was doing.
type AppContext struct {
	App      string `json:"app"`
	Activity string `json:"activity"`
}

// Commitment is a detected promise of future action, before persistence.
type Commitment struct {
	Text       string               `json:"text"`
	Type       store.CommitmentType `json:"type"`
	Recipient  string               `json:"recipient,omitempty"`
	Deadline   *time.Time           `json:"deadline,omitempty"`
	Confidence float64              `json:"confidence"`
}

// ActionItem is a detected task, before persistence.
type ActionItem struct {
	Text     string         `json:"text"`
	Priority store.Priority `json:"priority"`
	Source   string         `json:"source"`
}

// EmailSignal records apparent email activity on screen.
type EmailSignal struct {
	Action        string   `json:"action"` // composing, sending, sent
	To            []string `json:"to,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	BodyPreview   string   `json:"body_preview,omitempty"`
	HasAttachment bool     `json:"has_attachment"`
}

// Composing reports whether the signal indicates an email being written.
func (e *EmailSignal) Composing() bool {
	return e != nil && e.Action == "composing"
}

// CalendarSignal records apparent calendar activity on screen.
type CalendarSignal struct {
	Action       string   `json:"action"` // viewing, creating
	EventTitle   string   `json:"event_title,omitempty"`
	EventTime    string   `json:"event_time,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// Creating reports whether the signal indicates event creation.
func (c *CalendarSignal) Creating() bool {
	return c != nil && c.Action == "creating"
}

// ScreenAnalysis is the structured semantic record for one capture.
type ScreenAnalysis struct {
	Timestamp   time.Time       `json:"timestamp"`
	AppContext  AppContext      `json:"app_context"`
	Commitments []Commitment    `json:"commitments"`
	ActionItems []ActionItem    `json:"action_items"`
	Email       *EmailSignal    `json:"email_context,omitempty"`
	Calendar    *CalendarSignal `json:"calendar_context,omitempty"`
}
