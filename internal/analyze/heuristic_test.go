package analyze

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

func TestClassifyActivity(t *testing.T) {
	tests := []struct {
		name        string
		app         string
		windowTitle string
		text        string
		want        string
	}{
		{"mail app", "Mail", "", "", "email"},
		{"calendar app", "Fantastical", "", "", "calendar"},
		{"chat app", "Slack", "", "", "chat"},
		{"meeting app", "zoom.us", "", "", "meeting"},
		{"editor", "Visual Studio Code", "", "", "coding"},
		{"browser", "Safari", "", "", "browsing"},
		{"title fallback", "SomeApp", "Inbox (42)", "", "email"},
		{"text fallback", "SomeApp", "Untitled", "To: jane@co.com\nhello", "email"},
		{"unknown", "SomeApp", "Untitled", "nothing here", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyActivity(tt.app, tt.windowTitle, tt.text); got != tt.want {
				t.Errorf("classifyActivity() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Full heuristic pass over a Mail composition screen: the commitment, its
// recipient, the deadline, and the email context should all come out.
func TestHeuristicMailComposition(t *testing.T) {
	timeNow = func() time.Time {
		return time.Date(2026, time.August, 28, 14, 0, 0, 0, time.Local)
	}
	defer func() { timeNow = time.Now }()

	text := "To: jane@co.com\nSubject: Follow up\nHi Jane,\nI'll send you the full report tomorrow."
	h := NewHeuristic()
	analysis := h.Analyze(Request{
		Text:        text,
		AppName:     "Mail",
		WindowTitle: "New Message",
		Timestamp:   time.Now(),
	})

	if analysis.AppContext.Activity != "email" {
		t.Errorf("activity = %q, want email", analysis.AppContext.Activity)
	}

	if len(analysis.Commitments) != 1 {
		t.Fatalf("got %d commitments, want 1", len(analysis.Commitments))
	}
	c := analysis.Commitments[0]
	if c.Type != store.CommitmentSendEmail {
		t.Errorf("commitment type = %q, want send_email", c.Type)
	}
	if c.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", c.Confidence)
	}
	if c.Recipient != "jane@co.com" {
		t.Errorf("recipient = %q, want jane@co.com", c.Recipient)
	}
	if c.Deadline == nil {
		t.Fatal("deadline = nil, want tomorrow 09:00")
	}
	wantDeadline := time.Date(2026, time.August, 29, 9, 0, 0, 0, time.Local)
	if !c.Deadline.Equal(wantDeadline) {
		t.Errorf("deadline = %v, want %v", c.Deadline, wantDeadline)
	}

	if !analysis.Email.Composing() {
		t.Fatal("email signal missing or not composing")
	}
	if len(analysis.Email.To) != 1 || analysis.Email.To[0] != "jane@co.com" {
		t.Errorf("email to = %v, want [jane@co.com]", analysis.Email.To)
	}
	if analysis.Email.Subject != "Follow up" {
		t.Errorf("email subject = %q, want %q", analysis.Email.Subject, "Follow up")
	}
}

func TestExtractActionItems(t *testing.T) {
	text := "TODO: update the roadmap\nURGENT: respond to the auditor\nTODO: update the roadmap\nnothing actionable here"

	items := extractActionItems(text, "writing")
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (duplicate suppressed): %+v", len(items), items)
	}

	byText := map[string]ActionItem{}
	for _, item := range items {
		byText[item.Text] = item
	}

	if item, ok := byText["update the roadmap"]; !ok {
		t.Error("missing todo item")
	} else if item.Priority != store.PriorityMedium {
		t.Errorf("todo priority = %q, want medium", item.Priority)
	}

	if item, ok := byText["respond to the auditor"]; !ok {
		t.Error("missing urgent item")
	} else if item.Priority != store.PriorityHigh {
		t.Errorf("urgent priority = %q, want high", item.Priority)
	}

	for _, item := range items {
		if item.Source != "document" {
			t.Errorf("source = %q, want document", item.Source)
		}
	}
}

func TestCalendarSignalCreating(t *testing.T) {
	h := NewHeuristic()
	analysis := h.Analyze(Request{
		Text:        "Event Title: Budget review\nAdd Invitees\nStarts: 2:00 pm\nEnds: 3:00 pm",
		AppName:     "Calendar",
		WindowTitle: "New Event",
		Timestamp:   time.Now(),
	})

	if !analysis.Calendar.Creating() {
		t.Fatal("calendar signal missing or not creating")
	}
	if analysis.Calendar.EventTitle != "Budget review" {
		t.Errorf("event title = %q, want %q", analysis.Calendar.EventTitle, "Budget review")
	}
	if analysis.Calendar.EventTime == "" {
		t.Error("event time empty, want first time from text")
	}
}
