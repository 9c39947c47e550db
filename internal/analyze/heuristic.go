package analyze

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/glimpsed/internal/ocr"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Heuristic is the zero-dependency analysis tier. It classifies activity
// from an app table, then window-title keywords, then text keywords, and
// extracts commitments/action items from fixed ordered rule tables.
type Heuristic struct{}

// NewHeuristic creates the heuristic tier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Analyze produces a ScreenAnalysis from text and window metadata alone.
func (h *Heuristic) Analyze(req Request) ScreenAnalysis {
	activity := classifyActivity(req.AppName, req.WindowTitle, req.Text)

	analysis := ScreenAnalysis{
		Timestamp: req.Timestamp,
		AppContext: AppContext{
			App:      req.AppName,
			Activity: activity,
		},
		Commitments: extractCommitments(req.Text),
		ActionItems: extractActionItems(req.Text, activity),
	}

	if ocr.LooksLikeEmailComposition(req.Text, req.WindowTitle) {
		headers := ocr.ParseEmailHeaders(req.Text)
		analysis.Email = &EmailSignal{
			Action:        "composing",
			To:            headers.To,
			Subject:       headers.Subject,
			BodyPreview:   preview(req.Text, 200),
			HasAttachment: headers.HasAttachment,
		}
	}

	if ocr.LooksLikeCalendar(req.Text, req.WindowTitle) {
		analysis.Calendar = calendarSignal(req.Text, req.WindowTitle)
	}

	return analysis
}

// appActivities maps app-name substrings to activities. First match wins.
var appActivities = []struct {
	substr   string
	activity string
}{
	{"mail", "email"},
	{"outlook", "email"},
	{"calendar", "calendar"},
	{"fantastical", "calendar"},
	{"slack", "chat"},
	{"discord", "chat"},
	{"messages", "chat"},
	{"teams", "chat"},
	{"zoom", "meeting"},
	{"webex", "meeting"},
	{"xcode", "coding"},
	{"code", "coding"},
	{"terminal", "coding"},
	{"iterm", "coding"},
	{"chrome", "browsing"},
	{"safari", "browsing"},
	{"firefox", "browsing"},
	{"arc", "browsing"},
	{"word", "writing"},
	{"pages", "writing"},
	{"notion", "writing"},
	{"obsidian", "writing"},
	{"excel", "spreadsheet"},
	{"numbers", "spreadsheet"},
}

// titleActivities maps window-title keywords to activities, checked when
// the app name is inconclusive.
var titleActivities = []struct {
	substr   string
	activity string
}{
	{"inbox", "email"},
	{"compose", "email"},
	{"gmail", "email"},
	{"calendar", "calendar"},
	{"new event", "calendar"},
	{"meeting", "meeting"},
	{"pull request", "coding"},
	{"docs", "writing"},
	{"sheet", "spreadsheet"},
}

// textActivities is the last resort: keywords in the OCR text itself.
var textActivities = []struct {
	substr   string
	activity string
}{
	{"subject:", "email"},
	{"to:", "email"},
	{"add invitees", "calendar"},
	{"commit", "coding"},
}

func classifyActivity(appName, windowTitle, text string) string {
	app := strings.ToLower(appName)
	for _, e := range appActivities {
		if strings.Contains(app, e.substr) {
			return e.activity
		}
	}
	title := strings.ToLower(windowTitle)
	for _, e := range titleActivities {
		if strings.Contains(title, e.substr) {
			return e.activity
		}
	}
	lower := strings.ToLower(text)
	for _, e := range textActivities {
		if strings.Contains(lower, e.substr) {
			return e.activity
		}
	}
	return "other"
}

// extractCommitments turns commitment-shaped phrases into detections. The
// recipient defaults to the first email address in the text for email
// commitments; the deadline is parsed from the phrase itself.
func extractCommitments(text string) []Commitment {
	phrases := ocr.CommitmentPhrases(text)
	if len(phrases) == 0 {
		return nil
	}

	emails := ocr.ExtractEmailAddresses(text)

	commitments := make([]Commitment, 0, len(phrases))
	for _, p := range phrases {
		c := Commitment{
			Text:       p.Text,
			Type:       store.CommitmentType(p.Type),
			Confidence: heuristicConfidence,
		}
		if c.Type == store.CommitmentSendEmail && len(emails) > 0 {
			c.Recipient = emails[0]
		}
		if deadline, ok := ParseDeadline(p.Text, timeNow()); ok {
			c.Deadline = &deadline
		}
		commitments = append(commitments, c)
	}
	return commitments
}

// actionItemPattern binds a task marker to a priority.
type actionItemPattern struct {
	Name     string
	Regex    string
	Priority store.Priority
}

// actionItemPatterns is the fixed ordered rule table for task extraction.
// The first capture group is the task text.
var actionItemPatterns = []actionItemPattern{
	{Name: "urgent", Regex: `(?i)\burgent:?\s+(.+)`, Priority: store.PriorityHigh},
	{Name: "action", Regex: `(?i)\baction(?: item)?:\s*(.+)`, Priority: store.PriorityHigh},
	{Name: "todo", Regex: `(?i)\btodo:?\s+(.+)`, Priority: store.PriorityMedium},
	{Name: "need_to", Regex: `(?i)\bneed to\s+(.{4,})`, Priority: store.PriorityMedium},
	{Name: "reminder", Regex: `(?i)\breminder:\s*(.+)`, Priority: store.PriorityLow},
}

var compiledActionItemPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(actionItemPatterns))
	for i, p := range actionItemPatterns {
		out[i] = regexp.MustCompile(p.Regex)
	}
	return out
}()

func extractActionItems(text, activity string) []ActionItem {
	var items []ActionItem
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		for i, re := range compiledActionItemPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			task := strings.TrimSpace(m[1])
			if task == "" || seen[task] {
				continue
			}
			seen[task] = true
			items = append(items, ActionItem{
				Text:     task,
				Priority: actionItemPatterns[i].Priority,
				Source:   actionSource(activity),
			})
			break
		}
	}
	return items
}

// actionSource maps the classified activity to an action item source.
func actionSource(activity string) string {
	switch activity {
	case "email":
		return "email"
	case "chat", "meeting":
		return "chat"
	case "calendar":
		return "calendar"
	case "browsing":
		return "browser"
	case "writing", "spreadsheet":
		return "document"
	default:
		return "other"
	}
}

var eventTitleRe = regexp.MustCompile(`(?im)^\s*(?:event\s+)?title:\s*(.+)$`)

func calendarSignal(text, windowTitle string) *CalendarSignal {
	lower := strings.ToLower(text)
	title := strings.ToLower(windowTitle)

	action := "viewing"
	for _, kw := range []string{"new event", "create event", "add event"} {
		if strings.Contains(title, kw) || strings.Contains(lower, kw) {
			action = "creating"
			break
		}
	}

	sig := &CalendarSignal{Action: action}
	if m := eventTitleRe.FindStringSubmatch(text); m != nil {
		sig.EventTitle = strings.TrimSpace(m[1])
	} else if action == "creating" {
		sig.EventTitle = strings.TrimSpace(windowTitle)
	}
	if times := ocr.ExtractTimes(text); len(times) > 0 {
		sig.EventTime = times[0]
	}
	sig.Participants = ocr.ExtractEmailAddresses(text)
	return sig
}

func preview(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
