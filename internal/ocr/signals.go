package ocr

import (
	"regexp"
	"strings"
)

// Pure text-signal helpers used by the analyzer's heuristic tier. These run
// on every extraction, so everything here is regex/keyword only, no I/O.

var (
	emailAddrRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	urlRe       = regexp.MustCompile(`https?://[^\s"'<>]+`)
	dateRe      = regexp.MustCompile(`(?i)\b(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|\d{4}-\d{2}-\d{2}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:,\s*\d{4})?|tomorrow|today|next week)\b`)
	timeRe      = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)?\b|\b\d{1,2}\s*(?:am|pm)\b`)

	toLineRe      = regexp.MustCompile(`(?im)^\s*to:\s*(.+)$`)
	subjectLineRe = regexp.MustCompile(`(?im)^\s*subject:\s*(.+)$`)
	attachmentRe  = regexp.MustCompile(`(?i)\battach(?:ed|ment)?\b`)
)

// ExtractEmailAddresses returns all email addresses found in text, in order.
func ExtractEmailAddresses(text string) []string {
	return emailAddrRe.FindAllString(text, -1)
}

// ExtractURLs returns all URLs found in text.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// ExtractDates returns date-shaped substrings (numeric dates, month names,
// and the relative phrases the deadline parser understands).
func ExtractDates(text string) []string {
	return dateRe.FindAllString(text, -1)
}

// ExtractTimes returns time-of-day substrings.
func ExtractTimes(text string) []string {
	return timeRe.FindAllString(text, -1)
}

// EmailHeaders holds the structural lines of a composed email visible on
// screen.
type EmailHeaders struct {
	To            []string
	Subject       string
	HasAttachment bool
}

// ParseEmailHeaders extracts To/Subject lines from OCR text. Recipients on
// the To line are reduced to well-formed addresses.
func ParseEmailHeaders(text string) EmailHeaders {
	var h EmailHeaders
	if m := toLineRe.FindStringSubmatch(text); m != nil {
		h.To = ExtractEmailAddresses(m[1])
	}
	if m := subjectLineRe.FindStringSubmatch(text); m != nil {
		h.Subject = strings.TrimSpace(m[1])
	}
	h.HasAttachment = attachmentRe.MatchString(text)
	return h
}

// LooksLikeEmailComposition reports whether the text or window title
// suggests the user is writing an email.
func LooksLikeEmailComposition(text, windowTitle string) bool {
	if toLineRe.MatchString(text) && subjectLineRe.MatchString(text) {
		return true
	}
	title := strings.ToLower(windowTitle)
	for _, kw := range []string{"compose", "new message", "reply", "draft"} {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// LooksLikeCalendar reports whether the text or window title suggests
// calendar content.
func LooksLikeCalendar(text, windowTitle string) bool {
	title := strings.ToLower(windowTitle)
	for _, kw := range []string{"new event", "calendar", "invite", "meeting details"} {
		if strings.Contains(title, kw) {
			return true
		}
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range []string{"add invitees", "all-day", "starts:", "ends:", "repeat:", "event title"} {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits >= 2
}

// PhrasePattern binds a commitment-shaped linguistic pattern to a
// commitment type tag. The table is ordered: for each sentence the first
// matching pattern wins.
type PhrasePattern struct {
	Name  string
	Regex string
	Type  string
}

// PhraseMatch is one commitment-shaped sentence found in text.
type PhraseMatch struct {
	Text    string
	Type    string
	Pattern string
}

// CommitmentPatterns returns the fixed table of commitment phrase patterns.
// More specific verbs come before the generic "I'll"/"I need to" catch-alls.
func CommitmentPatterns() []PhrasePattern {
	return []PhrasePattern{
		{Name: "ill_send_email", Regex: `(?i)\b(i'?ll|let me|going to) (send|email|forward|reply)\b`, Type: "send_email"},
		{Name: "ill_schedule", Regex: `(?i)\b(i'?ll|let me|going to) (schedule|set up|book|arrange)\b`, Type: "create_event"},
		{Name: "ill_share_file", Regex: `(?i)\b(i'?ll|let me|going to) (share|attach|upload)\b`, Type: "send_file"},
		{Name: "ill_call", Regex: `(?i)\b(i'?ll|let me|going to) (call|phone|ring)\b`, Type: "make_call"},
		{Name: "ill_follow_up", Regex: `(?i)\b(i'?ll|let me|going to) (follow up|get back to|circle back|check in)\b`, Type: "follow_up"},
		{Name: "remind_me", Regex: `(?i)\bremind me to\b`, Type: "follow_up"},
		{Name: "i_need_to", Regex: `(?i)\bi need to\b`, Type: "other"},
		{Name: "ill_generic", Regex: `(?i)\bi'?ll \w+`, Type: "other"},
	}
}

type compiledPhrasePattern struct {
	PhrasePattern
	regex *regexp.Regexp
}

var compiledCommitmentPatterns = func() []compiledPhrasePattern {
	patterns := CommitmentPatterns()
	compiled := make([]compiledPhrasePattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			// Skip invalid patterns
			continue
		}
		compiled = append(compiled, compiledPhrasePattern{PhrasePattern: p, regex: re})
	}
	return compiled
}()

// CommitmentPhrases finds commitment-shaped sentences in text. Each
// sentence is tagged with the type of the first pattern it matches.
func CommitmentPhrases(text string) []PhraseMatch {
	var matches []PhraseMatch
	for _, sentence := range splitSentences(text) {
		for _, p := range compiledCommitmentPatterns {
			if p.regex.MatchString(sentence) {
				matches = append(matches, PhraseMatch{
					Text:    sentence,
					Type:    p.Type,
					Pattern: p.Name,
				})
				break
			}
		}
	}
	return matches
}

// splitSentences breaks OCR text into sentence-ish units on newlines and
// terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	for _, line := range strings.Split(text, "\n") {
		var b strings.Builder
		for _, r := range line {
			b.WriteRune(r)
			if r == '.' || r == '!' || r == '?' {
				if s := strings.TrimSpace(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
