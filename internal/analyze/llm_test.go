package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

func TestParseAnalysisJSON(t *testing.T) {
	req := Request{AppName: "Mail", Timestamp: time.Now()}

	content := "```json\n" + `{
		"activity": "email",
		"commitments": [
			{"text": "I'll send the report", "type": "send_email", "recipient": "jane@co.com", "confidence": 0.92}
		],
		"actionItems": [
			{"text": "review budget", "priority": "high", "source": "email"}
		],
		"emailContext": {"action": "composing", "to": ["jane@co.com"], "subject": "Report"}
	}` + "\n```"

	analysis, err := parseAnalysisJSON(content, req)
	require.NoError(t, err)

	assert.Equal(t, "email", analysis.AppContext.Activity)
	assert.Equal(t, "Mail", analysis.AppContext.App)

	require.Len(t, analysis.Commitments, 1)
	assert.Equal(t, store.CommitmentSendEmail, analysis.Commitments[0].Type)
	assert.Equal(t, "jane@co.com", analysis.Commitments[0].Recipient)
	assert.Equal(t, 0.92, analysis.Commitments[0].Confidence)

	require.Len(t, analysis.ActionItems, 1)
	assert.Equal(t, store.PriorityHigh, analysis.ActionItems[0].Priority)

	require.NotNil(t, analysis.Email)
	assert.True(t, analysis.Email.Composing())
	assert.Nil(t, analysis.Calendar)
}

func TestParseAnalysisJSONMalformed(t *testing.T) {
	_, err := parseAnalysisJSON("not json at all", Request{})
	require.Error(t, err)
}

func TestParseAnalysisJSONNormalizesFields(t *testing.T) {
	content := `{
		"activity": "hacking",
		"commitments": [
			{"text": "do the thing", "type": "invent_time_travel", "confidence": 7.5},
			{"text": "", "type": "send_email"}
		],
		"actionItems": [
			{"text": "task", "priority": "critical"}
		]
	}`

	analysis, err := parseAnalysisJSON(content, Request{})
	require.NoError(t, err)

	assert.Equal(t, "other", analysis.AppContext.Activity)

	require.Len(t, analysis.Commitments, 1, "empty-text commitment dropped")
	assert.Equal(t, store.CommitmentOther, analysis.Commitments[0].Type)
	assert.Equal(t, heuristicConfidence, analysis.Commitments[0].Confidence, "out-of-range confidence replaced")

	require.Len(t, analysis.ActionItems, 1)
	assert.Equal(t, store.PriorityMedium, analysis.ActionItems[0].Priority, "unknown priority defaults to medium")
}

func TestParseAnalysisJSONDeadline(t *testing.T) {
	timeNow = func() time.Time {
		return time.Date(2026, time.August, 28, 10, 0, 0, 0, time.Local)
	}
	defer func() { timeNow = time.Now }()

	content := `{"activity": "email", "commitments": [{"text": "send it", "type": "send_email", "deadline": "tomorrow", "confidence": 0.9}]}`
	analysis, err := parseAnalysisJSON(content, Request{})
	require.NoError(t, err)

	require.Len(t, analysis.Commitments, 1)
	require.NotNil(t, analysis.Commitments[0].Deadline)
	assert.Equal(t, time.Date(2026, time.August, 29, 9, 0, 0, 0, time.Local), *analysis.Commitments[0].Deadline)
}

func TestBuildUserPromptTruncates(t *testing.T) {
	long := make([]byte, maxPromptTextChars*2)
	for i := range long {
		long[i] = 'x'
	}
	prompt := buildUserPrompt(Request{Text: string(long), AppName: "Mail"})
	assert.Less(t, len(prompt), maxPromptTextChars+len(analysisSchema)+200)
}
