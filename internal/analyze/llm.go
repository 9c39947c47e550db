package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Default configuration values.
const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	defaultOpenAIBaseURL    = "https://api.openai.com"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultMaxTokens        = 1024
	defaultHTTPTimeout      = 60 * time.Second

	// Screen text beyond this is truncated before embedding in the prompt.
	maxPromptTextChars = 3000
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// completer performs one chat-style completion call.
type completer interface {
	// Complete sends the system and user prompts and returns the raw
	// model output text.
	Complete(ctx context.Context, system, user string) (string, error)

	// Available returns true if the completer is configured.
	Available() bool
}

// ClientConfig holds provider-specific settings.
type ClientConfig struct {
	Provider string // "anthropic" or "openai"
	APIKey   string
	Model    string
	BaseURL  string
}

// newCompleter creates a completer for the configured provider.
func newCompleter(cfg ClientConfig) (completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// analysisPrompt is the fixed system prompt for semantic extraction.
const analysisPrompt = `You analyze text captured from a user's screen and extract structured productivity context.

Identify:
1. What activity the user is engaged in (email, calendar, chat, coding, browsing, writing, meeting, spreadsheet, or other)
2. Commitments: promises of future action ("I'll send...", "let me schedule...")
3. Action items: explicit tasks (TODO, URGENT, reminders)
4. Email context: whether an email is being composed, to whom, with what subject
5. Calendar context: whether an event is being viewed or created

Respond ONLY with a JSON object, no additional text.`

// analysisSchema is embedded in the user prompt so the model returns the
// exact shape the pipeline consumes.
const analysisSchema = `{
  "activity": "email|calendar|chat|coding|browsing|writing|meeting|spreadsheet|other",
  "commitments": [{"text": "...", "type": "send_email|create_event|send_file|follow_up|make_call|other", "recipient": "...", "deadline": "...", "confidence": 0.9}],
  "actionItems": [{"text": "...", "priority": "high|medium|low", "source": "email|document|chat|calendar|browser|other"}],
  "emailContext": {"action": "composing|sending|sent", "to": ["..."], "subject": "...", "has_attachment": false},
  "calendarContext": {"action": "viewing|creating", "event_title": "...", "event_time": "...", "participants": ["..."]}
}`

// buildUserPrompt embeds the (truncated) screen text and target schema.
func buildUserPrompt(req Request) string {
	text := req.Text
	if len(text) > maxPromptTextChars {
		text = text[:maxPromptTextChars]
	}
	return fmt.Sprintf("App: %s\nWindow: %s\n\nScreen text:\n%s\n\nReturn JSON matching this schema:\n%s",
		req.AppName, req.WindowTitle, text, analysisSchema)
}

// anthropicClient implements completer against the Claude Messages API.
type anthropicClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newAnthropicClient(cfg ClientConfig) (completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &anthropicClient{
		model:      model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *anthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.3, // Low temperature for consistent extraction
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.apiKey)
	httpReq.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return parsed.Content[0].Text, nil
}

func (a *anthropicClient) Available() bool {
	return a.apiKey != ""
}

// openAIClient implements completer against the Chat Completions API.
type openAIClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newOpenAIClient(cfg ClientConfig) (completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIClient{
		model:      model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *openAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req := openAIRequest{
		Model:       o.model,
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.3,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (o *openAIClient) Available() bool {
	return o.apiKey != ""
}

// llmAnalysis is the expected JSON response shape.
type llmAnalysis struct {
	Activity    string `json:"activity"`
	Commitments []struct {
		Text       string  `json:"text"`
		Type       string  `json:"type"`
		Recipient  string  `json:"recipient"`
		Deadline   string  `json:"deadline"`
		Confidence float64 `json:"confidence"`
	} `json:"commitments"`
	ActionItems []struct {
		Text     string `json:"text"`
		Priority string `json:"priority"`
		Source   string `json:"source"`
	} `json:"actionItems"`
	EmailContext *struct {
		Action        string   `json:"action"`
		To            []string `json:"to"`
		Subject       string   `json:"subject"`
		BodyPreview   string   `json:"body_preview"`
		HasAttachment bool     `json:"has_attachment"`
	} `json:"emailContext"`
	CalendarContext *struct {
		Action       string   `json:"action"`
		EventTitle   string   `json:"event_title"`
		EventTime    string   `json:"event_time"`
		Participants []string `json:"participants"`
	} `json:"calendarContext"`
}

// parseAnalysisJSON parses the model output into a ScreenAnalysis. Models
// sometimes wrap JSON in markdown code fences, which are stripped first.
// Missing fields default to heuristic-equivalent values.
func parseAnalysisJSON(content string, req Request) (ScreenAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed llmAnalysis
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ScreenAnalysis{}, fmt.Errorf("malformed analysis JSON: %w", err)
	}

	analysis := ScreenAnalysis{
		Timestamp: req.Timestamp,
		AppContext: AppContext{
			App:      req.AppName,
			Activity: validActivity(parsed.Activity),
		},
	}

	for _, c := range parsed.Commitments {
		commitment := Commitment{
			Text:       c.Text,
			Type:       validCommitmentType(c.Type),
			Recipient:  c.Recipient,
			Confidence: clampConfidence(c.Confidence),
		}
		if c.Deadline != "" {
			if deadline, ok := ParseDeadline(c.Deadline, timeNow()); ok {
				commitment.Deadline = &deadline
			}
		}
		if commitment.Text != "" {
			analysis.Commitments = append(analysis.Commitments, commitment)
		}
	}

	for _, a := range parsed.ActionItems {
		if a.Text == "" {
			continue
		}
		analysis.ActionItems = append(analysis.ActionItems, ActionItem{
			Text:     a.Text,
			Priority: validPriority(a.Priority),
			Source:   a.Source,
		})
	}

	if parsed.EmailContext != nil && parsed.EmailContext.Action != "" {
		analysis.Email = &EmailSignal{
			Action:        parsed.EmailContext.Action,
			To:            parsed.EmailContext.To,
			Subject:       parsed.EmailContext.Subject,
			BodyPreview:   parsed.EmailContext.BodyPreview,
			HasAttachment: parsed.EmailContext.HasAttachment,
		}
	}
	if parsed.CalendarContext != nil && parsed.CalendarContext.Action != "" {
		analysis.Calendar = &CalendarSignal{
			Action:       parsed.CalendarContext.Action,
			EventTitle:   parsed.CalendarContext.EventTitle,
			EventTime:    parsed.CalendarContext.EventTime,
			Participants: parsed.CalendarContext.Participants,
		}
	}

	return analysis, nil
}

func validActivity(s string) string {
	switch s {
	case "email", "calendar", "chat", "coding", "browsing", "writing", "meeting", "spreadsheet":
		return s
	default:
		return "other"
	}
}

func validCommitmentType(s string) store.CommitmentType {
	switch t := store.CommitmentType(s); t {
	case store.CommitmentSendEmail, store.CommitmentCreateEvent, store.CommitmentSendFile,
		store.CommitmentFollowUp, store.CommitmentMakeCall:
		return t
	default:
		return store.CommitmentOther
	}
}

func validPriority(s string) store.Priority {
	switch p := store.Priority(s); p {
	case store.PriorityHigh, store.PriorityLow:
		return p
	default:
		return store.PriorityMedium
	}
}

func clampConfidence(c float64) float64 {
	if c <= 0 || c > 1 {
		return heuristicConfidence
	}
	return c
}

// Ensure interfaces are implemented.
var _ completer = (*anthropicClient)(nil)
var _ completer = (*openAIClient)(nil)
