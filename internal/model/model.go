package model

import (
	"errors"
	"strings"
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single entry of a chat transcript. It only lives in
// process memory; Key is a client-local list key and is never sent to the
// server.
type ChatMessage struct {
	Key       string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Stream    bool   `json:"stream"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	Response    string `json:"response"`
	SessionID   string `json:"session_id"`
	ModelUsed   string `json:"model_used"`
	ContextUsed string `json:"context_used,omitempty"`
}

// Model describes one language model the backend can serve.
type Model struct {
	Name       string `json:"name"`
	Current    bool   `json:"current"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// ModelList is the reply of GET /models.
type ModelList struct {
	Models  []Model `json:"models"`
	Current string  `json:"current"`
}

// CalendarEvent is a server-owned calendar entry. ID is zero until the
// server assigns one; the client never invents identifiers.
type CalendarEvent struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// EventDate is the ISO 8601 date-time as exchanged with the backend.
	EventDate       string `json:"event_date"`
	ReminderMinutes *int   `json:"reminder_minutes,omitempty"`
	Completed       bool   `json:"completed,omitempty"`
}

// Start parses EventDate into loc. See ParseEventDate.
func (e CalendarEvent) Start(loc *time.Location) (time.Time, error) {
	return ParseEventDate(e.EventDate, loc)
}

// SearchResult is one hit of a knowledge base search. Ordering is owned by
// the server; higher Similarity is presumed better.
type SearchResult struct {
	Title      string   `json:"title"`
	Preview    string   `json:"preview"`
	URL        string   `json:"url,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
}

// Health is the reply of the /health endpoint.
type Health struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// Stats is the free-form reply of GET /stats.
type Stats map[string]any

// HistoryEntry is one free-form item of a session history.
type HistoryEntry map[string]any

// Layouts accepted without a zone offset; interpreted in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Layouts carrying an explicit offset or Z.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

// ParseEventDate parses an ISO 8601 date or date-time.
//
// Values without an offset are taken as wall-clock time in loc. Values with
// an offset (or Z) are converted into loc. A nil loc means UTC.
func ParseEventDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty event date")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized event date: " + s)
}

// FormatEventDate renders t the way the backend expects event_date.
func FormatEventDate(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}
