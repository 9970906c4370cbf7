package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"jarviscal/internal/model"
)

// Chat sends one turn. The first call goes out without a session id; the
// server mints one and every later call reuses it until ClearSession.
// Turns are serialized per client. A failed call leaves the session as is.
func (c *Client) Chat(ctx context.Context, message string, stream bool) (model.ChatResponse, error) {
	c.turnMu.Lock()
	defer c.turnMu.Unlock()

	req := model.ChatRequest{
		Message:   message,
		SessionID: c.SessionID(),
		Stream:    stream,
	}
	var resp model.ChatResponse
	if err := c.do(ctx, "chat", http.MethodPost, c.endpoint("/chat", nil), req, &resp); err != nil {
		return model.ChatResponse{}, err
	}
	if resp.SessionID != "" {
		c.SetSessionID(resp.SessionID)
	}
	return resp, nil
}

// ListModels returns the available models and the active one.
func (c *Client) ListModels(ctx context.Context) (model.ModelList, error) {
	var out model.ModelList
	if err := c.do(ctx, "fetch models", http.MethodGet, c.endpoint("/models", nil), nil, &out); err != nil {
		return model.ModelList{}, err
	}
	return out, nil
}

// SwitchModel activates the named model.
func (c *Client) SwitchModel(ctx context.Context, name string) (bool, error) {
	var out successResponse
	u := c.endpoint("/models/switch/"+url.PathEscape(name), nil)
	if err := c.do(ctx, "switch model", http.MethodPost, u, nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// GetUpcomingEvents returns events for the next days days (7 when <= 0),
// in the order the server sent them.
func (c *Client) GetUpcomingEvents(ctx context.Context, days int) ([]model.CalendarEvent, error) {
	if days <= 0 {
		days = 7
	}
	q := url.Values{"days": {strconv.Itoa(days)}}
	var out eventsResponse
	if err := c.do(ctx, "fetch events", http.MethodGet, c.endpoint("/calendar/events", q), nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Events), nil
}

// GetTodayEvents returns today's events in server order.
func (c *Client) GetTodayEvents(ctx context.Context) ([]model.CalendarEvent, error) {
	var out eventsResponse
	if err := c.do(ctx, "fetch today's events", http.MethodGet, c.endpoint("/calendar/today", nil), nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out.Events), nil
}

// CreateEvent stores ev and returns the server-assigned id. Any id set on
// ev is not sent.
func (c *Client) CreateEvent(ctx context.Context, ev model.CalendarEvent) (int64, error) {
	ev.ID = 0
	var out createEventResponse
	if err := c.do(ctx, "create event", http.MethodPost, c.endpoint("/calendar/events", nil), ev, &out); err != nil {
		return 0, err
	}
	return out.EventID, nil
}

// CompleteEvent marks an event done.
func (c *Client) CompleteEvent(ctx context.Context, id int64) (bool, error) {
	var out successResponse
	u := c.endpoint("/calendar/events/"+strconv.FormatInt(id, 10)+"/complete", nil)
	if err := c.do(ctx, "complete event", http.MethodPost, u, nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	var out successResponse
	u := c.endpoint("/calendar/events/"+strconv.FormatInt(id, 10), nil)
	if err := c.do(ctx, "delete event", http.MethodDelete, u, nil, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// ScrapeURL queues rawURL for ingestion and returns the document id.
// Ingestion completes asynchronously on the server; nothing signals it.
func (c *Client) ScrapeURL(ctx context.Context, rawURL string) (int64, error) {
	var out scrapeResponse
	body := scrapeRequest{URL: rawURL}
	if err := c.do(ctx, "scrape URL", http.MethodPost, c.endpoint("/scrape", nil), body, &out); err != nil {
		return 0, err
	}
	return out.DocumentID, nil
}

// SearchDocuments queries the knowledge base. At most limit results (5 when
// <= 0) are returned, in server order.
func (c *Client) SearchDocuments(ctx context.Context, query string, limit int) ([]model.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
	}
	var out searchResponse
	if err := c.do(ctx, "search documents", http.MethodGet, c.endpoint("/search", q), nil, &out); err != nil {
		return nil, err
	}
	results := out.Results
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []model.SearchResult{}
	}
	return results, nil
}

// GetHealth queries the /health endpoint that sits beside the API path.
func (c *Client) GetHealth(ctx context.Context) (model.Health, error) {
	u, err := siblingURL(c.baseURL, "/health")
	if err != nil {
		return model.Health{}, err
	}
	var out model.Health
	if err := c.do(ctx, "health check", http.MethodGet, u, nil, &out); err != nil {
		return model.Health{}, err
	}
	return out, nil
}

// GetStats returns the backend's free-form statistics object.
func (c *Client) GetStats(ctx context.Context) (model.Stats, error) {
	var out model.Stats
	if err := c.do(ctx, "fetch stats", http.MethodGet, c.endpoint("/stats", nil), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = model.Stats{}
	}
	return out, nil
}

// GetHistory returns up to limit (10 when <= 0) entries of the current
// session. Without a session it returns an empty slice and sends nothing.
func (c *Client) GetHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	session := c.SessionID()
	if session == "" {
		return []model.HistoryEntry{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out historyResponse
	u := c.endpoint("/history/"+url.PathEscape(session), q)
	if err := c.do(ctx, "fetch history", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		return []model.HistoryEntry{}, nil
	}
	return out.History, nil
}

type successResponse struct {
	Success bool `json:"success"`
}

type eventsResponse struct {
	Events []model.CalendarEvent `json:"events"`
}

type createEventResponse struct {
	EventID int64 `json:"event_id"`
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	DocumentID int64 `json:"document_id"`
}

type searchResponse struct {
	Results []model.SearchResult `json:"results"`
}

type historyResponse struct {
	History []model.HistoryEntry `json:"history"`
}

func nonNil(evs []model.CalendarEvent) []model.CalendarEvent {
	if evs == nil {
		return []model.CalendarEvent{}
	}
	return evs
}
