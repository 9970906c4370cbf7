package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarviscal/internal/model"
)

// newBackend starts a fake backend and returns a client pointed at its
// /api prefix.
func newBackend(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return New(ts.URL + "/api")
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestChatPersistsServerSession(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []map[string]any
		histPath string
		histQ    string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		requests = append(requests, body)
		mu.Unlock()
		writeJSON(t, w, model.ChatResponse{Response: "hello", SessionID: "sess-42", ModelUsed: "llama3"})
	})
	mux.HandleFunc("GET /api/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		histPath = r.URL.Path
		histQ = r.URL.Query().Get("limit")
		writeJSON(t, w, map[string]any{"history": []map[string]any{{"role": "user", "content": "hi"}}})
	})
	c := newBackend(t, mux)
	ctx := context.Background()

	assert.Empty(t, c.SessionID())

	resp, err := c.Chat(ctx, "hi", false)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Response)
	assert.Equal(t, "llama3", resp.ModelUsed)
	assert.Equal(t, "sess-42", c.SessionID())

	_, err = c.Chat(ctx, "again", false)
	require.NoError(t, err)

	require.Len(t, requests, 2)
	assert.NotContains(t, requests[0], "session_id")
	assert.Equal(t, "sess-42", requests[1]["session_id"])
	assert.Equal(t, false, requests[1]["stream"])

	hist, err := c.GetHistory(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/history/sess-42", histPath)
	assert.Equal(t, "10", histQ)
	require.Len(t, hist, 1)
	assert.Equal(t, "hi", hist[0]["content"])

	c.ClearSession()
	assert.Empty(t, c.SessionID())
}

func TestGetHistoryWithoutSessionSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := New("http://jarvis.invalid/api", WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("unexpected request")
	})))

	hist, err := c.GetHistory(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, hist)
	assert.Empty(t, hist)
	assert.Zero(t, calls.Load())
}

func TestServerErrorsCarryStatusText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newBackend(t, mux)
	c.SetSessionID("keep-me")
	ctx := context.Background()

	calls := map[string]func() error{
		"chat":                 func() error { _, err := c.Chat(ctx, "x", false); return err },
		"fetch models":         func() error { _, err := c.ListModels(ctx); return err },
		"switch model":         func() error { _, err := c.SwitchModel(ctx, "m"); return err },
		"fetch events":         func() error { _, err := c.GetUpcomingEvents(ctx, 7); return err },
		"fetch today's events": func() error { _, err := c.GetTodayEvents(ctx); return err },
		"create event": func() error {
			_, err := c.CreateEvent(ctx, model.CalendarEvent{Title: "t", EventDate: "2025-11-12T14:00"})
			return err
		},
		"complete event":   func() error { _, err := c.CompleteEvent(ctx, 1); return err },
		"delete event":     func() error { _, err := c.DeleteEvent(ctx, 1); return err },
		"scrape URL":       func() error { _, err := c.ScrapeURL(ctx, "https://example.com"); return err },
		"search documents": func() error { _, err := c.SearchDocuments(ctx, "q", 3); return err },
		"health check":     func() error { _, err := c.GetHealth(ctx); return err },
		"fetch stats":      func() error { _, err := c.GetStats(ctx); return err },
		"fetch history":    func() error { _, err := c.GetHistory(ctx, 3); return err },
	}

	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "Internal Server Error")
			assert.Contains(t, err.Error(), op+" failed")

			var re *RequestError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
			assert.True(t, IsStatus(err, http.StatusInternalServerError))
		})
	}
	assert.Equal(t, "keep-me", c.SessionID())
}

func TestRequestErrorWithoutStatusLine(t *testing.T) {
	c := New("http://jarvis.invalid/api", WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader(""))}, nil
	})))
	_, err := c.Chat(context.Background(), "x", false)
	require.Error(t, err)
	assert.Equal(t, "chat failed: 502 Bad Gateway", err.Error())
	assert.Empty(t, c.SessionID())
}

func TestTransportErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("connection refused")
	c := New("http://jarvis.invalid/api", WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, sentinel
	})))
	_, err := c.ListModels(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "fetch models")
}

func TestCalendarOperations(t *testing.T) {
	var created map[string]any
	var completedPath, deletedPath, daysParam string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/calendar/events", func(w http.ResponseWriter, r *http.Request) {
		daysParam = r.URL.Query().Get("days")
		writeJSON(t, w, map[string]any{"events": []model.CalendarEvent{
			{ID: 2, Title: "later", EventDate: "2025-11-13T09:00"},
			{ID: 1, Title: "sooner", EventDate: "2025-11-12T09:00"},
		}})
	})
	mux.HandleFunc("GET /api/calendar/today", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"events": nil})
	})
	mux.HandleFunc("POST /api/calendar/events", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(t, w, map[string]any{"event_id": 77})
	})
	mux.HandleFunc("POST /api/calendar/events/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		completedPath = r.URL.Path
		writeJSON(t, w, map[string]any{"success": true})
	})
	mux.HandleFunc("DELETE /api/calendar/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		deletedPath = r.URL.Path
		writeJSON(t, w, map[string]any{"success": true})
	})
	c := newBackend(t, mux)
	ctx := context.Background()

	evs, err := c.GetUpcomingEvents(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "7", daysParam)
	require.Len(t, evs, 2)
	// Server order is kept.
	assert.Equal(t, "later", evs[0].Title)

	today, err := c.GetTodayEvents(ctx)
	require.NoError(t, err)
	assert.NotNil(t, today)
	assert.Empty(t, today)

	reminder := 15
	id, err := c.CreateEvent(ctx, model.CalendarEvent{
		ID:              999,
		Title:           "Dentist",
		EventDate:       "2025-11-12T14:00",
		ReminderMinutes: &reminder,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.NotContains(t, created, "id")
	assert.Equal(t, "Dentist", created["title"])
	assert.EqualValues(t, 15, created["reminder_minutes"])

	ok, err := c.CompleteEvent(ctx, 77)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/api/calendar/events/77/complete", completedPath)

	ok, err = c.DeleteEvent(ctx, 77)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/api/calendar/events/77", deletedPath)
}

func TestCreatedEventVisibleOnlyAfterServerConfirms(t *testing.T) {
	var (
		mu     sync.Mutex
		stored []model.CalendarEvent
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/calendar/events", func(w http.ResponseWriter, r *http.Request) {
		var ev model.CalendarEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		mu.Lock()
		ev.ID = int64(len(stored) + 1)
		stored = append(stored, ev)
		mu.Unlock()
		writeJSON(t, w, map[string]any{"event_id": ev.ID})
	})
	mux.HandleFunc("GET /api/calendar/events", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(t, w, map[string]any{"events": stored})
	})
	c := newBackend(t, mux)
	ctx := context.Background()

	before, err := c.GetUpcomingEvents(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, before)

	id, err := c.CreateEvent(ctx, model.CalendarEvent{Title: "Standup", EventDate: "2025-11-12T09:00"})
	require.NoError(t, err)

	after, err := c.GetUpcomingEvents(ctx, 30)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, id, after[0].ID)
	assert.Equal(t, "Standup", after[0].Title)
}

func TestSearchDocumentsEscapesAndTrims(t *testing.T) {
	var gotQuery, gotLimit string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotLimit = r.URL.Query().Get("limit")
		writeJSON(t, w, map[string]any{"results": []map[string]any{
			{"title": "a", "preview": "pa", "similarity": 0.9},
			{"title": "b", "preview": "pb", "url": "https://b.example"},
			{"title": "c", "preview": "pc"},
		}})
	})
	c := newBackend(t, mux)

	res, err := c.SearchDocuments(context.Background(), "go & rust?", 2)
	require.NoError(t, err)
	assert.Equal(t, "go & rust?", gotQuery)
	assert.Equal(t, "2", gotLimit)
	require.Len(t, res, 2)
	require.NotNil(t, res[0].Similarity)
	assert.InDelta(t, 0.9, *res[0].Similarity, 1e-9)
	assert.Nil(t, res[1].Similarity)
	assert.Equal(t, "https://b.example", res[1].URL)
}

func TestModelsScrapeStatsHealth(t *testing.T) {
	var switchPath, scrapeURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"models":  []map[string]any{{"name": "llama3", "current": true}, {"name": "mistral:7b", "current": false}},
			"current": "llama3",
		})
	})
	mux.HandleFunc("POST /api/models/switch/{name}", func(w http.ResponseWriter, r *http.Request) {
		switchPath = r.PathValue("name")
		writeJSON(t, w, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /api/scrape", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		scrapeURL = body["url"]
		writeJSON(t, w, map[string]any{"document_id": 12})
	})
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"documents": 3, "events": 9})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, model.Health{Status: "healthy", Model: "llama3"})
	})
	c := newBackend(t, mux)
	ctx := context.Background()

	models, err := c.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "llama3", models.Current)
	require.Len(t, models.Models, 2)
	assert.True(t, models.Models[0].Current)

	ok, err := c.SwitchModel(ctx, "mistral:7b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mistral:7b", switchPath)

	docID, err := c.ScrapeURL(ctx, "https://go.dev/doc")
	require.NoError(t, err)
	assert.Equal(t, int64(12), docID)
	assert.Equal(t, "https://go.dev/doc", scrapeURL)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 9, stats["events"])

	health, err := c.GetHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestConcurrentChatTurnsAreSerialized(t *testing.T) {
	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
		minted   atomic.Int32
		mu       sync.Mutex
		sessions []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)

		var req model.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		sessions = append(sessions, req.SessionID)
		mu.Unlock()

		sid := req.SessionID
		if sid == "" {
			minted.Add(1)
			sid = "fresh"
		}
		time.Sleep(5 * time.Millisecond)
		writeJSON(t, w, model.ChatResponse{Response: "ok", SessionID: sid})
	})
	c := newBackend(t, mux)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Chat(context.Background(), "hi", false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load(), "chat requests overlapped")
	assert.Equal(t, int32(1), minted.Load(), "only the first turn may start a session")
	assert.Equal(t, "fresh", c.SessionID())
	assert.Len(t, sessions, 5)
}

func TestSiblingURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8000/api":     "http://localhost:8000/health",
		"http://localhost:8000/api/":    "http://localhost:8000/health",
		"https://jarvis.example/v1/api": "https://jarvis.example/v1/health",
		"http://localhost:8000":         "http://localhost:8000/health",
	}
	for base, want := range cases {
		got, err := siblingURL(base, "/health")
		require.NoError(t, err)
		assert.Equal(t, want, got, base)
	}
}
