package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"jarviscal/internal/api"
	"jarviscal/internal/calview"
	"jarviscal/internal/config"
	"jarviscal/internal/ics"
	appLog "jarviscal/internal/log"
	"jarviscal/internal/model"
)

// eventsCacheTTL bounds how long a fetched event list is served before the
// next request refetches it. The scheduler usually refreshes sooner.
const eventsCacheTTL = 30 * time.Second

// Backend is the part of the API client the web view needs.
type Backend interface {
	GetUpcomingEvents(ctx context.Context, days int) ([]model.CalendarEvent, error)
	CompleteEvent(ctx context.Context, id int64) (bool, error)
	DeleteEvent(ctx context.Context, id int64) (bool, error)
}

// Server serves the week grid as JSON, HTML and iCalendar, proxying event
// actions to the backend.
type Server struct {
	cfg     *config.Config
	backend Backend
	loc     *time.Location
	hours   calview.HourRange
	mux     *http.ServeMux
	page    *template.Template
	now     func() time.Time

	// In-memory cache of the upcoming event list so that page loads do not
	// each hit the backend.
	eventsMu    sync.RWMutex
	eventsCache *eventsCache
	refetch     singleflight.Group
}

//go:embed templates/week.html
var templates embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, backend Backend) *Server {
	s := &Server{
		cfg:     cfg,
		backend: backend,
		loc:     cfg.Location(),
		hours:   calview.HourRange{First: cfg.Hours.First, Last: cfg.Hours.Last},
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.page = template.Must(template.New("week.html").Funcs(template.FuncMap{
		"hourLabel":   calview.FormatHourLabel,
		"eventTime":   s.eventTime,
		"currentHour": func(day time.Time, hour int) bool { return calview.IsCurrentHour(day, hour, s.now()) },
		"isoDate":     isoDate,
	}).ParseFS(templates, "templates/week.html"))
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		appLog.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/week", s.handleWeekJSON)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/events/{id}/complete", s.handleComplete)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /week", s.handleWeekPage)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/week", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsCache holds the last fetched event list and its timestamp.
type eventsCache struct {
	events    []model.CalendarEvent
	updatedAt time.Time
}

// Refresh refetches the event list and replaces the cache. The scheduler
// calls this on its cron spec.
func (s *Server) Refresh(ctx context.Context) error {
	events, err := s.backend.GetUpcomingEvents(ctx, s.cfg.HorizonDays)
	if err != nil {
		return err
	}
	s.eventsMu.Lock()
	s.eventsCache = &eventsCache{events: events, updatedAt: s.now()}
	s.eventsMu.Unlock()
	appLog.Debug("events refreshed", "count", len(events))
	return nil
}

// events returns the cached list, refetching when it is missing or stale.
// Concurrent callers share one refetch.
func (s *Server) events(ctx context.Context) (eventsCache, error) {
	if ec, ok := s.freshEvents(); ok {
		return ec, nil
	}
	v, err, _ := s.refetch.Do("events", func() (any, error) {
		if ec, ok := s.freshEvents(); ok {
			return ec, nil
		}
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		s.eventsMu.RLock()
		defer s.eventsMu.RUnlock()
		return *s.eventsCache, nil
	})
	if err != nil {
		return eventsCache{}, err
	}
	return v.(eventsCache), nil
}

func (s *Server) freshEvents() (eventsCache, bool) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	if s.eventsCache == nil || s.now().Sub(s.eventsCache.updatedAt) >= eventsCacheTTL {
		return eventsCache{}, false
	}
	return *s.eventsCache, true
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events    []model.CalendarEvent `json:"events"`
	UpdatedAt time.Time             `json:"updated_at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ec, err := s.events(r.Context())
	if err != nil {
		s.backendError(w, "api events", err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: ec.events, UpdatedAt: ec.updatedAt})
}

// weekResponse is the JSON response shape for /api/week.
type weekResponse struct {
	WeekStart string   `json:"week_start"`
	Prev      string   `json:"prev"`
	Next      string   `json:"next"`
	Title     string   `json:"title"`
	Subtitle  string   `json:"subtitle"`
	Timezone  string   `json:"timezone"`
	Hours     []int    `json:"hours"`
	Days      []dayDTO `json:"days"`
	Total     int      `json:"total"`
	Placed    int      `json:"placed"`
}

type dayDTO struct {
	Date    string    `json:"date"`
	Weekday string    `json:"weekday"`
	IsToday bool      `json:"is_today"`
	Slots   []slotDTO `json:"slots"`
}

type slotDTO struct {
	Hour   int                   `json:"hour"`
	Label  string                `json:"label"`
	Events []model.CalendarEvent `json:"events"`
}

// handleWeekJSON returns the week grid for the week containing ?date=
// (YYYY-MM-DD, default today). Only occupied slots are listed.
func (s *Server) handleWeekJSON(w http.ResponseWriter, r *http.Request) {
	week, ok := s.buildWeek(w, r)
	if !ok {
		return
	}

	resp := weekResponse{
		WeekStart: isoDate(week.Start),
		Prev:      isoDate(calview.PrevWeek(week.Start)),
		Next:      isoDate(calview.NextWeek(week.Start)),
		Title:     calview.WeekTitle(week.Start),
		Subtitle:  calview.WeekSubtitle(week.Start),
		Timezone:  s.loc.String(),
		Hours:     week.Hours,
		Days:      make([]dayDTO, 0, len(week.Days)),
		Total:     week.Total,
		Placed:    week.Placed(),
	}
	for _, d := range week.Days {
		dto := dayDTO{
			Date:    isoDate(d.Date),
			Weekday: d.Date.Weekday().String(),
			IsToday: d.IsToday,
			Slots:   []slotDTO{},
		}
		for _, h := range week.Hours {
			if evs := d.Events(h); len(evs) > 0 {
				dto.Slots = append(dto.Slots, slotDTO{Hour: h, Label: calview.FormatHourLabel(h), Events: evs})
			}
		}
		resp.Days = append(resp.Days, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// weekPage is the data handed to templates/week.html.
type weekPage struct {
	calview.Week
	Title    string
	Subtitle string
	Prev     string
	Next     string
	Timezone string
}

func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	week, ok := s.buildWeek(w, r)
	if !ok {
		return
	}
	page := weekPage{
		Week:     week,
		Title:    calview.WeekTitle(week.Start),
		Subtitle: calview.WeekSubtitle(week.Start),
		Prev:     isoDate(calview.PrevWeek(week.Start)),
		Next:     isoDate(calview.NextWeek(week.Start)),
		Timezone: s.loc.String(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, page); err != nil {
		appLog.Error("week page render failed", err)
	}
}

// buildWeek resolves ?date= and projects the cached events. It writes the
// error response itself and reports false on failure.
func (s *Server) buildWeek(w http.ResponseWriter, r *http.Request) (calview.Week, bool) {
	now := s.now().In(s.loc)
	ref := now
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return calview.Week{}, false
		}
		ref = d
	}

	ec, err := s.events(r.Context())
	if err != nil {
		s.backendError(w, "week", err)
		return calview.Week{}, false
	}
	return calview.BuildWeek(ec.events, ref, s.hours, now), true
}

// actionResponse is the JSON response shape for event actions.
type actionResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "complete", s.backend.CompleteEvent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, "delete", s.backend.DeleteEvent)
}

// handleAction forwards an event action and refetches the list so the next
// view reflects the server's state.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, name string, do func(context.Context, int64) (bool, error)) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	ok, err := do(r.Context(), id)
	if err != nil {
		s.backendError(w, name+" event", err)
		return
	}
	appLog.Info("event action", "action", name, "id", id, "success", ok)

	if err := s.Refresh(r.Context()); err != nil {
		appLog.Error("refetch after action failed", err, "action", name, "id", id)
		s.invalidate()
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: ok})
}

// invalidate drops the cached list so the next request refetches it.
func (s *Server) invalidate() {
	s.eventsMu.Lock()
	s.eventsCache = nil
	s.eventsMu.Unlock()
}

// handleICS exports the cached event list as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	ec, err := s.events(r.Context())
	if err != nil {
		s.backendError(w, "calendar export", err)
		return
	}
	body := ics.Encode(ec.events, ics.ExportOptions{
		Name:     "Jarvis",
		Location: s.loc,
		Now:      s.now(),
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=jarvis.ics")
	if _, err := w.Write([]byte(body)); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

// backendError logs err and maps it to a response. Backend status failures
// become 502 with the backend's status line.
func (s *Server) backendError(w http.ResponseWriter, what string, err error) {
	appLog.Error(what+": backend request failed", err)
	var re *api.RequestError
	if errors.As(err, &re) {
		writeError(w, http.StatusBadGateway, re.Error())
		return
	}
	if errors.Is(err, context.Canceled) {
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	writeError(w, http.StatusBadGateway, fmt.Sprintf("%s: backend unavailable", what))
}

func (s *Server) eventTime(ev model.CalendarEvent) string {
	t, err := ev.Start(s.loc)
	if err != nil {
		return ""
	}
	return calview.FormatEventTime(t)
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
