package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	appLog "jarviscal/internal/log"
)

// maxBody caps how much of a remote calendar is read.
const maxBody = 8 << 20

// ErrFeedTooLarge is returned when a remote calendar exceeds the read cap.
var ErrFeedTooLarge = errors.New("calendar feed too large")

// Source is a calendar to import: either a local file or an http(s) URL.
type Source struct {
	Location string
}

// Name returns a log-safe name for the source.
func (s Source) Name() string {
	if s.IsRemote() {
		return redactURL(s.Location)
	}
	return s.Location
}

// IsRemote reports whether the source is fetched over HTTP.
func (s Source) IsRemote() bool {
	u, err := url.Parse(s.Location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Doer is the subset of *http.Client used by Loader.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Loader reads calendar payloads from disk or over HTTP.
type Loader struct {
	client  Doer
	maxBody int64
}

// NewLoader creates a Loader. A nil client selects a default with a 15s timeout.
func NewLoader(client Doer) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Loader{client: client, maxBody: maxBody}
}

// Load returns the raw ICS body of src.
func (l *Loader) Load(ctx context.Context, src Source) ([]byte, error) {
	if strings.TrimSpace(src.Location) == "" {
		return nil, errors.New("source location is empty")
	}
	if !src.IsRemote() {
		body, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, err
		}
		appLog.Debug("ics read file", "path", src.Location, "bytes", len(body))
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", src.Name())

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > l.maxBody {
		return nil, fmt.Errorf("fetch %s: %w (over %d bytes)", src.Name(), ErrFeedTooLarge, l.maxBody)
	}
	appLog.Info("ics fetch success", "url", src.Name(), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// redactURL hides the path and query of a calendar URL for logging.
//
//	https://example.com/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
