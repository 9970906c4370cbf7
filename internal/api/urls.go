package api

import (
	"fmt"
	"net/url"
	"strings"
)

// siblingURL swaps the trailing API path segment of base for segment,
// e.g. http://h:8000/api -> http://h:8000/health.
func siblingURL(base, segment string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	p := strings.TrimRight(u.Path, "/")
	p = strings.TrimSuffix(p, "/api")
	u.Path = p + segment
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// streamURL derives the WebSocket endpoint from the HTTP base URL.
func (c *Client) streamURL() (string, error) {
	s, err := siblingURL(c.baseURL, "/ws/chat")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q for stream", u.Scheme)
	}
	return u.String(), nil
}
