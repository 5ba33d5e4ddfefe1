package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultPath is the native (non-SockJS) STOMP endpoint.
const DefaultPath = "/ws-native"

// WebSocketURL rewrites an HTTP base URL to its WebSocket form and appends
// path: https becomes wss and http becomes ws.
func WebSocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid base url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", baseURL)
	}

	if path == "" {
		path = DefaultPath
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	u.RawPath = ""

	return u.String(), nil
}
