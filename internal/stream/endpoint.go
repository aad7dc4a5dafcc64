package stream

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"ai-tutoring-engine/pkg/credential"
)

var ErrNoHost = errors.New("stream endpoint: base address has no host")

// Endpoint derives the streaming URL from the REST base address.
type Endpoint struct {
	BaseURL string
	Name    string

	// PageSecure picks wss when BaseURL carries no recognizable scheme.
	PageSecure bool
}

// Scheme maps https to wss and http to ws.
func (e Endpoint) Scheme() string {
	scheme, _ := splitBase(e.BaseURL, e.PageSecure)
	return scheme
}

// URL builds {scheme}://{host}/aichat/{name}?token=..&user_id=..[&session_id=..].
func (e Endpoint) URL(cred credential.Credential, sessionId int64) (string, error) {
	scheme, host := splitBase(e.BaseURL, e.PageSecure)
	if host == "" {
		return "", ErrNoHost
	}

	q := url.Values{}
	q.Set("token", cred.Token)
	q.Set("user_id", strconv.FormatInt(cred.UserId, 10))
	if sessionId != 0 {
		q.Set("session_id", strconv.FormatInt(sessionId, 10))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "/aichat/" + strings.TrimPrefix(e.Name, "/"),
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func splitBase(base string, pageSecure bool) (scheme, host string) {
	rest := strings.TrimSpace(base)
	lower := strings.ToLower(rest)

	switch {
	case strings.HasPrefix(lower, "https://"):
		scheme, rest = "wss", rest[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		scheme, rest = "ws", rest[len("http://"):]
	default:
		scheme = "ws"
		if pageSecure {
			scheme = "wss"
		}
		if i := strings.Index(rest, "://"); i >= 0 {
			rest = rest[i+3:]
		}
		rest = strings.TrimPrefix(rest, "//")
	}

	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return scheme, rest
}
