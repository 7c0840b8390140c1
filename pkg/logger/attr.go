package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// An empty id yields an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Provider records the identity provider, e.g. "google".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Platform records the adapter platform, e.g. "android" or "desktop".
func Platform(name string) slog.Attr {
	return slog.String("platform", name)
}

// State records a flow state under the key "state".
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// Transition records a from/to state pair.
func Transition(from, to string) slog.Attr {
	return slog.Group("transition", slog.String("from", from), slog.String("to", to))
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// URL records a URL under the key "url".
func URL(u string) slog.Attr {
	return slog.String("url", u)
}

// Status records an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int("status", code)
}
