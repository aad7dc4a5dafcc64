package events

import (
	"strconv"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeSessionCreated   = "SESSION_CREATED"
	TypeSessionSelected  = "SESSION_SELECTED"
	TypeSessionRenamed   = "SESSION_RENAMED"
	TypeDocumentIngested = "DOCUMENT_INGESTED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// SessionCreated is published once per successful creation. origin is
// "fresh" or "latest_document"; templateId is 0 for fresh sessions.
func SessionCreated(userId, sessionId int64, origin string, templateId int64) BaseEvent {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"user_id":     userId,
			"session_id":  sessionId,
			"origin":      origin,
			"template_id": templateId,
		},
		OccurredAt: time.Now(),
	}
}

func SessionSelected(userId, sessionId int64) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionSelected,
		Data:       map[string]interface{}{"user_id": userId, "session_id": sessionId},
		OccurredAt: time.Now(),
	}
}

func SessionRenamed(sessionId int64, title string) BaseEvent {
	return BaseEvent{
		Type:       TypeSessionRenamed,
		Data:       map[string]interface{}{"session_id": sessionId, "title": title},
		OccurredAt: time.Now(),
	}
}

// Int64 reads a numeric payload field. JSON round trips turn numbers into
// float64 and some producers send strings.
func Int64(e Event, key string) (int64, bool) {
	switch v := e.Payload()[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	}
	return 0, false
}
