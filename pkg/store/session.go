package store

import (
	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/pkg/transcript"
)

// Phase of the active session bundle.
type Phase string

// Origin records which trigger produced the active session.
type Origin string

const (
	PhaseIdle      Phase = "idle"
	PhaseSelecting Phase = "selecting"
	PhaseCreating  Phase = "creating"
	PhaseConnected Phase = "connected"

	OriginHistory        Origin = "history"
	OriginLatestDocument Origin = "latest_document"
	OriginFresh          Origin = "fresh"
)

// ActiveSession is the bundle the UI observes. Only one exists at a time and
// a switch replaces it as a whole.
type ActiveSession struct {
	// Session is nil while a creation is pending or after it failed.
	Session *entity.HistorySession
	Origin  Origin
	Phase   Phase

	Transcript *transcript.Buffer

	// Analysis panels
	Summary string
	Code    string

	// Draft is the unsent input text.
	Draft string

	IsProcessing bool
}

func NewActiveSession(origin Origin, phase Phase) *ActiveSession {
	return &ActiveSession{
		Origin:     origin,
		Phase:      phase,
		Transcript: transcript.New(),
	}
}

func (a *ActiveSession) SessionId() int64 {
	if a == nil || a.Session == nil {
		return 0
	}
	return a.Session.Id
}

// Snapshot is a read-only copy safe to hand to renderers.
type Snapshot struct {
	Session      *entity.HistorySession
	Origin       Origin
	Phase        Phase
	Transcript   []entity.Message
	Summary      string
	Code         string
	Draft        string
	IsProcessing bool
}

func (a *ActiveSession) Snapshot() Snapshot {
	if a == nil {
		return Snapshot{Phase: PhaseIdle, Transcript: []entity.Message{}}
	}
	snap := Snapshot{
		Origin:       a.Origin,
		Phase:        a.Phase,
		Transcript:   a.Transcript.Messages(),
		Summary:      a.Summary,
		Code:         a.Code,
		Draft:        a.Draft,
		IsProcessing: a.IsProcessing,
	}
	if a.Session != nil {
		s := *a.Session
		snap.Session = &s
	}
	return snap
}
