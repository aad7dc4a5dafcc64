package entity

import "time"

type LineRange struct {
	Start int
	End   int
}

// OutlinePart is one named section of an analyzed document.
type OutlinePart struct {
	Name  string
	Lines []LineRange
}

// HistorySession is a persisted conversation owned by the server.
type HistorySession struct {
	Id        int64
	UserId    int64
	Title     string
	Summary   *string
	Outline   []OutlinePart
	Code      *string
	CreatedAt time.Time
}

// LatestDocumentSession is a template derived from a freshly ingested document.
// It seeds exactly one HistorySession and is never connected to directly.
type LatestDocumentSession struct {
	Id        int64
	UserId    int64
	Title     string
	Summary   string
	Outline   []OutlinePart
	Documents []string
	Code      *string
	Language  string
	CreatedAt time.Time
}

// SessionSeed carries the values a new HistorySession is created from.
type SessionSeed struct {
	Title   string
	Summary string
	Code    string
}

func (s *HistorySession) SummaryText() string {
	if s == nil || s.Summary == nil {
		return ""
	}
	return *s.Summary
}

func (s *HistorySession) CodeText() string {
	if s == nil || s.Code == nil {
		return ""
	}
	return *s.Code
}

func (t *LatestDocumentSession) Seed() SessionSeed {
	seed := SessionSeed{Title: t.Title, Summary: t.Summary}
	if t.Code != nil {
		seed.Code = *t.Code
	}
	return seed
}
