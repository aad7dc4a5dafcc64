package dto

import "time"

// --- REST collaborator shapes ---

type LineRangeDTO struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type OutlinePartDTO struct {
	Name  string         `json:"name"`
	Lines []LineRangeDTO `json:"lines,omitempty"`
}

type HistorySessionResponse struct {
	Id        int64            `json:"id"`
	UserId    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Summary   *string          `json:"summary"`
	Outline   []OutlinePartDTO `json:"outline"`
	Code      *string          `json:"code"`
	CreatedAt time.Time        `json:"created_at"`
}

type LatestDocumentSessionResponse struct {
	Id        int64            `json:"id"`
	UserId    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Summary   string           `json:"summary"`
	Outline   []OutlinePartDTO `json:"outline"`
	Documents []string         `json:"documents,omitempty"`
	Code      *string          `json:"code,omitempty"`
	Language  string           `json:"language"`
	CreatedAt time.Time        `json:"created_at"`
}

type MessageDTO struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type CreateSessionRequest struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Code    string `json:"code"`
}

// --- Gateway request/response shapes ---

type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

type DraftRequest struct {
	Text string `json:"text" validate:"max=8000"`
}

type ViewRequest struct {
	View string `json:"view" validate:"required,oneof=history latest"`
}

type CatalogResponse struct {
	View            string                          `json:"view"`
	History         []HistorySessionResponse        `json:"history"`
	LatestDocuments []LatestDocumentSessionResponse `json:"latest_documents"`
}

// SessionStateResponse is what the UI renders: one bundle per active session.
type SessionStateResponse struct {
	Session         *HistorySessionResponse `json:"session"`
	Origin          string                  `json:"origin"`
	Phase           string                  `json:"phase"`
	Transcript      []MessageDTO            `json:"transcript"`
	Summary         string                  `json:"summary"`
	Code            string                  `json:"code"`
	Draft           string                  `json:"draft"`
	IsProcessing    bool                    `json:"is_processing"`
	ConnectionState string                  `json:"connection_state"`
}
