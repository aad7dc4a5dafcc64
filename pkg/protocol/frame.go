// Package protocol classifies frames pushed by the tutor service and routes
// each one to exactly one downstream sink.
package protocol

import "encoding/json"

// FrameType is the "type" discriminator of an inbound frame.
type FrameType string

const (
	// FrameAnalysis carries "summary\n\nbody" in Analysis.
	FrameAnalysis FrameType = "analysis"

	// FrameCode carries "[요약] summary\n\nbody" in Code.
	FrameCode FrameType = "code"

	// FrameChat carries assistant text in Summary, possibly prefixed with a label.
	FrameChat FrameType = "chat"

	// FrameSystem carries a notice in Message.
	FrameSystem FrameType = "system"

	// FrameError carries backend error text in Message. The text is never shown.
	FrameError FrameType = "error"

	// FrameSessionUpdate renames a history session: SessionId + Title.
	FrameSessionUpdate FrameType = "session_update"
)

func (t FrameType) Known() bool {
	switch t {
	case FrameAnalysis, FrameCode, FrameChat, FrameSystem, FrameError, FrameSessionUpdate:
		return true
	}
	return false
}

type InboundFrame struct {
	Type      FrameType `json:"type"`
	Analysis  string    `json:"analysis,omitempty"`
	Code      string    `json:"code,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Message   string    `json:"message,omitempty"`
	SessionId int64     `json:"session_id,omitempty"`
	Title     string    `json:"title,omitempty"`
}

// OutboundFrame is the only frame the client sends.
type OutboundFrame struct {
	Question    string   `json:"question"`
	Language    string   `json:"language"`
	IncludeCode bool     `json:"include_code"`
	SummaryOnly bool     `json:"summary_only"`
	Documents   []string `json:"documents"`
}

func NewRequestFrame(question, language string) OutboundFrame {
	return OutboundFrame{
		Question:    question,
		Language:    language,
		IncludeCode: true,
		SummaryOnly: false,
		Documents:   []string{},
	}
}

func (f OutboundFrame) Encode() ([]byte, error) {
	if f.Documents == nil {
		f.Documents = []string{}
	}
	return json.Marshal(f)
}
