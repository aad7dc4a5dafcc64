package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ai-tutoring-engine/internal/entity"
)

const (
	// AnalysisFailedMessage replaces the raw text of error frames.
	AnalysisFailedMessage = "An error occurred while analyzing. Please try again later."

	// MalformedFrameMessage is shown when a frame cannot be decoded.
	MalformedFrameMessage = "Received an unreadable response from the tutor. Please try again later."
)

var ErrMissingSessionId = errors.New("session_update frame without session_id")

var (
	blankLine    = regexp.MustCompile(`\n[ \t]*\n`)
	summaryMark  = regexp.MustCompile(`(?i)^\s*\[(?:요약|summary)\][ \t]*`)
	summaryLabel = regexp.MustCompile(`(?i)^\s*(?:\[(?:요약|summary)\]|(?:요약|summary)[ \t]*[:：])\s*`)
)

// Sink receives decoded frames. Each frame reaches exactly one method.
type Sink interface {
	ApplyAnalysis(summary, code string)
	AppendMessage(msg entity.Message)
	RenameSession(sessionId int64, title string) bool
}

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeUnmatched    Outcome = "unmatched" // session_update for an unknown session
	OutcomeMalformed    Outcome = "malformed"
	OutcomeUnrecognized Outcome = "unrecognized"
)

// Result tells the caller what happened to a frame.
type Result struct {
	Type    FrameType
	Outcome Outcome

	// ClearsBusy is true when the frame completes the outstanding request.
	ClearsBusy bool

	// Err is the decode failure or the raw backend error text. Log it, never show it.
	Err error
}

// Decode parses a frame in two passes so an unknown type with odd fields is
// reported as unrecognized rather than malformed.
func Decode(data []byte) (InboundFrame, error) {
	var head struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return InboundFrame{}, fmt.Errorf("decode frame type: %w", err)
	}
	if !head.Type.Known() {
		return InboundFrame{Type: head.Type}, nil
	}

	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return InboundFrame{Type: head.Type}, fmt.Errorf("decode %s frame: %w", head.Type, err)
	}
	if frame.Type == FrameSessionUpdate && frame.SessionId == 0 {
		return frame, ErrMissingSessionId
	}
	return frame, nil
}

// Dispatch decodes data and routes it into sink. It never panics on input.
func Dispatch(data []byte, sink Sink) Result {
	frame, err := Decode(data)
	if err != nil {
		sink.AppendMessage(entity.NewSystemMessage(MalformedFrameMessage))
		return Result{Type: frame.Type, Outcome: OutcomeMalformed, ClearsBusy: true, Err: err}
	}
	return Route(frame, sink)
}

// Route applies an already decoded frame.
func Route(frame InboundFrame, sink Sink) Result {
	res := Result{Type: frame.Type, Outcome: OutcomeApplied, ClearsBusy: true}

	switch frame.Type {
	case FrameAnalysis:
		summary, code := SplitSummaryAndCode(frame.Analysis)
		sink.ApplyAnalysis(summary, code)

	case FrameCode:
		summary, code := SplitSummaryAndCode(StripSummaryMarker(frame.Code))
		sink.ApplyAnalysis(summary, code)

	case FrameChat:
		text := frame.Summary
		if text == "" {
			text = frame.Message
		}
		sink.AppendMessage(entity.NewAssistantMessage(StripChatLabel(text)))

	case FrameSystem:
		sink.AppendMessage(entity.NewSystemMessage(frame.Message))

	case FrameError:
		sink.AppendMessage(entity.NewSystemMessage(AnalysisFailedMessage))
		if frame.Message != "" {
			res.Err = errors.New(frame.Message)
		}

	case FrameSessionUpdate:
		res.ClearsBusy = false
		if !sink.RenameSession(frame.SessionId, frame.Title) {
			res.Outcome = OutcomeUnmatched
		}

	default:
		res.Outcome = OutcomeUnrecognized
		res.ClearsBusy = false
	}

	return res
}

// SplitSummaryAndCode splits on the first blank line. Without one the whole
// payload is code and the summary is empty.
func SplitSummaryAndCode(payload string) (summary, code string) {
	text := strings.ReplaceAll(payload, "\r\n", "\n")
	loc := blankLine.FindStringIndex(text)
	if loc == nil {
		return "", text
	}
	return strings.TrimSpace(text[:loc[0]]), strings.TrimLeft(text[loc[1]:], "\n")
}

// StripSummaryMarker removes a leading "[요약]" marker.
func StripSummaryMarker(payload string) string {
	return summaryMark.ReplaceAllString(payload, "")
}

// StripChatLabel removes a leading "요약:" / "summary:" / "[요약]" label.
func StripChatLabel(text string) string {
	return strings.TrimSpace(summaryLabel.ReplaceAllString(text, ""))
}
