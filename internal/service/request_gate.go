package service

import (
	"context"
	"fmt"
	"strings"

	"ai-tutoring-engine/internal/constant"
	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/protocol"
	"ai-tutoring-engine/pkg/store"
)

// CanSend reports whether input would be transmitted right now.
func (s *tutorService) CanSend(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSendLocked(input)
}

func (s *tutorService) canSendLocked(input string) bool {
	if s.active == nil || s.active.Session == nil {
		return false
	}
	if s.active.Phase != store.PhaseConnected || s.active.IsProcessing {
		return false
	}
	if strings.TrimSpace(input) == "" {
		return false
	}
	return s.conn.State() == stream.StateOpen
}

// Send is a silent no-op when CanSend is false. It reports whether the
// request was staged.
func (s *tutorService) Send(ctx context.Context, text string) bool {
	return s.request(ctx, text, false)
}

// Reanalyze asks for a fresh analysis and blanks the code panel meanwhile.
func (s *tutorService) Reanalyze(ctx context.Context) bool {
	return s.request(ctx, constant.TutorReanalyzeQuestion, true)
}

func (s *tutorService) request(ctx context.Context, text string, clearCode bool) bool {
	s.mu.Lock()
	if !s.canSendLocked(text) {
		s.mu.Unlock()
		return false
	}
	sessionId := s.active.Session.Id

	s.stageRequestLocked(text, clearCode)
	err := s.transmitLocked(text)
	if err != nil {
		s.failRequestLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("TutorService", "Failed to transmit request", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
	} else {
		s.logger.Debug("TutorService", "Request sent", map[string]interface{}{"session_id": sessionId, "chars": len(text)})
	}
	s.publishState()
	return true
}

// stageRequestLocked is the optimistic local half of a send.
func (s *tutorService) stageRequestLocked(text string, clearCode bool) {
	s.active.Transcript.Append(entity.NewUserMessage(text))
	s.active.IsProcessing = true
	s.active.Draft = ""
	if clearCode {
		s.active.Code = ""
	}
}

// transmitLocked hands the frame to the connection. It runs under s.mu so a
// concurrent switch cannot redirect it to another session's connection.
func (s *tutorService) transmitLocked(text string) error {
	frame, err := protocol.NewRequestFrame(text, s.language).Encode()
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return s.conn.Send(frame)
}

// failRequestLocked keeps the optimistic message and releases the gate.
func (s *tutorService) failRequestLocked() {
	s.active.IsProcessing = false
	s.active.Transcript.Append(entity.NewSystemMessage(constant.TutorSendFailedMessage))
}

func (s *tutorService) SetDraft(text string) {
	s.mu.Lock()
	if s.active != nil {
		s.active.Draft = text
	}
	s.mu.Unlock()
	s.publishState()
}
