package mapper

import (
	"ai-tutoring-engine/internal/dto"
	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/pkg/store"
)

type TutorMapper struct{}

func NewTutorMapper() *TutorMapper {
	return &TutorMapper{}
}

// Outline Mappers

func (m *TutorMapper) OutlineToEntity(parts []dto.OutlinePartDTO) []entity.OutlinePart {
	if parts == nil {
		return nil
	}
	res := make([]entity.OutlinePart, len(parts))
	for i, p := range parts {
		lines := make([]entity.LineRange, len(p.Lines))
		for j, l := range p.Lines {
			lines[j] = entity.LineRange{Start: l.Start, End: l.End}
		}
		res[i] = entity.OutlinePart{Name: p.Name, Lines: lines}
	}
	return res
}

func (m *TutorMapper) OutlineToDTO(parts []entity.OutlinePart) []dto.OutlinePartDTO {
	res := make([]dto.OutlinePartDTO, len(parts))
	for i, p := range parts {
		lines := make([]dto.LineRangeDTO, len(p.Lines))
		for j, l := range p.Lines {
			lines[j] = dto.LineRangeDTO{Start: l.Start, End: l.End}
		}
		res[i] = dto.OutlinePartDTO{Name: p.Name, Lines: lines}
	}
	return res
}

// Session Mappers

func (m *TutorMapper) HistorySessionToEntity(s *dto.HistorySessionResponse) *entity.HistorySession {
	if s == nil {
		return nil
	}
	return &entity.HistorySession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		Summary:   s.Summary,
		Outline:   m.OutlineToEntity(s.Outline),
		Code:      s.Code,
		CreatedAt: s.CreatedAt,
	}
}

func (m *TutorMapper) HistorySessionToDTO(s *entity.HistorySession) *dto.HistorySessionResponse {
	if s == nil {
		return nil
	}
	return &dto.HistorySessionResponse{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		Summary:   s.Summary,
		Outline:   m.OutlineToDTO(s.Outline),
		Code:      s.Code,
		CreatedAt: s.CreatedAt,
	}
}

func (m *TutorMapper) LatestDocumentToEntity(s *dto.LatestDocumentSessionResponse) *entity.LatestDocumentSession {
	if s == nil {
		return nil
	}
	return &entity.LatestDocumentSession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		Summary:   s.Summary,
		Outline:   m.OutlineToEntity(s.Outline),
		Documents: s.Documents,
		Code:      s.Code,
		Language:  s.Language,
		CreatedAt: s.CreatedAt,
	}
}

func (m *TutorMapper) LatestDocumentToDTO(s *entity.LatestDocumentSession) *dto.LatestDocumentSessionResponse {
	if s == nil {
		return nil
	}
	return &dto.LatestDocumentSessionResponse{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		Summary:   s.Summary,
		Outline:   m.OutlineToDTO(s.Outline),
		Documents: s.Documents,
		Code:      s.Code,
		Language:  s.Language,
		CreatedAt: s.CreatedAt,
	}
}

// Message Mappers

func (m *TutorMapper) MessageToEntity(msg dto.MessageDTO) entity.Message {
	return entity.Message{
		Role:      entity.MessageRole(msg.Role),
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

func (m *TutorMapper) MessagesToEntity(msgs []dto.MessageDTO) []entity.Message {
	res := make([]entity.Message, len(msgs))
	for i, msg := range msgs {
		res[i] = m.MessageToEntity(msg)
	}
	return res
}

func (m *TutorMapper) MessagesToDTO(msgs []entity.Message) []dto.MessageDTO {
	res := make([]dto.MessageDTO, len(msgs))
	for i, msg := range msgs {
		res[i] = dto.MessageDTO{Role: string(msg.Role), Content: msg.Content, Timestamp: msg.Timestamp}
	}
	return res
}

// Snapshot Mapper

func (m *TutorMapper) SnapshotToDTO(s store.Snapshot, connectionState string) *dto.SessionStateResponse {
	return &dto.SessionStateResponse{
		Session:         m.HistorySessionToDTO(s.Session),
		Origin:          string(s.Origin),
		Phase:           string(s.Phase),
		Transcript:      m.MessagesToDTO(s.Transcript),
		Summary:         s.Summary,
		Code:            s.Code,
		Draft:           s.Draft,
		IsProcessing:    s.IsProcessing,
		ConnectionState: connectionState,
	}
}

// Catalog Mapper

func (m *TutorMapper) CatalogToDTO(view string, history []entity.HistorySession, latest []entity.LatestDocumentSession) *dto.CatalogResponse {
	res := &dto.CatalogResponse{
		View:            view,
		History:         make([]dto.HistorySessionResponse, 0, len(history)),
		LatestDocuments: make([]dto.LatestDocumentSessionResponse, 0, len(latest)),
	}
	for i := range history {
		res.History = append(res.History, *m.HistorySessionToDTO(&history[i]))
	}
	for i := range latest {
		res.LatestDocuments = append(res.LatestDocuments, *m.LatestDocumentToDTO(&latest[i]))
	}
	return res
}
