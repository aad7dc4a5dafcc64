package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-tutoring-engine/internal/dto"
	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/mapper"
	"ai-tutoring-engine/pkg/credential"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ISessionAPI is the REST collaborator that owns persisted sessions.
type ISessionAPI interface {
	ListHistory(ctx context.Context) ([]*entity.HistorySession, error)
	ListLatest(ctx context.Context) ([]*entity.LatestDocumentSession, error)
	FetchMessages(ctx context.Context, sessionId int64) ([]entity.Message, error)
	CreateSession(ctx context.Context, seed entity.SessionSeed) (*entity.HistorySession, error)
}

type sessionAPIClient struct {
	baseURL     string
	client      *http.Client
	credentials credential.Provider
	mapper      *mapper.TutorMapper
	tracer      trace.Tracer
}

func NewSessionAPI(baseURL string, timeout time.Duration, credentials credential.Provider) ISessionAPI {
	return &sessionAPIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: timeout},
		credentials: credentials,
		mapper:      mapper.NewTutorMapper(),
		tracer:      otel.Tracer("ai-tutoring-engine/session-api"),
	}
}

func (c *sessionAPIClient) ListHistory(ctx context.Context) ([]*entity.HistorySession, error) {
	var body []dto.HistorySessionResponse
	if err := c.do(ctx, http.MethodGet, "/aichat/sessions/", nil, &body); err != nil {
		return nil, fmt.Errorf("list history sessions: %w", err)
	}

	out := make([]*entity.HistorySession, 0, len(body))
	for i := range body {
		out = append(out, c.mapper.HistorySessionToEntity(&body[i]))
	}
	return out, nil
}

func (c *sessionAPIClient) ListLatest(ctx context.Context) ([]*entity.LatestDocumentSession, error) {
	var body []dto.LatestDocumentSessionResponse
	if err := c.do(ctx, http.MethodGet, "/aichat/latest-documents/", nil, &body); err != nil {
		return nil, fmt.Errorf("list latest documents: %w", err)
	}

	out := make([]*entity.LatestDocumentSession, 0, len(body))
	for i := range body {
		out = append(out, c.mapper.LatestDocumentToEntity(&body[i]))
	}
	return out, nil
}

func (c *sessionAPIClient) FetchMessages(ctx context.Context, sessionId int64) ([]entity.Message, error) {
	var body []dto.MessageDTO
	path := fmt.Sprintf("/aichat/sessions/%d/messages/", sessionId)
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, fmt.Errorf("fetch messages of session %d: %w", sessionId, err)
	}
	return c.mapper.MessagesToEntity(body), nil
}

func (c *sessionAPIClient) CreateSession(ctx context.Context, seed entity.SessionSeed) (*entity.HistorySession, error) {
	req := dto.CreateSessionRequest{Title: seed.Title, Summary: seed.Summary, Code: seed.Code}

	var body dto.HistorySessionResponse
	if err := c.do(ctx, http.MethodPost, "/aichat/sessions/", req, &body); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if body.Id == 0 {
		return nil, fmt.Errorf("create session: response carries no id")
	}
	return c.mapper.HistorySessionToEntity(&body), nil
}

func (c *sessionAPIClient) do(ctx context.Context, method, path string, in, out interface{}) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// 1. Body
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// 2. Auth
	cred, err := c.credentials.Credential(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	// 3. Send
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	// 4. Decode
	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx answer from the session API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("session api: status %d, body: %s", e.Code, e.Body)
}
