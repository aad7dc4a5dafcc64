package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ai-tutoring-engine/internal/constant"
	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/internal/repository/memory"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/events"
	"ai-tutoring-engine/pkg/protocol"
	"ai-tutoring-engine/pkg/retry"
	"ai-tutoring-engine/pkg/store"

	"golang.org/x/sync/errgroup"
)

var (
	ErrSessionNotFound  = errors.New("history session not found")
	ErrTemplateNotFound = errors.New("latest-document template not found or already used")
	ErrNoActiveSession  = errors.New("no active session")
)

// ConnectionManager is the part of stream.Manager the service drives.
type ConnectionManager interface {
	Bind(ctx context.Context, sessionId int64, h stream.Handlers) (string, error)
	Send(frame []byte) error
	State() stream.ConnectionState
	Close()
}

// EventPublisher is satisfied by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Catalog is a copy of the session lists for rendering.
type Catalog struct {
	View    memory.View
	History []entity.HistorySession
	Latest  []entity.LatestDocumentSession
}

type ITutorService interface {
	// Lifecycle
	SelectHistory(ctx context.Context, sessionId int64) error
	CreateFromTemplate(ctx context.Context, templateId int64) error
	CreateFresh(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Close()

	// Catalog
	RefreshCatalog(ctx context.Context) error
	RefreshLatest(ctx context.Context) error
	HandleDocumentIngested(ctx context.Context, event events.Event) error
	SetView(view memory.View)
	Catalog() Catalog

	// Request gate
	CanSend(input string) bool
	Send(ctx context.Context, text string) bool
	Reanalyze(ctx context.Context) bool
	SetDraft(text string)

	Snapshot() store.Snapshot
	ConnectionState() stream.ConnectionState
}

type tutorService struct {
	api       ISessionAPI
	conn      ConnectionManager
	catalog   *memory.CatalogRepository
	publisher EventPublisher
	notifier  IStateNotifier
	policy    retry.Policy
	language  string
	logger    logger.ILogger

	// mu guards active and epoch, and every catalog write.
	mu     sync.Mutex
	active *store.ActiveSession
	epoch  uint64

	// bindMu orders binds so an older switch never binds after a newer one.
	bindMu sync.Mutex

	notifyMu sync.Mutex
}

// NewTutorService wires the lifecycle controller. publisher and notifier may be nil.
func NewTutorService(
	api ISessionAPI,
	conn ConnectionManager,
	catalog *memory.CatalogRepository,
	publisher EventPublisher,
	notifier IStateNotifier,
	policy retry.Policy,
	language string,
	log logger.ILogger,
) ITutorService {
	return &tutorService{
		api:       api,
		conn:      conn,
		catalog:   catalog,
		publisher: publisher,
		notifier:  notifier,
		policy:    policy,
		language:  language,
		logger:    log,
	}
}

// SelectHistory opens an existing session: load its log, then rebind.
func (s *tutorService) SelectHistory(ctx context.Context, sessionId int64) error {
	// 1. Install the new bundle
	s.mu.Lock()
	session, ok := s.catalog.FindHistory(sessionId)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("select %d: %w", sessionId, ErrSessionNotFound)
	}
	s.epoch++
	epoch := s.epoch
	active := store.NewActiveSession(store.OriginHistory, store.PhaseSelecting)
	active.Session = session
	active.Summary = session.SummaryText()
	active.Code = session.CodeText()
	s.active = active
	userId := session.UserId
	s.mu.Unlock()

	s.conn.Close()
	s.publishState()

	// 2. Load the persisted log
	msgs, err := s.api.FetchMessages(ctx, sessionId)

	s.mu.Lock()
	if !s.isCurrentLocked(epoch, sessionId) {
		s.mu.Unlock()
		s.logger.Debug("TutorService", "Discarded stale message log", map[string]interface{}{"session_id": sessionId})
		return nil
	}
	if err != nil {
		s.logger.Warn("TutorService", "Failed to load message log", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		s.active.Transcript.Replace([]entity.Message{entity.NewSystemMessage(constant.TutorHistoryLoadFailedMessage)})
	} else {
		s.active.Transcript.Replace(msgs)
	}
	s.mu.Unlock()
	s.publishState()

	// 3. Rebind
	s.bind(ctx, epoch, sessionId)
	s.publish(ctx, events.SessionSelected(userId, sessionId))
	return nil
}

func (s *tutorService) CreateFromTemplate(ctx context.Context, templateId int64) error {
	template, ok := s.catalog.FindLatest(templateId)
	if !ok || s.catalog.IsConsumed(templateId) {
		return fmt.Errorf("create from %d: %w", templateId, ErrTemplateNotFound)
	}

	announcement := fmt.Sprintf(constant.TutorFromDocumentMessage, template.Title)
	s.create(ctx, store.OriginLatestDocument, template.Seed(), announcement, templateId)
	return nil
}

func (s *tutorService) CreateFresh(ctx context.Context) error {
	s.create(ctx, store.OriginFresh, entity.SessionSeed{}, constant.TutorNewConversationMessage, 0)
	return nil
}

// create is shared by both creation triggers. Failures end in the transcript,
// never in the return value.
func (s *tutorService) create(ctx context.Context, origin store.Origin, seed entity.SessionSeed, announcement string, templateId int64) {
	// 1. Install an empty bundle in the creating phase
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.active = store.NewActiveSession(origin, store.PhaseCreating)
	s.mu.Unlock()

	s.conn.Close()
	s.publishState()

	// 2. Create with bounded retry
	policy := s.policy
	policy.OnRetry = func(attempt int, err error) {
		s.logger.Warn("TutorService", "Session creation failed, retrying", map[string]interface{}{"attempt": attempt, "error": err.Error()})
	}
	created, err := retry.Do(ctx, policy, func(ctx context.Context) (*entity.HistorySession, error) {
		return s.api.CreateSession(ctx, seed)
	})

	// 3. Apply the outcome
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Info("TutorService", "Discarded creation result of superseded switch", map[string]interface{}{"origin": origin, "error": errString(err)})
		return
	}
	if err != nil {
		s.active.Phase = store.PhaseIdle
		s.active.IsProcessing = false
		s.active.Transcript.Append(entity.NewSystemMessage(constant.TutorCreateFailedMessage))
		s.mu.Unlock()

		s.logger.Error("TutorService", "Session creation failed", map[string]interface{}{"origin": origin, "attempts": policy.Attempts, "error": err.Error()})
		s.publishState()
		return
	}

	kept := s.catalog.UpsertHistory(created)
	if templateId != 0 {
		s.catalog.ConsumeLatest(templateId)
	}
	s.catalog.SetView(memory.ViewHistory)

	s.active.Session = kept
	s.active.Summary = firstNonEmpty(kept.SummaryText(), seed.Summary)
	s.active.Code = firstNonEmpty(kept.CodeText(), seed.Code)
	s.active.Transcript.Append(entity.NewSystemMessage(announcement))
	sessionId, userId := kept.Id, kept.UserId
	s.mu.Unlock()

	s.logger.Info("TutorService", "Session created", map[string]interface{}{"session_id": sessionId, "origin": origin, "template_id": templateId})
	s.publishState()

	// 4. Rebind, then refresh the history list
	s.bind(ctx, epoch, sessionId)
	if err := s.refreshHistory(ctx); err != nil {
		s.logger.Warn("TutorService", "History refresh after creation failed", map[string]interface{}{"error": err.Error()})
	}
	s.publish(ctx, events.SessionCreated(userId, sessionId, string(origin), templateId))
}

// Reconnect rebinds the active session, e.g. after a dropped connection.
func (s *tutorService) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.active == nil || s.active.Session == nil {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	epoch, sessionId := s.epoch, s.active.Session.Id
	s.mu.Unlock()

	s.bind(ctx, epoch, sessionId)
	return nil
}

func (s *tutorService) Close() {
	s.mu.Lock()
	s.epoch++
	if s.active != nil {
		s.active.IsProcessing = false
	}
	s.mu.Unlock()

	s.conn.Close()
	s.publishState()
}

// bind is a no-op when the switch that asked for it was superseded.
func (s *tutorService) bind(ctx context.Context, epoch uint64, sessionId int64) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()

	s.mu.Lock()
	current := s.isCurrentLocked(epoch, sessionId)
	s.mu.Unlock()
	if !current {
		return
	}

	connId, err := s.conn.Bind(ctx, sessionId, s.handlersFor(epoch, sessionId))
	if err != nil {
		// OnError already told the user.
		s.logger.Warn("TutorService", "Bind failed", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		return
	}
	if connId == "" {
		s.logger.Info("TutorService", "Bind skipped, credential not ready", map[string]interface{}{"session_id": sessionId})
	}
	s.publishState()
}

func (s *tutorService) handlersFor(epoch uint64, sessionId int64) stream.Handlers {
	return stream.Handlers{
		OnOpen: func(connId string) {
			s.mu.Lock()
			if !s.isCurrentLocked(epoch, sessionId) {
				s.mu.Unlock()
				return
			}
			s.active.Phase = store.PhaseConnected
			s.mu.Unlock()
			s.publishState()
		},
		OnFrame: func(connId string, data []byte) {
			s.handleFrame(epoch, sessionId, connId, data)
		},
		OnError: func(connId string, err error) {
			s.mu.Lock()
			if !s.isCurrentLocked(epoch, sessionId) {
				s.mu.Unlock()
				return
			}
			s.active.IsProcessing = false
			s.active.Transcript.Append(entity.NewSystemMessage(constant.TutorConnectionErrorMessage))
			s.mu.Unlock()
			s.publishState()
		},
		OnClose: func(connId string) {
			s.logger.Debug("TutorService", "Connection closed", map[string]interface{}{"conn_id": connId, "session_id": sessionId})
		},
	}
}

func (s *tutorService) handleFrame(epoch uint64, sessionId int64, connId string, data []byte) {
	s.mu.Lock()
	if !s.isCurrentLocked(epoch, sessionId) {
		s.mu.Unlock()
		s.logger.Debug("TutorService", "Dropped stale frame", map[string]interface{}{"conn_id": connId, "session_id": sessionId})
		return
	}

	sink := &sessionSink{s: s}
	res := protocol.Dispatch(data, sink)
	if res.ClearsBusy {
		s.active.IsProcessing = false
	}
	s.mu.Unlock()

	details := map[string]interface{}{"conn_id": connId, "session_id": sessionId, "type": res.Type, "outcome": res.Outcome}
	if res.Err != nil {
		details["error"] = res.Err.Error()
	}
	switch res.Outcome {
	case protocol.OutcomeMalformed:
		s.logger.Warn("TutorService", "Malformed frame", details)
	case protocol.OutcomeUnrecognized:
		s.logger.Warn("TutorService", "Unrecognized frame type", details)
	case protocol.OutcomeUnmatched:
		s.logger.Info("TutorService", "session_update for unknown session", details)
	default:
		if res.Err != nil {
			s.logger.Warn("TutorService", "Tutor reported an error", details)
		}
	}

	s.publishState()
	if sink.renamed != nil {
		s.publish(context.Background(), events.SessionRenamed(sink.renamed.Id, sink.renamed.Title))
	}
}

func (s *tutorService) isCurrentLocked(epoch uint64, sessionId int64) bool {
	return s.epoch == epoch && s.active != nil && s.active.SessionId() == sessionId
}

// RefreshCatalog reloads both lists concurrently. A failed list keeps its
// previous contents.
func (s *tutorService) RefreshCatalog(ctx context.Context) error {
	var (
		history []*entity.HistorySession
		latest  []*entity.LatestDocumentSession
		g       errgroup.Group
	)
	var historyErr, latestErr error
	g.Go(func() error {
		history, historyErr = s.api.ListHistory(ctx)
		return historyErr
	})
	g.Go(func() error {
		latest, latestErr = s.api.ListLatest(ctx)
		return latestErr
	})
	err := g.Wait()

	s.mu.Lock()
	if historyErr == nil {
		s.catalog.ReplaceHistory(history)
	}
	if latestErr == nil {
		s.catalog.ReplaceLatest(latest)
	}
	s.mu.Unlock()
	s.publishState()

	if err != nil {
		s.logger.Warn("TutorService", "Catalog refresh incomplete", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("refresh catalog: %w", errors.Join(historyErr, latestErr))
	}
	return nil
}

func (s *tutorService) refreshHistory(ctx context.Context) error {
	history, err := s.api.ListHistory(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.catalog.ReplaceHistory(history)
	s.mu.Unlock()
	return nil
}

func (s *tutorService) RefreshLatest(ctx context.Context) error {
	latest, err := s.api.ListLatest(ctx)
	if err != nil {
		return fmt.Errorf("refresh latest documents: %w", err)
	}
	s.mu.Lock()
	s.catalog.ReplaceLatest(latest)
	s.mu.Unlock()
	return nil
}

// HandleDocumentIngested is the NATS handler for DOCUMENT_INGESTED.
func (s *tutorService) HandleDocumentIngested(ctx context.Context, event events.Event) error {
	documentId, _ := events.Int64(event, "document_id")
	s.logger.Info("TutorService", "Document ingested, refreshing templates", map[string]interface{}{"document_id": documentId})
	return s.RefreshLatest(ctx)
}

func (s *tutorService) SetView(view memory.View) {
	s.mu.Lock()
	s.catalog.SetView(view)
	s.mu.Unlock()
}

func (s *tutorService) Catalog() Catalog {
	return Catalog{
		View:    s.catalog.View(),
		History: s.catalog.History(),
		Latest:  s.catalog.Latest(),
	}
}

func (s *tutorService) Snapshot() store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Snapshot()
}

func (s *tutorService) ConnectionState() stream.ConnectionState {
	return s.conn.State()
}

// publishState pushes the current snapshot. notifyMu keeps pushes in order.
func (s *tutorService) publishState() {
	if s.notifier == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifier.Notify(s.Snapshot(), s.conn.State())
}

func (s *tutorService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("TutorService", "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}

// sessionSink applies decoded frames to the active bundle. Callers hold s.mu.
type sessionSink struct {
	s       *tutorService
	renamed *entity.HistorySession
}

func (k *sessionSink) ApplyAnalysis(summary, code string) {
	k.s.active.Summary = summary
	k.s.active.Code = code
}

func (k *sessionSink) AppendMessage(msg entity.Message) {
	k.s.active.Transcript.Append(msg)
}

func (k *sessionSink) RenameSession(sessionId int64, title string) bool {
	renamed := k.s.catalog.RenameHistory(sessionId, title)
	if active := k.s.active.Session; active != nil && active.Id == sessionId && active.Title != title {
		active.Title = title
		renamed = true
	}
	if renamed {
		k.renamed = &entity.HistorySession{Id: sessionId, Title: title}
	}
	return renamed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
