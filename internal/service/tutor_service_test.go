package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ai-tutoring-engine/internal/constant"
	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/internal/repository/memory"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/events"
	"ai-tutoring-engine/pkg/protocol"
	"ai-tutoring-engine/pkg/retry"
	"ai-tutoring-engine/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	svc       ITutorService
	api       *fakeAPI
	conn      *fakeConnection
	catalog   *memory.CatalogRepository
	publisher *fakePublisher
}

func newHarness(t *testing.T, log logger.ILogger) *harness {
	t.Helper()
	if log == nil {
		log = logger.NewNopLogger()
	}

	h := &harness{
		api:       newFakeAPI(),
		conn:      newFakeConnection(),
		catalog:   memory.NewCatalogRepository(),
		publisher: &fakePublisher{},
	}
	h.api.history = []*entity.HistorySession{
		{Id: 1, UserId: 42, Title: "S1", Summary: strPtr("first summary"), Code: strPtr("let a = 1;")},
		{Id: 2, UserId: 42, Title: "S2"},
	}
	h.api.latest = []*entity.LatestDocumentSession{
		{Id: 7, UserId: 42, Title: "lecture.pdf", Summary: "about loops", Code: strPtr("for (;;) {}")},
	}
	h.api.logs[1] = []entity.Message{entity.NewAssistantMessage("hi")}
	h.api.logs[2] = []entity.Message{entity.NewUserMessage("old question"), entity.NewAssistantMessage("old answer")}

	policy := retry.Policy{Attempts: 3, Delay: time.Millisecond}
	h.svc = NewTutorService(h.api, h.conn, h.catalog, h.publisher, nil, policy, "ko", log)
	require.NoError(t, h.svc.RefreshCatalog(context.Background()))
	return h
}

func strPtr(s string) *string { return &s }

// lines drops timestamps so transcripts compare by role and content.
func lines(msgs []entity.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Role)+":"+m.Content)
	}
	return out
}

func lastLine(msgs []entity.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return lines(msgs[len(msgs)-1:])[0]
}

func (h *harness) selectSession(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, h.svc.SelectHistory(context.Background(), id))
}

func TestRoundTripScenario(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.selectSession(t, 1)
	snap := h.svc.Snapshot()
	require.Equal(t, []string{"assistant:hi"}, lines(snap.Transcript))
	assert.Equal(t, store.PhaseConnected, snap.Phase)
	assert.Equal(t, "first summary", snap.Summary)
	assert.Equal(t, "let a = 1;", snap.Code)

	h.svc.SetDraft("explain line 4")
	require.True(t, h.svc.Send(ctx, "explain line 4"))

	snap = h.svc.Snapshot()
	assert.Equal(t, []string{"assistant:hi", "user:explain line 4"}, lines(snap.Transcript))
	assert.True(t, snap.IsProcessing)
	assert.Empty(t, snap.Draft)

	frames := h.conn.sentFrames()
	require.Len(t, frames, 1)
	var sent protocol.OutboundFrame
	require.NoError(t, json.Unmarshal(frames[0], &sent))
	assert.Equal(t, protocol.OutboundFrame{
		Question:    "explain line 4",
		Language:    "ko",
		IncludeCode: true,
		SummaryOnly: false,
		Documents:   []string{},
	}, sent)

	h.conn.deliver(`{"type":"chat","summary":"요약: it does X"}`)

	snap = h.svc.Snapshot()
	require.Len(t, snap.Transcript, 3)
	assert.Equal(t, "assistant:it does X", lines(snap.Transcript)[2])
	assert.False(t, snap.IsProcessing)
}

func TestAnalysisFrameSplitsIntoPanels(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)

	h.conn.deliver(`{"type":"analysis","analysis":"Summary text\n\nconst x = 1;"}`)

	snap := h.svc.Snapshot()
	assert.Equal(t, "Summary text", snap.Summary)
	assert.Equal(t, "const x = 1;", snap.Code)
	assert.Len(t, snap.Transcript, 1)
}

func TestSendWhileBusyIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.selectSession(t, 1)

	require.True(t, h.svc.Send(ctx, "first"))
	before := h.svc.Snapshot()

	assert.False(t, h.svc.CanSend("second"))
	assert.False(t, h.svc.Send(ctx, "second"))
	assert.False(t, h.svc.Reanalyze(ctx))

	after := h.svc.Snapshot()
	assert.Equal(t, len(before.Transcript), len(after.Transcript))
	assert.Len(t, h.conn.sentFrames(), 1)
}

func TestCanSend(t *testing.T) {
	h := newHarness(t, nil)

	assert.False(t, h.svc.CanSend("hello"), "no active session")

	h.selectSession(t, 1)
	assert.True(t, h.svc.CanSend("hello"))
	assert.False(t, h.svc.CanSend("   \n"), "blank input")

	h.conn.Close()
	assert.False(t, h.svc.CanSend("hello"), "connection not open")
}

func TestErrorFrameClearsBusyAndAppendsOneSystemMessage(t *testing.T) {
	payloads := []string{
		`{"type":"error","message":"rate limited: 429 from upstream"}`,
		`{"type":"error"}`,
		`{"type":"error","message":""}`,
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			h := newHarness(t, nil)
			h.selectSession(t, 1)
			require.True(t, h.svc.Send(context.Background(), "analyze"))
			before := h.svc.Snapshot()

			h.conn.deliver(payload)

			snap := h.svc.Snapshot()
			assert.False(t, snap.IsProcessing)
			require.Len(t, snap.Transcript, len(before.Transcript)+1)
			last := snap.Transcript[len(snap.Transcript)-1]
			assert.Equal(t, entity.MessageRoleSystem, last.Role)
			assert.Equal(t, protocol.AnalysisFailedMessage, last.Content)
		})
	}
}

func TestMalformedFrameIsLoggedNotShown(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newHarness(t, logger.NewFromZap(zap.New(core)))
	h.selectSession(t, 1)
	require.True(t, h.svc.Send(context.Background(), "analyze"))

	h.conn.deliver(`{"type":"chat","summary":42}`)

	snap := h.svc.Snapshot()
	assert.False(t, snap.IsProcessing)
	assert.Equal(t, "system:"+protocol.MalformedFrameMessage, lastLine(snap.Transcript))

	warned := logs.FilterMessage("Malformed frame").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
}

func TestSessionUpdateOnlyRenamesCatalogEntry(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)
	require.True(t, h.svc.Send(context.Background(), "q"))
	before := h.svc.Snapshot()

	h.conn.deliver(`{"type":"session_update","session_id":2,"title":"Loops explained"}`)

	after := h.svc.Snapshot()
	assert.Equal(t, before.Transcript, after.Transcript)
	assert.True(t, after.IsProcessing, "session_update does not complete a request")

	renamed, ok := h.catalog.FindHistory(2)
	require.True(t, ok)
	assert.Equal(t, "Loops explained", renamed.Title)
	assert.Contains(t, h.publisher.types(), events.TypeSessionRenamed)
}

func TestSessionUpdateRenamesActiveSession(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)

	h.conn.deliver(`{"type":"session_update","session_id":1,"title":"Renamed"}`)

	assert.Equal(t, "Renamed", h.svc.Snapshot().Session.Title)
}

func TestCreationFailingAllAttemptsSurfacesOneMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.api.createFailures = 3

	require.NoError(t, h.svc.CreateFresh(context.Background()))

	snap := h.svc.Snapshot()
	assert.Equal(t, 3, h.api.calls())
	assert.Equal(t, []string{"system:" + constant.TutorCreateFailedMessage}, lines(snap.Transcript))
	assert.False(t, snap.IsProcessing)
	assert.Equal(t, store.PhaseIdle, snap.Phase)
	assert.Nil(t, snap.Session)
	assert.Empty(t, h.conn.bindIds(), "no connection after a failed creation")
	assert.NotContains(t, h.publisher.types(), events.TypeSessionCreated)
}

func TestCreationSucceedingOnThirdAttempt(t *testing.T) {
	h := newHarness(t, nil)
	h.api.createFailures = 2

	require.NoError(t, h.svc.CreateFresh(context.Background()))

	snap := h.svc.Snapshot()
	assert.Equal(t, 3, h.api.calls())
	assert.Equal(t, []string{"system:" + constant.TutorNewConversationMessage}, lines(snap.Transcript))
	require.NotNil(t, snap.Session)
	assert.Equal(t, []int64{snap.Session.Id}, h.conn.bindIds())
	assert.Equal(t, store.PhaseConnected, snap.Phase)
	assert.Equal(t, store.OriginFresh, snap.Origin)

	cat := h.svc.Catalog()
	assert.Equal(t, memory.ViewHistory, cat.View)
	assert.Equal(t, snap.Session.Id, cat.History[0].Id)
	assert.Equal(t, []string{events.TypeSessionCreated}, h.publisher.types())
}

func TestCreateFromTemplateConsumesIt(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.svc.SetView(memory.ViewLatest)

	require.NoError(t, h.svc.CreateFromTemplate(ctx, 7))

	snap := h.svc.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Contains(t, snap.Transcript[0].Content, "lecture.pdf")
	assert.Equal(t, "about loops", snap.Summary)
	assert.Equal(t, "for (;;) {}", snap.Code)
	assert.Equal(t, store.OriginLatestDocument, snap.Origin)
	assert.Equal(t, entity.SessionSeed{Title: "lecture.pdf", Summary: "about loops", Code: "for (;;) {}"}, h.api.createSeeds[0])

	cat := h.svc.Catalog()
	assert.Equal(t, memory.ViewHistory, cat.View)
	assert.Empty(t, cat.Latest)

	err := h.svc.CreateFromTemplate(ctx, 7)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestSelectUnknownSession(t *testing.T) {
	h := newHarness(t, nil)

	err := h.svc.SelectHistory(context.Background(), 999)

	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, h.conn.bindIds())
}

func TestHistoryLoadFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, nil)
	h.api.logErr = errors.New("500")

	h.selectSession(t, 1)

	snap := h.svc.Snapshot()
	assert.Equal(t, []string{"system:" + constant.TutorHistoryLoadFailedMessage}, lines(snap.Transcript))
	assert.Equal(t, []int64{1}, h.conn.bindIds())
	assert.Equal(t, store.PhaseConnected, snap.Phase)
}

func TestStaleLogFetchIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	gate := make(chan struct{})
	h.api.gates[1] = gate
	h.api.started = make(chan int64, 4)

	done := make(chan error, 1)
	go func() { done <- h.svc.SelectHistory(context.Background(), 1) }()
	require.Equal(t, int64(1), <-h.api.started)

	h.selectSession(t, 2)
	<-h.api.started

	close(gate)
	require.NoError(t, <-done)

	snap := h.svc.Snapshot()
	assert.Equal(t, int64(2), snap.Session.Id)
	assert.Equal(t, h.api.logs[2], snap.Transcript)
	assert.Equal(t, []int64{2}, h.conn.bindIds(), "the superseded switch never binds")
}

func TestFramesFromSupersededBindAreDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)
	old := h.conn.handlers[0]

	h.selectSession(t, 2)
	before := h.svc.Snapshot()

	old.OnFrame("conn-1", []byte(`{"type":"system","message":"late"}`))
	old.OnError("conn-1", errors.New("late failure"))

	assert.Equal(t, before, h.svc.Snapshot())
}

func TestTransmitFailureKeepsOptimisticMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)
	h.conn.sendErr = errors.New("send buffer full")

	require.True(t, h.svc.Send(context.Background(), "explain"))

	snap := h.svc.Snapshot()
	assert.False(t, snap.IsProcessing)
	assert.Equal(t, []string{
		"assistant:hi",
		"user:explain",
		"system:" + constant.TutorSendFailedMessage,
	}, lines(snap.Transcript))
}

func TestStageThenTransmitAreSeparateSteps(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)
	h.conn.Close()
	s := h.svc.(*tutorService)

	s.mu.Lock()
	s.stageRequestLocked("explain", false)
	err := s.transmitLocked("explain")
	staged := s.active.Transcript.Len()
	s.mu.Unlock()

	assert.ErrorIs(t, err, stream.ErrNotConnected)
	assert.Equal(t, 2, staged, "the user message is appended before transmission")
}

func TestReanalyzeClearsCodeAndSendsSentinel(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)

	require.True(t, h.svc.Reanalyze(context.Background()))

	snap := h.svc.Snapshot()
	assert.Empty(t, snap.Code)
	assert.True(t, snap.IsProcessing)
	assert.Equal(t, "user:"+constant.TutorReanalyzeQuestion, lastLine(snap.Transcript))

	var sent protocol.OutboundFrame
	require.NoError(t, json.Unmarshal(h.conn.sentFrames()[0], &sent))
	assert.Equal(t, constant.TutorReanalyzeQuestion, sent.Question)
}

func TestConnectionErrorClearsBusy(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)
	require.True(t, h.svc.Send(context.Background(), "q"))

	h.conn.fail(errors.New("connection reset"))

	snap := h.svc.Snapshot()
	assert.False(t, snap.IsProcessing)
	assert.Equal(t, "system:"+constant.TutorConnectionErrorMessage, lastLine(snap.Transcript))
	assert.Equal(t, int64(1), snap.Session.Id, "session stays selected")

	require.NoError(t, h.svc.Reconnect(context.Background()))
	assert.Equal(t, []int64{1, 1}, h.conn.bindIds())
	assert.True(t, h.svc.CanSend("again"))
}

func TestBindSkippedWithoutCredential(t *testing.T) {
	h := newHarness(t, nil)
	h.conn.notReady = true

	h.selectSession(t, 1)

	snap := h.svc.Snapshot()
	assert.Equal(t, store.PhaseSelecting, snap.Phase)
	assert.Len(t, snap.Transcript, 1, "not ready is not an error")
	assert.False(t, h.svc.CanSend("hello"))
}

func TestRefreshCatalogKeepsPartialResults(t *testing.T) {
	h := newHarness(t, nil)
	h.api.latestErr = errors.New("timeout")
	h.api.history = append(h.api.history, &entity.HistorySession{Id: 3, Title: "S3"})

	err := h.svc.RefreshCatalog(context.Background())

	require.Error(t, err)
	cat := h.svc.Catalog()
	assert.Len(t, cat.History, 3)
	assert.Len(t, cat.Latest, 1, "failed list keeps its previous contents")
}

func TestDocumentIngestedRefreshesTemplates(t *testing.T) {
	h := newHarness(t, nil)
	h.api.latest = append(h.api.latest, &entity.LatestDocumentSession{Id: 8, Title: "notes.md"})

	event := events.BaseEvent{Type: events.TypeDocumentIngested, Data: map[string]interface{}{"document_id": float64(8)}}
	require.NoError(t, h.svc.HandleDocumentIngested(context.Background(), event))

	assert.Len(t, h.svc.Catalog().Latest, 2)
}

func TestCloseDropsLateFrames(t *testing.T) {
	h := newHarness(t, nil)
	h.selectSession(t, 1)
	require.True(t, h.svc.Send(context.Background(), "q"))

	h.svc.Close()
	before := h.svc.Snapshot()
	h.conn.deliver(`{"type":"chat","summary":"late"}`)

	assert.Equal(t, before, h.svc.Snapshot())
	assert.False(t, before.IsProcessing)
}
