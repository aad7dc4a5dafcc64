package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/events"
)

type fakeAPI struct {
	mu sync.Mutex

	history   []*entity.HistorySession
	latest    []*entity.LatestDocumentSession
	logs      map[int64][]entity.Message
	logErr    error
	listErr   error
	latestErr error

	// gates, when set for a session id, block FetchMessages until closed.
	gates   map[int64]chan struct{}
	started chan int64

	createFailures int
	createCalls    int
	createSeeds    []entity.SessionSeed
	nextId         int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{logs: map[int64][]entity.Message{}, gates: map[int64]chan struct{}{}, nextId: 100}
}

func (f *fakeAPI) ListHistory(ctx context.Context) ([]*entity.HistorySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*entity.HistorySession, 0, len(f.history))
	for _, s := range f.history {
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeAPI) ListLatest(ctx context.Context) ([]*entity.LatestDocumentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	out := make([]*entity.LatestDocumentSession, 0, len(f.latest))
	for _, s := range f.latest {
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeAPI) FetchMessages(ctx context.Context, sessionId int64) ([]entity.Message, error) {
	f.mu.Lock()
	gate := f.gates[sessionId]
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- sessionId
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return nil, f.logErr
	}
	return append([]entity.Message(nil), f.logs[sessionId]...), nil
}

func (f *fakeAPI) CreateSession(ctx context.Context, seed entity.SessionSeed) (*entity.HistorySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createCalls <= f.createFailures {
		return nil, errors.New("502 bad gateway")
	}
	f.createSeeds = append(f.createSeeds, seed)
	f.nextId++
	title := seed.Title
	if title == "" {
		title = "New conversation"
	}
	s := &entity.HistorySession{Id: f.nextId, UserId: 42, Title: title}
	if seed.Summary != "" {
		summary := seed.Summary
		s.Summary = &summary
	}
	f.history = append([]*entity.HistorySession{s}, f.history...)
	c := *s
	return &c, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

// fakeConnection stands in for stream.Manager. Frames are injected through
// the handlers captured at bind time.
type fakeConnection struct {
	mu       sync.Mutex
	state    stream.ConnectionState
	binds    []int64
	handlers []stream.Handlers
	sent     [][]byte
	sendErr  error
	notReady bool
	closes   int
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{state: stream.StateClosed}
}

func (c *fakeConnection) Bind(ctx context.Context, sessionId int64, h stream.Handlers) (string, error) {
	c.mu.Lock()
	c.state = stream.StateClosed
	if c.notReady {
		c.mu.Unlock()
		return "", nil
	}
	c.binds = append(c.binds, sessionId)
	c.handlers = append(c.handlers, h)
	c.state = stream.StateOpen
	id := "conn-" + strconv.Itoa(len(c.binds))
	c.mu.Unlock()

	h.OnOpen(id)
	return id, nil
}

func (c *fakeConnection) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stream.StateOpen {
		return stream.ErrNotConnected
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConnection) State() stream.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stream.StateClosed
	c.closes++
}

func (c *fakeConnection) bindIds() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.binds...)
}

func (c *fakeConnection) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// deliver pushes a frame through the handlers of the latest bind.
func (c *fakeConnection) deliver(frame string) {
	c.mu.Lock()
	h := c.handlers[len(c.handlers)-1]
	id := "conn-" + strconv.Itoa(len(c.handlers))
	c.mu.Unlock()
	h.OnFrame(id, []byte(frame))
}

func (c *fakeConnection) fail(err error) {
	c.mu.Lock()
	h := c.handlers[len(c.handlers)-1]
	c.state = stream.StateErroring
	c.mu.Unlock()
	h.OnError("conn", err)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
