package stream

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

type fakeConn struct {
	url     string
	inbound chan []byte

	mu       sync.Mutex
	written  [][]byte
	controls []int
	closed   bool
	closedCh chan struct{}
}

func newFakeConn(target string) *fakeConn {
	return &fakeConn{url: target, inbound: make(chan []byte, 16), closedCh: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.inbound:
		if !ok {
			return 0, nil, io.ErrUnexpectedEOF
		}
		return websocket.TextMessage, data, nil
	case <-f.closedCh:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("write on closed connection")
	}
	if messageType == websocket.TextMessage {
		f.written = append(f.written, data)
	}
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeConn) SetReadLimit(limit int64)                    {}
func (f *fakeConn) SetReadDeadline(t time.Time) error           { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error          { return nil }
func (f *fakeConn) SetPongHandler(h func(appData string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closedCh)
	}
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) writtenFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// drop simulates the server going away.
func (f *fakeConn) drop() {
	close(f.inbound)
}

func (f *fakeConn) query() url.Values {
	u, _ := url.Parse(f.url)
	return u.Query()
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, target string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn(target)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) all() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) last() *fakeConn {
	all := d.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (d *fakeDialer) openCount() int {
	n := 0
	for _, c := range d.all() {
		if !c.isClosed() {
			n++
		}
	}
	return n
}

type recorder struct {
	mu     sync.Mutex
	opens  []string
	frames []string
	errs   []string
	closes []string
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpen: func(id string) {
			r.mu.Lock()
			r.opens = append(r.opens, id)
			r.mu.Unlock()
		},
		OnFrame: func(id string, data []byte) {
			r.mu.Lock()
			r.frames = append(r.frames, string(data))
			r.mu.Unlock()
		},
		OnError: func(id string, err error) {
			r.mu.Lock()
			r.errs = append(r.errs, id)
			r.mu.Unlock()
		},
		OnClose: func(id string) {
			r.mu.Lock()
			r.closes = append(r.closes, id)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *recorder) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closes)
}

func (r *recorder) snapshotFrames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}
