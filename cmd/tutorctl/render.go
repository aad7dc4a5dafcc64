package main

import (
	"fmt"
	"io"
	"sync"

	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/store"

	"github.com/fatih/color"
)

// transcriptPrinter prints what changed since the previous snapshot.
type transcriptPrinter struct {
	mu  sync.Mutex
	out io.Writer

	sessionId int64
	printed   int
	summary   string
	code      string
	state     stream.ConnectionState

	system    *color.Color
	user      *color.Color
	assistant *color.Color
	panel     *color.Color
	faint     *color.Color
}

func newTranscriptPrinter(out io.Writer) *transcriptPrinter {
	return &transcriptPrinter{
		out:       out,
		state:     stream.StateClosed,
		system:    color.New(color.FgYellow),
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgGreen),
		panel:     color.New(color.FgMagenta),
		faint:     color.New(color.Faint),
	}
}

func (p *transcriptPrinter) Notify(snap store.Snapshot, state stream.ConnectionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id int64
	if snap.Session != nil {
		id = snap.Session.Id
	}
	if id != p.sessionId || len(snap.Transcript) < p.printed {
		p.sessionId, p.printed, p.summary, p.code = id, 0, "", ""
		if snap.Session != nil {
			p.panel.Fprintf(p.out, "== %s (#%d) ==\n", snap.Session.Title, id)
		}
	}

	for _, msg := range snap.Transcript[p.printed:] {
		p.printMessage(msg)
	}
	p.printed = len(snap.Transcript)

	if snap.Summary != p.summary && snap.Summary != "" {
		p.panel.Fprintln(p.out, "-- summary --")
		fmt.Fprintln(p.out, snap.Summary)
	}
	if snap.Code != p.code && snap.Code != "" {
		p.panel.Fprintln(p.out, "-- code --")
		fmt.Fprintln(p.out, snap.Code)
	}
	p.summary, p.code = snap.Summary, snap.Code

	if state != p.state {
		p.faint.Fprintf(p.out, "(connection %s)\n", state)
		p.state = state
	}
}

func (p *transcriptPrinter) printMessage(msg entity.Message) {
	switch msg.Role {
	case entity.MessageRoleUser:
		p.user.Fprint(p.out, "you> ")
		fmt.Fprintln(p.out, msg.Content)
	case entity.MessageRoleAssistant:
		p.assistant.Fprint(p.out, "tutor> ")
		fmt.Fprintln(p.out, msg.Content)
	default:
		p.system.Fprintf(p.out, "[%s]\n", msg.Content)
	}
}

func (p *transcriptPrinter) note(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faint.Fprintf(p.out, format+"\n", args...)
}
