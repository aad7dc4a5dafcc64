package main

import (
	"bytes"
	"testing"

	"ai-tutoring-engine/internal/entity"
	"ai-tutoring-engine/internal/stream"
	"ai-tutoring-engine/pkg/store"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestTranscriptPrinterPrintsOnlyNewMessages(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newTranscriptPrinter(&buf)

	session := &entity.HistorySession{Id: 3, Title: "lecture.pdf"}
	snap := store.Snapshot{
		Session:    session,
		Transcript: []entity.Message{entity.NewSystemMessage("New conversation")},
	}
	p.Notify(snap, stream.StateConnecting)

	snap.Transcript = append(snap.Transcript, entity.NewUserMessage("what is a loop?"))
	p.Notify(snap, stream.StateOpen)

	snap.Transcript = append(snap.Transcript, entity.NewAssistantMessage("a repeated block"))
	snap.Summary = "loops repeat"
	p.Notify(snap, stream.StateOpen)

	assert.Equal(t, "== lecture.pdf (#3) ==\n"+
		"[New conversation]\n"+
		"(connection connecting)\n"+
		"you> what is a loop?\n"+
		"(connection open)\n"+
		"tutor> a repeated block\n"+
		"-- summary --\n"+
		"loops repeat\n", buf.String())
}

func TestTranscriptPrinterResetsOnSessionSwitch(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newTranscriptPrinter(&buf)

	p.Notify(store.Snapshot{
		Session:    &entity.HistorySession{Id: 1, Title: "one"},
		Transcript: []entity.Message{entity.NewAssistantMessage("a"), entity.NewAssistantMessage("b")},
	}, stream.StateClosed)
	buf.Reset()

	p.Notify(store.Snapshot{
		Session:    &entity.HistorySession{Id: 2, Title: "two"},
		Transcript: []entity.Message{entity.NewAssistantMessage("c")},
	}, stream.StateClosed)

	assert.Equal(t, "== two (#2) ==\ntutor> c\n", buf.String())
}
