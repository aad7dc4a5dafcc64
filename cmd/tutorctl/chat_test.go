package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"ai-tutoring-engine/internal/service"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	service.ITutorService

	sent       []string
	reanalyzed int
	accept     bool
}

func (f *fakeChatService) Send(ctx context.Context, text string) bool {
	f.sent = append(f.sent, text)
	return f.accept
}

func (f *fakeChatService) Reanalyze(ctx context.Context) bool {
	f.reanalyzed++
	return f.accept
}

func TestChatLoopRoutesCommands(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	svc := &fakeChatService{accept: true}

	in := strings.NewReader("what is a loop?\n\n/reanalyze\n/quit\nignored\n")
	require.NoError(t, chatLoop(context.Background(), svc, in, newTranscriptPrinter(&out)))

	assert.Equal(t, []string{"what is a loop?"}, svc.sent)
	assert.Equal(t, 1, svc.reanalyzed)
	assert.Empty(t, out.String())
}

func TestChatLoopReportsGatedSend(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	svc := &fakeChatService{}

	require.NoError(t, chatLoop(context.Background(), svc, strings.NewReader("hello\n"), newTranscriptPrinter(&out)))

	assert.Equal(t, "not sent (waiting for a reply or not connected)\n", out.String())
}
