package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"ai-tutoring-engine/internal/service"

	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	var sessionId, template int64
	var fresh bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open a session and chat with the tutor",
		Long: `Opens a history session (--session), or creates one (--new / --template), then reads
questions from stdin. Commands: /reanalyze, /reconnect, /quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			printer := newTranscriptPrinter(os.Stdout)
			engine, err := openEngine(ctx, printer)
			if err != nil {
				return err
			}
			defer engine.Close()

			svc := engine.Service
			switch {
			case sessionId > 0:
				err = svc.SelectHistory(ctx, sessionId)
			case template > 0:
				err = svc.CreateFromTemplate(ctx, template)
			case fresh:
				err = svc.CreateFresh(ctx)
			default:
				return fmt.Errorf("choose one of --session, --template or --new")
			}
			if err != nil {
				return err
			}

			return chatLoop(ctx, svc, os.Stdin, printer)
		},
	}

	cmd.Flags().Int64Var(&sessionId, "session", 0, "History session id to open")
	cmd.Flags().Int64Var(&template, "template", 0, "Latest-document template id to seed a new session from")
	cmd.Flags().BoolVar(&fresh, "new", false, "Start a fresh session")
	return cmd
}

func chatLoop(ctx context.Context, svc service.ITutorService, in io.Reader, printer *transcriptPrinter) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(text)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reanalyze":
			if !svc.Reanalyze(ctx) {
				printer.note("cannot reanalyze now (waiting for a reply or not connected)")
			}
			continue
		case "/reconnect":
			if err := svc.Reconnect(ctx); err != nil {
				printer.note("%v", err)
			}
			continue
		}

		if !svc.Send(ctx, line) {
			printer.note("not sent (waiting for a reply or not connected)")
		}
	}
}
