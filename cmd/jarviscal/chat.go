package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"jarviscal/internal/api"
	"jarviscal/internal/chat"
	appLog "jarviscal/internal/log"
	"jarviscal/internal/termview"
)

var (
	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func newChatCmd(a *app) *cobra.Command {
	var (
		stream bool
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Send one message and print the reply, or start an interactive session
when no message is given.

Interactive commands:
  /clear    start a new session
  /session  show the current session id
  /quit     leave`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tr := chat.NewTranscript()
			if len(args) == 0 {
				return a.repl(cmd.Context(), cmd.InOrStdin(), out, cmd.ErrOrStderr(), tr, stream, raw)
			}

			msg := strings.Join(args, " ")
			tr.AddUser(msg)
			if stream {
				ss, err := a.openStream(cmd.Context(), out, tr)
				if err != nil {
					return err
				}
				defer ss.close()
				return ss.turn(cmd.Context(), msg)
			}
			return a.chatTurn(cmd.Context(), out, tr, msg, raw)
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream the reply over the WebSocket channel")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print replies without markdown rendering")
	return cmd
}

// chatTurn sends one request/response turn and prints the reply.
func (a *app) chatTurn(ctx context.Context, out io.Writer, tr *chat.Transcript, msg string, raw bool) error {
	resp, err := a.client.Chat(ctx, msg, false)
	if err != nil {
		return err
	}
	tr.AddAssistant(resp.Response)
	appLog.Debug("chat reply", "model", resp.ModelUsed, "session", resp.SessionID)

	text := resp.Response
	if !raw {
		if rendered, rerr := termview.RenderMarkdown(resp.Response, 0); rerr == nil {
			text = rendered
		} else {
			appLog.Error("markdown render failed", rerr)
		}
	}
	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return nil
}

// streamSession keeps one streaming channel open across turns and prints
// chunks as they arrive.
type streamSession struct {
	stream *api.Stream
	out    io.Writer
	turns  chan error
}

func (a *app) openStream(ctx context.Context, out io.Writer, tr *chat.Transcript) (*streamSession, error) {
	ss := &streamSession{out: out, turns: make(chan error, 1)}
	finish := func(err error) {
		tr.FinishStream()
		select {
		case ss.turns <- err:
		default:
		}
	}
	s, err := a.client.ConnectStream(ctx, api.StreamHandler{
		OnChunk: func(content string) {
			tr.AppendChunk(content)
			fmt.Fprint(out, content)
		},
		OnComplete: func() { finish(nil) },
		OnError:    finish,
	})
	if err != nil {
		return nil, err
	}
	ss.stream = s
	return ss, nil
}

// turn sends msg and blocks until the reply is complete.
func (ss *streamSession) turn(ctx context.Context, msg string) error {
	// Drop a result left over from a turn that already returned.
	select {
	case <-ss.turns:
	default:
	}
	if err := ss.stream.Send(msg); err != nil {
		return err
	}
	var err error
	select {
	case err = <-ss.turns:
	case <-ctx.Done():
		err = ctx.Err()
	case <-ss.stream.Done():
		// The reader reports the failure before it exits.
		select {
		case err = <-ss.turns:
		default:
			err = api.ErrStreamClosed
		}
	}
	fmt.Fprintln(ss.out)
	return err
}

func (ss *streamSession) close() {
	if err := ss.stream.Close(); err != nil {
		appLog.Debug("stream close", "err", err)
	}
}

// repl runs the interactive session until /quit or end of input. Failed
// turns are reported and the session continues.
func (a *app) repl(ctx context.Context, in io.Reader, out, errOut io.Writer, tr *chat.Transcript, stream, raw bool) error {
	var ss *streamSession
	if stream {
		var err error
		if ss, err = a.openStream(ctx, out, tr); err != nil {
			return err
		}
		defer ss.close()
	}

	fmt.Fprintln(out, hintStyle.Render("Chatting with Jarvis. /clear resets the session, /session shows it, /quit exits."))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			a.client.ClearSession()
			tr.Reset()
			fmt.Fprintln(out, hintStyle.Render("Session cleared."))
			continue
		case "/session":
			id := a.client.SessionID()
			if id == "" {
				id = "(none yet)"
			}
			fmt.Fprintln(out, hintStyle.Render("Session: "+id))
			continue
		}

		tr.AddUser(line)
		var err error
		if ss != nil {
			err = ss.turn(ctx, line)
		} else {
			err = a.chatTurn(ctx, out, tr, line, raw)
		}
		if err != nil {
			appLog.Error("chat turn failed", err)
			fmt.Fprintf(errOut, "Sorry, I encountered an error: %v\n", err)
		}
	}
}
