package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	appLog "jarviscal/internal/log"
)

// FrameType discriminates server frames on the streaming channel.
type FrameType string

const (
	FrameChunk FrameType = "chunk"
	FrameDone  FrameType = "done"
	FrameError FrameType = "error"
)

// Frame is one JSON message pushed by the server.
type Frame struct {
	Type    FrameType `json:"type"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type outgoingFrame struct {
	Message string `json:"message"`
}

// StreamHandler receives the events of a Stream. Callbacks run on the
// stream's reader goroutine and must not call Stream.Close. Nil callbacks
// are skipped.
type StreamHandler struct {
	OnChunk    func(content string)
	OnComplete func()
	OnError    func(err error)
}

// Stream is a long-lived duplex chat channel. At most one turn is open at a
// time: Send starts a turn, a done or error frame ends it.
type Stream struct {
	conn    net.Conn
	src     io.Reader
	handler StreamHandler

	writeMu sync.Mutex

	mu      sync.Mutex
	inTurn  bool
	closing bool

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// ConnectStream dials the streaming endpoint and starts delivering frames
// to h. A dial failure is returned; every later failure goes to h.OnError.
func (c *Client) ConnectStream(ctx context.Context, h StreamHandler) (*Stream, error) {
	wsURL, err := c.streamURL()
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}

	conn, br, _, err := c.dialer.Dial(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}

	s := &Stream{
		conn:    conn,
		src:     conn,
		handler: h,
		done:    make(chan struct{}),
	}
	// Bytes already buffered during the handshake must be read first.
	if br != nil {
		s.src = br
	}

	appLog.Info("stream connected", "url", wsURL)
	go s.readLoop()
	return s, nil
}

// Send starts a turn with message.
func (s *Stream) Send(message string) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	if s.inTurn {
		s.mu.Unlock()
		return ErrTurnInProgress
	}
	s.inTurn = true
	s.mu.Unlock()

	data, err := json.Marshal(outgoingFrame{Message: message})
	if err != nil {
		s.endTurn()
		return fmt.Errorf("stream send: %w", err)
	}

	s.writeMu.Lock()
	err = wsutil.WriteClientText(s.conn, data)
	s.writeMu.Unlock()
	if err != nil {
		s.endTurn()
		return fmt.Errorf("stream send: %w", err)
	}
	return nil
}

// InTurn reports whether a turn is waiting for its done frame.
func (s *Stream) InTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTurn
}

// Done is closed once the reader goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close sends a close frame, closes the connection and waits for the
// reader goroutine. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.writeMu.Lock()
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteClientMessage(s.conn, ws.OpClose, body)
		s.writeMu.Unlock()

		s.closeErr = s.conn.Close()
	})
	<-s.done
	return s.closeErr
}

func (s *Stream) readLoop() {
	defer close(s.done)

	// Control replies are staged here and flushed in one write so they
	// never interleave with a frame written by Send.
	var ctl bytes.Buffer
	controlHandler := wsutil.ControlFrameHandler(&ctl, ws.StateClientSide)
	rd := &wsutil.Reader{
		Source:         s.src,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: controlHandler,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			s.fail(err)
			return
		}

		if hdr.OpCode.IsControl() {
			herr := controlHandler(hdr, rd)
			s.flushControl(&ctl)
			if herr != nil {
				s.fail(herr)
				return
			}
			continue
		}

		if hdr.OpCode&ws.OpText == 0 {
			if err := rd.Discard(); err != nil {
				s.fail(err)
				return
			}
			continue
		}

		payload, err := io.ReadAll(rd)
		s.flushControl(&ctl)
		if err != nil {
			s.fail(err)
			return
		}
		s.dispatch(payload)
	}
}

func (s *Stream) dispatch(payload []byte) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		s.endTurn()
		s.emitError(&StreamError{Err: fmt.Errorf("decode frame: %w", err)})
		return
	}

	switch f.Type {
	case FrameChunk:
		if s.handler.OnChunk != nil {
			s.handler.OnChunk(f.Content)
		}
	case FrameDone:
		s.endTurn()
		if s.handler.OnComplete != nil {
			s.handler.OnComplete()
		}
	case FrameError:
		s.endTurn()
		msg := f.Error
		if msg == "" {
			msg = f.Content
		}
		s.emitError(&StreamError{Message: msg})
	default:
		appLog.Debug("stream: ignoring frame", "type", string(f.Type))
	}
}

func (s *Stream) flushControl(ctl *bytes.Buffer) {
	if ctl.Len() == 0 {
		return
	}
	s.writeMu.Lock()
	_, err := s.conn.Write(ctl.Bytes())
	s.writeMu.Unlock()
	ctl.Reset()
	if err != nil {
		appLog.Debug("stream: control reply failed", "err", err)
	}
}

// fail ends the reader. Errors caused by a local Close or a normal close
// from the server are not reported.
func (s *Stream) fail(err error) {
	s.endTurn()

	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return
	}

	var closed wsutil.ClosedError
	if errors.As(err, &closed) &&
		(closed.Code == ws.StatusNormalClosure || closed.Code == ws.StatusGoingAway) {
		appLog.Info("stream closed by server", "code", int(closed.Code))
		return
	}
	s.emitError(&StreamError{Err: err})
}

func (s *Stream) emitError(err error) {
	appLog.Error("stream error", err)
	if s.handler.OnError != nil {
		s.handler.OnError(err)
	}
}

func (s *Stream) endTurn() {
	s.mu.Lock()
	s.inTurn = false
	s.mu.Unlock()
}
