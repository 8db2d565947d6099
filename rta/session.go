package rta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// idleTimeout is how long the session will wait for any message before
// treating the connection as dead and closing it. Variable rather than a
// const so tests can shrink it instead of waiting out the real 30s.
var idleTimeout = 30 * time.Second

// session runs the read loop for one RTA connection: it issues the
// initial subscriptions, then decodes incoming frames and forwards them
// as Events until the connection closes, a subscribe/unsubscribe reply
// reports failure, or the idle timeout fires.
type session struct {
	conn    *websocket.Conn
	writer  *Writer
	events  chan Event
	preSubs []string
}

func newSession(conn *websocket.Conn, writer *Writer, events chan Event, preSubs []string) *session {
	return &session{conn: conn, writer: writer, events: events, preSubs: preSubs}
}

// run blocks until the session ends. ctx cancellation models the caller
// dropping the event receiver: the next attempt to deliver an event
// observes ctx.Done() and the session exits instead of blocking forever.
func (s *session) run(ctx context.Context) error {
	defer close(s.events)

	for _, uri := range s.preSubs {
		if _, err := s.writer.Subscribe(uri); err != nil {
			return fmt.Errorf("sending initial subscription for %q: %w", uri, err)
		}
	}

	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				_ = s.writer.Close()
				return ErrIdleTimeout
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		if msgType == websocket.PongMessage {
			if !s.deliver(ctx, Event{Kind: EventKindPong, Pong: data}) {
				return nil
			}
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[rta] dropping undecodable frame: %v", err)
			continue
		}

		switch frame.Type {
		case MessageSubscribe:
			if frame.Status != StatusSuccess {
				return fmt.Errorf("%w: %s", ErrSubscribeFailed, frame.Status)
			}
			if !s.deliver(ctx, Event{Kind: EventKindSubscribed, SeqID: frame.SeqID, SubID: frame.SubID, ConnectionID: frame.ConnectionID}) {
				return nil
			}
		case MessageUnsubscribe:
			if frame.Status != StatusSuccess {
				return fmt.Errorf("%w: %s", ErrUnsubscribeFailed, frame.Status)
			}
			if !s.deliver(ctx, Event{Kind: EventKindUnsubscribed, SeqID: frame.SeqID}) {
				return nil
			}
		case MessageEvent:
			if !s.deliver(ctx, Event{Kind: EventKindData, SubID: frame.SubID, Data: frame.EventData}) {
				return nil
			}
		case MessageResync:
			// No payload to forward; a resync just tells the reader its
			// subscriptions may have been reset server-side.
		}
	}
}

// deliver sends ev to the event channel, blocking if the channel is full
// (back-pressure). It returns false if ctx is canceled first, signaling
// the caller to stop the session instead of blocking forever on a
// receiver nobody is reading from anymore.
func (s *session) deliver(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
