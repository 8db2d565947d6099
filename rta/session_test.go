package rta

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestSession_HappyPath covers the normal connect-and-subscribe path:
// after connect, the first incoming frame is a successful subscribe
// reply, and it must surface as a Subscribe event with the right
// sequence, subscription, and connection ids.
func TestSession_HappyPath(t *testing.T) {
	conn := dialTestServer(t, func(server *websocket.Conn) {
		// Read the initial subscription the session sends before the server
		// has replied to anything.
		server.ReadMessage()
		server.WriteMessage(websocket.TextMessage, []byte(`[1,1,0,42,{"ConnectionId":"cid-1"}]`))
	})

	writer := NewWriter(conn)
	events := make(chan Event, 4)
	sess := newSession(conn, writer, events, []string{"https://sessiondirectory.xboxlive.com/connections/"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.run(ctx)

	select {
	case ev := <-events:
		if ev.Kind != EventKindSubscribed || ev.SeqID != 1 || ev.SubID != 42 || ev.ConnectionID != "cid-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe event")
	}
}

// TestSession_IdleTimeout covers the idle-timeout close behavior: no
// frames arrive for the idle window, after which the session sends a
// Close frame and ends, closing the event channel.
func TestSession_IdleTimeout(t *testing.T) {
	orig := idleTimeout
	idleTimeout = 200 * time.Millisecond
	defer func() { idleTimeout = orig }()

	closeSeen := make(chan struct{}, 1)
	conn := dialTestServer(t, func(server *websocket.Conn) {
		server.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := server.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			closeSeen <- struct{}{}
		}
	})

	writer := NewWriter(conn)
	events := make(chan Event, 4)
	sess := newSession(conn, writer, events, nil)

	done := make(chan error, 1)
	go func() { done <- sess.run(context.Background()) }()

	select {
	case <-closeSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed a close frame")
	}

	select {
	case err := <-done:
		if err != ErrIdleTimeout {
			t.Fatalf("got %v, want ErrIdleTimeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session.run never returned")
	}

	if _, ok := <-events; ok {
		t.Fatal("expected event channel to be closed")
	}
}
