package rta

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lucasnewell/xblrta/auth"
)

const defaultEventBufferSize = 32

// rtaSubProtocol is the WebSocket subprotocol RTA negotiates on connect.
const rtaSubProtocol = "rta.xboxlive.com.V2"

// Builder assembles an RTA connection: the auth source to mint XSTS
// tokens from, the endpoint, the event channel's buffer size, and any
// subscriptions to issue as soon as the socket is up.
type Builder struct {
	authHolder      *auth.SharedHolder
	uri             string
	eventBufferSize int
	subscriptions   []string
}

// NewBuilder starts a Builder backed by authHolder.
func NewBuilder(authHolder *auth.SharedHolder) *Builder {
	return &Builder{
		authHolder:      authHolder,
		uri:             "wss://rta.xboxlive.com/connect",
		eventBufferSize: defaultEventBufferSize,
	}
}

// SetURI overrides the RTA WebSocket endpoint (mainly for tests).
func (b *Builder) SetURI(uri string) *Builder {
	b.uri = uri
	return b
}

// SetEventBufferSize overrides the event channel's buffer size.
func (b *Builder) SetEventBufferSize(size int) *Builder {
	b.eventBufferSize = size
	return b
}

// AddSubscription queues uri to be subscribed as soon as the session
// starts.
func (b *Builder) AddSubscription(uri string) *Builder {
	b.subscriptions = append(b.subscriptions, uri)
	return b
}

// Client is an established RTA connection, ready to Listen on.
type Client struct {
	conn            *websocket.Conn
	subscriptions   []string
	eventBufferSize int
}

// Connect acquires an XSTS token and performs the WebSocket upgrade.
func (b *Builder) Connect(ctx context.Context) (*Client, error) {
	xsts, err := b.authHolder.GetXboxToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring xbox token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", xsts.Take().Authorization())
	header.Set("Sec-WebSocket-Protocol", rtaSubProtocol)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, b.uri, header)
	if err != nil {
		return nil, fmt.Errorf("dialing RTA endpoint: %w", err)
	}

	bufSize := b.eventBufferSize
	if bufSize <= 0 {
		bufSize = defaultEventBufferSize
	}

	return &Client{conn: conn, subscriptions: b.subscriptions, eventBufferSize: bufSize}, nil
}

// Listen starts the session's read loop in a new goroutine and returns a
// Writer for sending Subscribe/Unsubscribe/Close frames plus the channel
// the session publishes Events on. Canceling ctx stops the session even
// if nothing is draining the event channel.
func (c *Client) Listen(ctx context.Context) (*Writer, <-chan Event) {
	writer := NewWriter(c.conn)
	events := make(chan Event, c.eventBufferSize)
	sess := newSession(c.conn, writer, events, c.subscriptions)

	go func() {
		if err := sess.run(ctx); err != nil {
			log.Printf("[rta] session ended: %v", err)
		}
	}()

	return writer, events
}
