package rta

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may block.
const writeWait = 10 * time.Second

// Writer sends frames on the session's WebSocket connection. It is safe
// for concurrent use: every send holds one mutex for the whole
// "assign the next sequence id, write the frame" critical section, so
// sequence ids are assigned in the order frames actually go out on the
// wire, with no gaps.
type Writer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	nextSeq int64
}

// NewWriter wraps conn. Sequence ids start at 1.
func NewWriter(conn *websocket.Conn) *Writer {
	return &Writer{conn: conn, nextSeq: 1}
}

// Subscribe sends a Subscribe frame for uri and returns the sequence id
// used, so the caller can correlate the eventual reply.
func (w *Writer) Subscribe(uri string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	seqID := w.nextSeq
	frame, err := EncodeSubscribe(seqID, uri)
	if err != nil {
		return 0, err
	}
	if err := w.writeLocked(websocket.TextMessage, frame); err != nil {
		return 0, err
	}
	w.nextSeq++
	return seqID, nil
}

// Unsubscribe sends an Unsubscribe frame for subID.
func (w *Writer) Unsubscribe(subID int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	seqID := w.nextSeq
	frame, err := EncodeUnsubscribe(seqID, subID)
	if err != nil {
		return 0, err
	}
	if err := w.writeLocked(websocket.TextMessage, frame); err != nil {
		return 0, err
	}
	w.nextSeq++
	return seqID, nil
}

// Close sends a WebSocket close frame.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Send writes raw as a text frame without interpreting it as a subscribe
// or unsubscribe request; it does not consume a sequence id, since it
// carries no frame the server replies to by seq_id.
func (w *Writer) Send(raw []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(websocket.TextMessage, raw)
}

func (w *Writer) writeLocked(messageType int, data []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := w.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
