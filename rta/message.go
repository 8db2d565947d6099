package rta

import (
	"encoding/json"
	"fmt"
)

// MessageType is the leading integer of every RTA wire frame.
type MessageType int64

const (
	MessageSubscribe   MessageType = 1
	MessageUnsubscribe MessageType = 2
	MessageEvent       MessageType = 3
	MessageResync      MessageType = 4
)

func parseMessageType(raw int64) (MessageType, error) {
	switch MessageType(raw) {
	case MessageSubscribe, MessageUnsubscribe, MessageEvent, MessageResync:
		return MessageType(raw), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownMessageType, raw)
	}
}

// EventData is the heterogeneous JSON payload of an Event frame. RTA
// resources do not share one schema, so it is kept as a generic object
// rather than a fixed struct.
type EventData map[string]any

// connectionPayload is the trailing object on a successful Subscribe
// reply.
type connectionPayload struct {
	ConnectionID string `json:"ConnectionId"`
}

// Frame is one decoded incoming RTA message. Which fields are meaningful
// depends on Type: Subscribe populates SeqID/Status/SubID/ConnectionID,
// Unsubscribe populates SeqID/Status, Event populates SubID/EventData,
// Resync populates nothing further.
type Frame struct {
	Type         MessageType
	SeqID        int64
	Status       Status
	SubID        int64
	ConnectionID string
	EventData    EventData
}

// UnmarshalJSON decodes a frame from its positional JSON array form. It
// never panics: an unrecognized message type or status, or a
// short/malformed array, is reported as an error so the caller can drop
// the frame and keep reading.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: not a JSON array: %v", ErrDecode, err)
	}
	if len(raw) < 1 {
		return fmt.Errorf("%w: empty frame", ErrDecode)
	}

	var typeVal int64
	if err := json.Unmarshal(raw[0], &typeVal); err != nil {
		return fmt.Errorf("%w: message type: %v", ErrDecode, err)
	}
	msgType, err := parseMessageType(typeVal)
	if err != nil {
		return err
	}

	switch msgType {
	case MessageSubscribe:
		if len(raw) < 5 {
			return fmt.Errorf("%w: subscribe reply has %d fields, want 5", ErrDecode, len(raw))
		}
		seqID, status, subID, err := decodeSeqStatusSub(raw[1], raw[2], raw[3])
		if err != nil {
			return err
		}
		var conn connectionPayload
		if err := json.Unmarshal(raw[4], &conn); err != nil {
			return fmt.Errorf("%w: connection payload: %v", ErrDecode, err)
		}
		*f = Frame{Type: msgType, SeqID: seqID, Status: status, SubID: subID, ConnectionID: conn.ConnectionID}
		return nil

	case MessageUnsubscribe:
		if len(raw) < 3 {
			return fmt.Errorf("%w: unsubscribe reply has %d fields, want 3", ErrDecode, len(raw))
		}
		seqID, status, _, err := decodeSeqStatusSub(raw[1], raw[2], nil)
		if err != nil {
			return err
		}
		*f = Frame{Type: msgType, SeqID: seqID, Status: status}
		return nil

	case MessageEvent:
		if len(raw) < 3 {
			return fmt.Errorf("%w: event has %d fields, want 3", ErrDecode, len(raw))
		}
		var subID int64
		if err := json.Unmarshal(raw[1], &subID); err != nil {
			return fmt.Errorf("%w: subscription id: %v", ErrDecode, err)
		}
		var data EventData
		if err := json.Unmarshal(raw[2], &data); err != nil {
			return fmt.Errorf("%w: event payload: %v", ErrDecode, err)
		}
		*f = Frame{Type: msgType, SubID: subID, EventData: data}
		return nil

	case MessageResync:
		*f = Frame{Type: msgType}
		return nil
	}

	return fmt.Errorf("%w: %d", ErrUnknownMessageType, typeVal)
}

func decodeSeqStatusSub(seqRaw, statusRaw, subRaw json.RawMessage) (seqID int64, status Status, subID int64, err error) {
	if err = json.Unmarshal(seqRaw, &seqID); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: sequence id: %v", ErrDecode, err)
	}
	var statusVal int64
	if err = json.Unmarshal(statusRaw, &statusVal); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: status: %v", ErrDecode, err)
	}
	status, err = parseStatus(statusVal)
	if err != nil {
		return 0, 0, 0, err
	}
	if subRaw != nil {
		if err = json.Unmarshal(subRaw, &subID); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: subscription id: %v", ErrDecode, err)
		}
	}
	return seqID, status, subID, nil
}

// EncodeSubscribe renders the outgoing Subscribe frame for uri with
// sequence id seqID.
func EncodeSubscribe(seqID int64, uri string) ([]byte, error) {
	return json.Marshal([]any{MessageSubscribe, seqID, uri})
}

// EncodeUnsubscribe renders the outgoing Unsubscribe frame for subID with
// sequence id seqID.
func EncodeUnsubscribe(seqID int64, subID int64) ([]byte, error) {
	return json.Marshal([]any{MessageUnsubscribe, seqID, subID})
}
