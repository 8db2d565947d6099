package rta

import "encoding/json"

// ShoulderTap is one change notification within a ConnectionsEvent.
type ShoulderTap struct {
	Timestamp    string `json:"timestamp"`
	Subscription string `json:"subscription"`
	ResourceType string `json:"resourceType"`
	Resource     string `json:"resource"`
	Branch       string `json:"branch"`
	ChangeNumber int64  `json:"changeNumber"`
}

// ConnectionsEvent is the decoded payload of the "connections" resource,
// the only subscription kind currently modeled. Wire field names are
// PascalCase; Decode maps them case-insensitively onto this struct.
type ConnectionsEvent struct {
	NCID         string        `json:"ncid"`
	ShoulderTaps []ShoulderTap `json:"shoulderTaps"`
}

// Decode re-marshals the raw event payload and unmarshals it as a
// ConnectionsEvent. encoding/json matches field names case-insensitively
// when no exact match exists, so the wire's PascalCase ("Ncid",
// "ShoulderTaps", "ResourceType", ...) lands on these lowerCamel tags
// without a custom unmarshaler.
func (d EventData) Decode() (ConnectionsEvent, error) {
	raw, err := json.Marshal(map[string]any(d))
	if err != nil {
		return ConnectionsEvent{}, err
	}
	var ev ConnectionsEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ConnectionsEvent{}, err
	}
	return ev, nil
}

// Event is one item delivered to a session's event channel.
type Event struct {
	Kind EventKind

	// SeqID is populated for EventKindSubscribed and EventKindUnsubscribed;
	// ConnectionID for EventKindSubscribed only.
	SeqID        int64
	ConnectionID string

	// Populated for EventKindSubscribed and EventKindData.
	SubID int64

	// Populated for EventKindData.
	Data EventData

	// Populated for EventKindPong.
	Pong []byte
}

// EventKind discriminates the Event union.
type EventKind int

const (
	EventKindSubscribed EventKind = iota
	EventKindUnsubscribed
	EventKindData
	EventKindPong
)
