package rta

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeSubscribe(t *testing.T) {
	data, err := EncodeSubscribe(1, "https://sessiondirectory.xboxlive.com/connections/")
	if err != nil {
		t.Fatalf("EncodeSubscribe: %v", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("got %d fields, want 3", len(raw))
	}
}

func TestFrame_DecodeSubscribeReply(t *testing.T) {
	var f Frame
	err := json.Unmarshal([]byte(`[1,1,0,42,{"ConnectionId":"cid-1"}]`), &f)
	if err != nil {
		t.Fatalf("decoding subscribe reply: %v", err)
	}
	if f.Type != MessageSubscribe || f.SeqID != 1 || f.Status != StatusSuccess || f.SubID != 42 || f.ConnectionID != "cid-1" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestFrame_DecodeUnsubscribeReply(t *testing.T) {
	var f Frame
	if err := json.Unmarshal([]byte(`[2,7,0]`), &f); err != nil {
		t.Fatalf("decoding unsubscribe reply: %v", err)
	}
	if f.Type != MessageUnsubscribe || f.SeqID != 7 || f.Status != StatusSuccess {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestFrame_DecodeEvent(t *testing.T) {
	var f Frame
	err := json.Unmarshal([]byte(`[3,42,{"ncid":"abc","shoulderTaps":[]}]`), &f)
	if err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if f.Type != MessageEvent || f.SubID != 42 {
		t.Fatalf("unexpected frame: %+v", f)
	}
	ev, err := f.EventData.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.NCID != "abc" {
		t.Fatalf("got ncid %q, want %q", ev.NCID, "abc")
	}
}

func TestFrame_DecodeResync(t *testing.T) {
	var f Frame
	if err := json.Unmarshal([]byte(`[4]`), &f); err != nil {
		t.Fatalf("decoding resync: %v", err)
	}
	if f.Type != MessageResync {
		t.Fatalf("got type %v, want MessageResync", f.Type)
	}
}

func TestFrame_UnknownMessageTypeFailsCleanly(t *testing.T) {
	var f Frame
	err := json.Unmarshal([]byte(`[99,1,2]`), &f)
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("got %v, want ErrUnknownMessageType", err)
	}
}

func TestFrame_UnknownStatusFailsCleanly(t *testing.T) {
	var f Frame
	err := json.Unmarshal([]byte(`[1,1,9999,42,{"ConnectionId":"x"}]`), &f)
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("got %v, want ErrUnknownStatus", err)
	}
}

func TestFrame_ShortArrayFailsCleanly(t *testing.T) {
	var f Frame
	err := json.Unmarshal([]byte(`[1,1]`), &f)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
}

func TestStatus_AllKnownCodesRoundTrip(t *testing.T) {
	for _, code := range []int64{0, 1, 2, 3, 1001, 1002} {
		if _, err := parseStatus(code); err != nil {
			t.Errorf("parseStatus(%d): %v", code, err)
		}
	}
	if _, err := parseStatus(7); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("parseStatus(7) = %v, want ErrUnknownStatus", err)
	}
}
