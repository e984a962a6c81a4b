package session

import (
	"testing"
)

func TestDecodeInbound_TextMessage(t *testing.T) {
	t.Parallel()
	msg, err := decodeInbound([]byte(`{"type":"text-message","text":"show me jackets"}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != inboundText || msg.Text != "show me jackets" {
		t.Errorf("decoded = %+v", msg)
	}
}

func TestDecodeInbound_PurchaseStatus(t *testing.T) {
	t.Parallel()
	msg, err := decodeInbound([]byte(`{"type":"purchase-status","status":"payment-processing","payload":{"product":"Sneakers"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != inboundPurchaseStatus || msg.Status != "payment-processing" {
		t.Errorf("decoded = %+v", msg)
	}
	if msg.Payload["product"] != "Sneakers" {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestDecodeInbound_AudioTypeSpellings(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		`{"type":"audio","data":"AQI="}`,
		`{"type":"audio-frame","data":"AQI="}`,
	} {
		msg, err := decodeInbound([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		if !msg.isAudio() {
			t.Errorf("%s should route as audio", raw)
		}
		if msg.Data != "AQI=" {
			t.Errorf("decoded = %+v", msg)
		}
	}
	if (inboundMessage{Type: inboundVision}).isAudio() {
		t.Error("vision-image must not route as audio")
	}
}

func TestDecodeInbound_MissingType(t *testing.T) {
	t.Parallel()
	if _, err := decodeInbound([]byte(`{"text":"hi"}`)); err == nil {
		t.Fatal("missing type should be rejected")
	}
}

func TestDecodeInbound_BadJSON(t *testing.T) {
	t.Parallel()
	if _, err := decodeInbound([]byte(`{"type":`)); err == nil {
		t.Fatal("malformed frame should be rejected")
	}
}
