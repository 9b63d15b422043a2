package store

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestNullTime(t *testing.T) {
	if v := nullTime(""); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullTime("not-a-time"); v != nil {
		t.Fatalf("garbage -> nil expected")
	}
	got := nullTime("2026-01-02T03:04:05Z")
	ts, ok := got.(time.Time)
	if !ok || ts.Hour() != 3 {
		t.Fatalf("parsed time expected, got %v", got)
	}
}

func TestJSONOrNull(t *testing.T) {
	if v := jsonOrNull(nil); v != nil {
		t.Fatalf("nil -> nil expected")
	}
	var m map[string]any
	if v := jsonOrNull(m); v != nil {
		t.Fatalf("nil map -> nil expected")
	}
	if v := jsonOrNull(map[string]any{"a": 1}); v == nil {
		t.Fatalf("non-empty -> bytes expected")
	}
}
