//go:build redis_integration

package api

import (
    "os"
    "testing"
    "time"
)

func TestRedisBrokerUnsubscribeThenPublish(t *testing.T) {
    if os.Getenv("REDIS_URL") == "" { t.Skip("REDIS_URL not set; skipping integration test") }
    b, err := NewRedisBroker()
    if err != nil { t.Fatalf("NewRedisBroker: %v", err) }

    ch := b.Subscribe("run-x")
    b.Unsubscribe("run-x", ch)

    // a late event after unsubscribe must not panic; the reader goroutine
    // owns the close
    b.Publish("run-x", SSEEvent{Type: "run.progress", Data: map[string]any{"iteration": 1}})

    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        select {
        case _, ok := <-ch:
            if !ok { return } // closed exactly once by the reader
        default:
            time.Sleep(10 * time.Millisecond)
        }
    }
    t.Fatal("subscriber channel never closed after unsubscribe")
}

func TestRedisBrokerDeliversAcrossSubscription(t *testing.T) {
    if os.Getenv("REDIS_URL") == "" { t.Skip("REDIS_URL not set; skipping integration test") }
    b, err := NewRedisBroker()
    if err != nil { t.Fatalf("NewRedisBroker: %v", err) }

    ch := b.Subscribe("run-y")
    defer b.Unsubscribe("run-y", ch)
    b.Publish("run-y", SSEEvent{Type: "run.completed", Data: map[string]any{"runId": "run-y"}})

    select {
    case evt := <-ch:
        if evt.Type != "run.completed" { t.Fatalf("got %+v", evt) }
    case <-time.After(2 * time.Second):
        t.Fatal("timeout waiting for event")
    }
}
