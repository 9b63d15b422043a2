package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    runID := "run-1"
    ch := b.Subscribe(runID)

    evt := SSEEvent{Type: "run.progress", Data: map[string]any{"iteration": 3}}
    b.Publish(runID, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["iteration"].(int) != 3 { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(runID, ch)
    select {
    case _, ok := <-ch:
        if ok { t.Fatal("channel should be closed after unsubscribe") }
    case <-time.After(50 * time.Millisecond):
        // acceptable if already drained and closed
    }
}

func TestBrokerFanoutIsolatedByRun(t *testing.T) {
    b := NewBroker()
    chA1 := b.Subscribe("run-a")
    chA2 := b.Subscribe("run-a")
    chB := b.Subscribe("run-b")
    defer b.Unsubscribe("run-a", chA1)
    defer b.Unsubscribe("run-a", chA2)
    defer b.Unsubscribe("run-b", chB)

    b.Publish("run-a", SSEEvent{Type: "run.completed", Data: map[string]any{"runId": "run-a"}})

    for i, ch := range []chan SSEEvent{chA1, chA2} {
        select {
        case got := <-ch:
            if got.Type != "run.completed" { t.Fatalf("sub %d: type %s", i, got.Type) }
        case <-time.After(200 * time.Millisecond):
            t.Fatalf("sub %d: timeout", i)
        }
    }
    select {
    case got := <-chB:
        t.Fatalf("run-b should not receive run-a events, got %+v", got)
    case <-time.After(20 * time.Millisecond):
    }
}

func TestBrokerPublishDoesNotBlockSlowSubscriber(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("run-slow")
    defer b.Unsubscribe("run-slow", ch)

    // fill the buffer and keep publishing; Publish must drop, not block
    done := make(chan struct{})
    go func() {
        for i := 0; i < 64; i++ {
            b.Publish("run-slow", SSEEvent{Type: "run.progress", Data: map[string]any{"iteration": i}})
        }
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("publish blocked on a slow subscriber")
    }
}
