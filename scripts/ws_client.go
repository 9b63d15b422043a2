// Package main runs a demo WebSocket client for run events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Start a small optimization run
	body := []byte(`{
		"tenantId": "t_demo",
		"name": "ws-demo",
		"variables": [{"id": "x", "type": "continuous", "min": 0, "max": 10}],
		"objectives": [{"id": "cost", "type": "minimize"}],
		"parameters": {"colonySize": 10, "maxIterations": 200}
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	if run.ID == "" {
		log.Fatal("no run id returned")
	}
	log.Printf("Run ID: %s", run.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/graphql/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	var ack wsMessage
	if err := c.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		log.Fatalf("no ack: %v %+v", err, ack)
	}

	subPayload, _ := json.Marshal(map[string]any{
		"query":     "subscription($runId: ID!) { runEvents(runId: $runId) }",
		"variables": map[string]any{"runId": run.ID},
	})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: subPayload}); err != nil {
		log.Fatal(err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		_ = c.SetReadDeadline(time.Now().Add(10 * time.Second))
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			log.Fatalf("read: %v", err)
		}
		switch msg.Type {
		case "next":
			log.Printf("event: %s", string(msg.Payload))
		case "ping":
			_ = c.WriteJSON(wsMessage{Type: "pong"})
		case "complete":
			log.Println("stream complete")
			return
		}
	}
}
