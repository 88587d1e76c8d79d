package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"louvor/internal/engine"
	"louvor/internal/schema"

	"github.com/coder/websocket"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func startTestServer(t *testing.T, snapshot SnapshotFunc) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:     0, // random available port
		Snapshot: snapshot,
		Logger:   testLogger(),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("Failed to stop server: %v", err)
		}
	})

	time.Sleep(50 * time.Millisecond)
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	})
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := startTestServer(t, nil)
	if server.Addr() == "" {
		t.Fatal("Server address is empty")
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	doc := schema.Seed()
	server := startTestServer(t, func() (engine.Status, *schema.Document) {
		return engine.StatusSynced, doc
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected first frame %s, got %s", MessageTypeStatus, msg.Type)
	}
	var statusData StatusData
	if err := json.Unmarshal(msg.Data, &statusData); err != nil {
		t.Fatalf("Failed to unmarshal status data: %v", err)
	}
	if statusData.Status != engine.StatusSynced {
		t.Errorf("Expected status %s, got %s", engine.StatusSynced, statusData.Status)
	}

	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeDocument {
		t.Fatalf("Expected second frame %s, got %s", MessageTypeDocument, msg.Type)
	}
	var docData DocumentData
	if err := json.Unmarshal(msg.Data, &docData); err != nil {
		t.Fatalf("Failed to unmarshal document data: %v", err)
	}
	if !schema.Equal(doc, schema.Sanitize(docData.Document)) {
		t.Error("Snapshot document differs from supplied document")
	}
}

func TestBroadcastReachesAllViewers(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	conns := make([]*websocket.Conn, numClients)
	for i := 0; i < numClients; i++ {
		conns[i] = dial(t, ctx, server)
	}

	if count := server.ViewerCount(); count != numClients {
		t.Errorf("Expected %d viewers, got %d", numClients, count)
	}

	entry := schema.AuditEntry{
		ID:        schema.NewID(),
		User:      "Mayke",
		Action:    "added minister Ana",
		Timestamp: "30/08/2026 10:00",
	}
	server.EntryLogged(entry)

	for i, conn := range conns {
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeLogEntry {
			t.Fatalf("Client %d: expected %s, got %s", i, MessageTypeLogEntry, msg.Type)
		}
		var entryData LogEntryData
		if err := json.Unmarshal(msg.Data, &entryData); err != nil {
			t.Fatalf("Client %d: failed to unmarshal entry: %v", i, err)
		}
		if entryData.Entry.Action != entry.Action {
			t.Errorf("Client %d: expected action %q, got %q", i, entry.Action, entryData.Entry.Action)
		}
	}
}

func TestNotifierFrames(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)

	server.StatusChanged(engine.StatusSyncing)
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("Expected %s, got %s", MessageTypeStatus, msg.Type)
	}

	server.DocumentUpdated(schema.Seed())
	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypeDocument {
		t.Fatalf("Expected %s, got %s", MessageTypeDocument, msg.Type)
	}
	var docData DocumentData
	if err := json.Unmarshal(msg.Data, &docData); err != nil {
		t.Fatalf("Failed to unmarshal document data: %v", err)
	}
	if docData.Document == nil || len(docData.Document.Published.Ministers) == 0 {
		t.Error("Document frame is missing the published roster")
	}
}

func TestDisconnectPrunesViewer(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	if count := server.ViewerCount(); count != 1 {
		t.Fatalf("Expected 1 viewer, got %d", count)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for server.ViewerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Viewer not pruned, count=%d", server.ViewerCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t, nil)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Viewers int    `json:"viewers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Expected status ok, got %q", body.Status)
	}
}
