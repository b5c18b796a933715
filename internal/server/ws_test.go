package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Akashpatel2609/PrepWise/internal/protocol"
	"github.com/Akashpatel2609/PrepWise/internal/session"
	"github.com/Akashpatel2609/PrepWise/internal/transcription"
	"github.com/Akashpatel2609/PrepWise/internal/vad"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStack(t *testing.T) (*session.Manager, *websocket.Conn) {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transcript_chunk":"hello from the interview","confidence":0.8}`))
	}))
	t.Cleanup(backend.Close)

	mgr, err := session.NewManager(testLogger(), session.ManagerConfig{
		VADConfig:           vad.DefaultConfig(),
		TranscriptionConfig: transcription.Config{Endpoint: backend.URL, Timeout: 5 * time.Second},
		ChunkInterval:       50 * time.Millisecond,
		MergeWindow:         time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	ws := NewWSServer(WSServerConfig{
		Port:           0,
		BindAddress:    "127.0.0.1",
		ReadBufferSize: 4096,
		MaxSessions:    4,
	}, testLogger(), mgr, nil)

	srv := httptest.NewServer(ws.server.Handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return mgr, conn
}

// readUntil reads JSON messages, skipping periodic status pushes, until one
// of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]json.RawMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed while waiting for %q: %v", msgType, err)
		}

		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Non-JSON message from server: %s", data)
		}

		var got string
		json.Unmarshal(msg["type"], &got)
		if got == msgType {
			return msg
		}
		if got != protocol.StatusType {
			t.Fatalf("Unexpected message type %q while waiting for %q", got, msgType)
		}
	}
}

func sendControl(t *testing.T, conn *websocket.Conn, msg protocol.ControlMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func TestWSInterviewFlow(t *testing.T) {
	mgr, conn := newTestStack(t)

	sendControl(t, conn, protocol.ControlMessage{
		Type:       protocol.MessageStart,
		SessionID:  "ws-flow",
		SampleRate: 16000,
	})

	ready := readUntil(t, conn, protocol.ReadyType)
	var format string
	json.Unmarshal(ready["format"], &format)
	if format != "audio/wav" {
		t.Errorf("Expected WAV fallback format, got %q", format)
	}

	// One second of audible audio.
	frame := make([]float32, 16000)
	for i := range frame {
		frame[i] = 0.2
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeFrame(frame)); err != nil {
		t.Fatalf("Binary write failed: %v", err)
	}

	sendControl(t, conn, protocol.ControlMessage{
		Type:           protocol.MessageQuestion,
		QuestionNumber: 2,
		QuestionText:   "What is your greatest strength?",
	})

	// Wait for the pipeline to emit and transcribe at least one chunk
	// before stopping, so the summary carries a record.
	rt, ok := mgr.GetSession("ws-flow")
	if !ok {
		t.Fatal("Session not found in manager")
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && rt.Ledger.GetStats().Records == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if rt.Ledger.GetStats().Records == 0 {
		t.Fatal("No transcript records produced before stop")
	}

	sendControl(t, conn, protocol.ControlMessage{Type: protocol.MessageStop})

	msg := readUntil(t, conn, protocol.SummaryType)
	var summary session.Summary
	if err := json.Unmarshal(msg["summary"], &summary); err != nil {
		t.Fatalf("Summary did not parse: %v", err)
	}
	if summary.SessionID != "ws-flow" {
		t.Errorf("Unexpected summary session ID %q", summary.SessionID)
	}
	if len(summary.Records) == 0 {
		t.Error("Summary must carry transcript records")
	}
	if summary.ChunksEmitted == 0 {
		t.Error("Summary must report emitted chunks")
	}

	if n := mgr.GetActiveSessionCount(); n != 0 {
		t.Errorf("Expected 0 active sessions after stop, got %d", n)
	}
}

func TestWSPermissionDenied(t *testing.T) {
	mgr, conn := newTestStack(t)

	sendControl(t, conn, protocol.ControlMessage{
		Type:             protocol.MessageStart,
		SessionID:        "ws-denied",
		SampleRate:       44100,
		PermissionDenied: true,
	})

	msg := readUntil(t, conn, protocol.ErrorType)
	var errText string
	json.Unmarshal(msg["error"], &errText)
	if !strings.Contains(errText, "permission denied") {
		t.Errorf("Expected permission denied error, got %q", errText)
	}

	if n := mgr.GetActiveSessionCount(); n != 0 {
		t.Errorf("No session may be created on permission denial, got %d", n)
	}
}

func TestWSInvalidControl(t *testing.T) {
	_, conn := newTestStack(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"launch"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	msg := readUntil(t, conn, protocol.ErrorType)
	var errText string
	json.Unmarshal(msg["error"], &errText)
	if errText == "" {
		t.Error("Expected error text for unknown control type")
	}
}

func TestWSDisconnectEndsSession(t *testing.T) {
	mgr, conn := newTestStack(t)

	sendControl(t, conn, protocol.ControlMessage{
		Type:       protocol.MessageStart,
		SessionID:  "ws-drop",
		SampleRate: 16000,
	})
	readUntil(t, conn, protocol.ReadyType)

	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && mgr.GetActiveSessionCount() != 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if n := mgr.GetActiveSessionCount(); n != 0 {
		t.Errorf("Expected session ended on disconnect, got %d active", n)
	}
}
