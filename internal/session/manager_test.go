package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Akashpatel2609/PrepWise/internal/capture"
	"github.com/Akashpatel2609/PrepWise/internal/transcription"
	"github.com/Akashpatel2609/PrepWise/internal/vad"
)

func newTestBackend(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestManager(t *testing.T, endpoint string, chunkInterval time.Duration) *Manager {
	t.Helper()
	mgr, err := NewManager(testLogger(), ManagerConfig{
		VADConfig:           vad.DefaultConfig(),
		TranscriptionConfig: transcription.Config{Endpoint: endpoint, Timeout: 5 * time.Second},
		ChunkInterval:       chunkInterval,
		MergeWindow:         time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

func TestCreateSessionFallsBackToWAV(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr := newTestManager(t, backend.URL, time.Hour)

	// No server-side encoder is registered, so even a client that supports
	// every preferred format ends up on the raw-PCM WAV fallback.
	rt, err := mgr.CreateSession("sess-1", 48000, capture.DefaultPreferences())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if rt.Format != capture.MimeTypeWAV {
		t.Errorf("Expected WAV fallback, got %q", rt.Format)
	}
	if rt.Pipe.SampleRate() != 48000 {
		t.Errorf("Pipe must run at the client's native rate, got %d", rt.Pipe.SampleRate())
	}
	if q := rt.Session.CurrentQuestion(); q != 1 {
		t.Errorf("New session must start at question 1, got %d", q)
	}
}

func TestCreateSessionUsesRegisteredEncoder(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr := newTestManager(t, backend.URL, time.Hour)

	mgr.Registry().Register("audio/webm;codecs=opus", &fakeFactory{})

	rt, err := mgr.CreateSession("sess-1", 48000, []string{"audio/webm;codecs=opus", "audio/webm"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if rt.Format != "audio/webm;codecs=opus" {
		t.Errorf("Expected negotiated format, got %q", rt.Format)
	}
}

func TestCreateSessionRejectsDuplicate(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr := newTestManager(t, backend.URL, time.Hour)

	if _, err := mgr.CreateSession("sess-1", 44100, nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := mgr.CreateSession("sess-1", 44100, nil); err == nil {
		t.Error("Duplicate session ID must be rejected")
	}
	if n := mgr.GetActiveSessionCount(); n != 1 {
		t.Errorf("Expected 1 active session, got %d", n)
	}
}

func TestManagerEndToEnd(t *testing.T) {
	backend := newTestBackend(t,
		`{"transcript_chunk":"um I would start by profiling the service","confidence":0.9,"duration":1.0}`)
	mgr := newTestManager(t, backend.URL, 50*time.Millisecond)

	rt, err := mgr.CreateSession("sess-e2e", 16000, nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// One second of audible audio: enough for the capture guards on every
	// 50 ms slicing interval that sees it.
	frame := make([]float32, 16000)
	for i := range frame {
		frame[i] = 0.2
	}
	if err := rt.Ingest(frame); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	waitFor(t, "first transcript record", func() bool {
		return rt.Ledger.GetStats().Records >= 1
	})

	records := rt.Ledger.Records()
	if records[0].QuestionNumber != 1 {
		t.Errorf("First record must belong to question 1, got %d", records[0].QuestionNumber)
	}
	if records[0].Response == "" {
		t.Error("Record response must carry the backend transcript")
	}
	if records[0].Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", records[0].Confidence)
	}

	// Filler counting happens server-side on the merged text.
	if fillers := rt.Ledger.TotalFillers(); fillers < 1 {
		t.Errorf("Expected at least 1 filler word counted, got %d", fillers)
	}

	rt.SetQuestion(2, "Describe a production incident")
	if err := rt.Ingest(frame); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	waitFor(t, "second transcript record", func() bool {
		recs := rt.Ledger.Records()
		return len(recs) >= 2 && recs[len(recs)-1].QuestionNumber == 2
	})

	summary, ok := mgr.EndSession("sess-e2e")
	if !ok {
		t.Fatal("EndSession must find the session")
	}
	if summary.SessionID != "sess-e2e" {
		t.Errorf("Unexpected summary session ID %q", summary.SessionID)
	}
	if len(summary.Records) < 2 {
		t.Errorf("Expected at least 2 records in summary, got %d", len(summary.Records))
	}
	if summary.TotalWords == 0 {
		t.Error("Summary must carry the session word count")
	}
	if summary.ChunksEmitted == 0 {
		t.Error("Summary must report emitted chunks")
	}

	if _, ok := mgr.EndSession("sess-e2e"); ok {
		t.Error("Second EndSession must report the session gone")
	}
	if n := mgr.GetActiveSessionCount(); n != 0 {
		t.Errorf("Expected 0 active sessions, got %d", n)
	}
}

func TestRuntimeSpeechDetection(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr := newTestManager(t, backend.URL, time.Hour)

	rt, err := mgr.CreateSession("sess-vad", 16000, nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	loud := make([]float32, 160)
	for i := range loud {
		loud[i] = 0.2 // level 51 on the 0-255 scale
	}
	quiet := make([]float32, 160)

	for i := 0; i < vad.DefaultStartFrames; i++ {
		rt.Ingest(loud)
	}
	waitFor(t, "speech start", func() bool {
		return rt.Detector.GetStats().Starts == 1
	})
	if status := rt.Status(); status.Listening != "speech detected" {
		t.Errorf("Expected speech detected status, got %q", status.Listening)
	}

	for i := 0; i < vad.DefaultStopFrames; i++ {
		rt.Ingest(quiet)
	}
	waitFor(t, "speech stop", func() bool {
		return rt.Detector.GetStats().Stops == 1
	})
	if status := rt.Status(); status.Listening != "listening" {
		t.Errorf("Expected listening status, got %q", status.Listening)
	}
}

func TestRuntimeInfoSnapshot(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr := newTestManager(t, backend.URL, time.Hour)

	rt, err := mgr.CreateSession("sess-info", 44100, nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	rt.SetQuestion(3, "What would you improve?")

	info := rt.GetInfo()
	if info.SessionID != "sess-info" || !info.Active {
		t.Errorf("Unexpected info: %+v", info)
	}
	if info.CurrentQuestion != 3 {
		t.Errorf("Expected question 3, got %d", info.CurrentQuestion)
	}
	if info.Format != capture.MimeTypeWAV {
		t.Errorf("Expected WAV format, got %q", info.Format)
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr, err := NewManager(testLogger(), ManagerConfig{
		VADConfig:           vad.DefaultConfig(),
		TranscriptionConfig: transcription.Config{Endpoint: backend.URL},
		ChunkInterval:       time.Hour,
		SessionTimeout:      time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer mgr.Stop()

	if _, err := mgr.CreateSession("sess-idle", 16000, nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	time.Sleep(time.Millisecond)
	mgr.cleanupExpiredSessions()

	if n := mgr.GetActiveSessionCount(); n != 0 {
		t.Errorf("Expected idle session to be cleaned up, got %d active", n)
	}
}

func TestManagerStopEndsSessions(t *testing.T) {
	backend := newTestBackend(t, `{}`)
	mgr, err := NewManager(testLogger(), ManagerConfig{
		VADConfig:           vad.DefaultConfig(),
		TranscriptionConfig: transcription.Config{Endpoint: backend.URL},
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	mgr.CreateSession("sess-a", 16000, nil)
	mgr.CreateSession("sess-b", 16000, nil)

	mgr.Stop()

	if n := mgr.GetActiveSessionCount(); n != 0 {
		t.Errorf("Expected 0 sessions after Stop, got %d", n)
	}
}
