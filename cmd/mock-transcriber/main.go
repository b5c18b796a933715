// Command mock-transcriber is a local stand-in for the transcription
// backend. It accepts the service's multipart chunk uploads and returns
// canned transcripts with filler-word analysis, so the full pipeline can be
// exercised without a real speech-to-text provider.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type fillerWords struct {
	Count     int            `json:"count"`
	Detected  []string       `json:"detected"`
	Breakdown map[string]int `json:"breakdown"`
}

type performanceMetrics struct {
	WordCount        int     `json:"word_count"`
	FillerRate       float64 `json:"filler_rate"`
	FinalScore       int     `json:"final_score"`
	PerformanceLevel string  `json:"performance_level"`
}

type transcriptionResponse struct {
	TranscriptChunk string             `json:"transcript_chunk"`
	Confidence      float64            `json:"confidence"`
	Duration        float64            `json:"duration"`
	FillerWords     fillerWords        `json:"filler_words"`
	Performance     performanceMetrics `json:"performance_metrics"`
	Timestamp       string             `json:"timestamp"`
}

// cannedTranscripts rotate per request so consecutive chunks produce
// different merge behavior downstream.
var cannedTranscripts = []string{
	"um so I would start by reproducing the issue locally",
	"and then I would check the logs for any obvious errors",
	"uh I think the main bottleneck was the database queries",
	"we ended up adding an index which reduced latency significantly",
	"like the hardest part was coordinating the migration across teams",
}

var fillerVocabulary = []string{"um", "uh", "er", "ah", "like", "you know"}

var requestCounter atomic.Uint64

func analyzeFillers(text string) fillerWords {
	words := strings.Fields(strings.ToLower(text))
	result := fillerWords{Breakdown: make(map[string]int)}

	for _, word := range words {
		for _, filler := range fillerVocabulary {
			if word == filler {
				result.Count++
				result.Detected = append(result.Detected, filler)
				result.Breakdown[filler]++
			}
		}
	}
	return result
}

func transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	sessionID := r.FormValue("session_id")
	questionNumber := r.FormValue("question_number")
	sequenceIndex := r.FormValue("sequence_index")
	mimeType := r.FormValue("mime_type")
	duration := r.FormValue("duration")
	requestID := r.FormValue("request_id")

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("🎤 CHUNK RECEIVED:")
	log.Printf("    Request ID: %s", requestID)
	log.Printf("    Session ID: %s", sessionID)
	log.Printf("    Question: %s  Sequence: %s", questionNumber, sequenceIndex)
	log.Printf("    Filename: %s (%s, %d bytes)", header.Filename, mimeType, len(audioData))
	log.Printf("    Duration: %s seconds", duration)

	// Simulate processing time
	time.Sleep(200 * time.Millisecond)

	text := cannedTranscripts[requestCounter.Add(1)%uint64(len(cannedTranscripts))]
	fillers := analyzeFillers(text)
	wordCount := len(strings.Fields(text))

	fillerRate := 0.0
	if wordCount > 0 {
		fillerRate = float64(fillers.Count) / float64(wordCount) * 100
	}
	score := 100 - int(fillerRate*2)
	level := "excellent"
	switch {
	case score < 60:
		level = "needs work"
	case score < 85:
		level = "good"
	}

	response := transcriptionResponse{
		TranscriptChunk: text,
		Confidence:      0.92,
		Duration:        parseFloat64(duration),
		FillerWords:     fillers,
		Performance: performanceMetrics{
			WordCount:        wordCount,
			FillerRate:       fillerRate,
			FinalScore:       score,
			PerformanceLevel: level,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)

	log.Printf("✅ TRANSCRIPT SENT: '%s' (%d fillers)", response.TranscriptChunk, fillers.Count)
}

func parseFloat64(s string) float64 {
	var val float64
	fmt.Sscanf(s, "%f", &val)
	return val
}

func main() {
	port := flag.Int("port", 9000, "Port to listen on")
	flag.Parse()

	http.HandleFunc("/transcribe", transcribeHandler)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("🚀 Mock transcription server starting on %s", addr)
	log.Printf("📡 Endpoint: http://localhost%s/transcribe", addr)
	log.Println("💡 Point transcription.endpoint at this URL in configs/config.yaml")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
