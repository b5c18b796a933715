package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client uploads audio chunks to the transcription backend. Delivery is
// at-most-once: there is no retry loop, and a failed upload only costs that
// chunk's fragment, never the recording pipeline.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // bounds concurrent uploads

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxConcurrent int
}

// Request describes one chunk upload.
type Request struct {
	SessionID      string
	QuestionNumber int
	SequenceIndex  uint64
	MimeType       string
	Audio          []byte
	Duration       float64 // seconds, 0 when unknown
}

// Result is the backend's analysis of one chunk. Every field is optional
// on the wire; absent fields decode to zero values.
type Result struct {
	Text        string       `json:"transcript_chunk"`
	Confidence  float64      `json:"confidence"`
	Duration    float64      `json:"duration"`
	FillerWords FillerResult `json:"filler_words"`
	Performance Performance  `json:"performance_metrics"`
	Timestamp   string       `json:"timestamp"`
}

// FillerResult is the backend's filler-word analysis for one chunk.
type FillerResult struct {
	Count     int            `json:"count"`
	Detected  []string       `json:"detected"`
	Breakdown map[string]int `json:"breakdown"`
}

// Performance holds the backend's derived per-chunk metrics.
type Performance struct {
	WordCount        int     `json:"word_count"`
	FillerRate       float64 `json:"filler_rate"`
	FinalScore       int     `json:"final_score"`
	PerformanceLevel string  `json:"performance_level"`
}

// ClientStats represents client statistics.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a transcription client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe uploads one chunk and returns the backend's analysis. Any
// failure (transport, status, parse) is returned as an error; the caller
// drops the fragment and continues.
func (c *Client) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotal()

	result, err := c.doRequest(ctx, req)
	if err != nil {
		c.incrementFailed()
		return nil, err
	}

	c.incrementSuccess()
	c.updateAvgResponseTime(time.Since(startTime))
	return result, nil
}

// doRequest performs a single multipart upload.
func (c *Client) doRequest(ctx context.Context, req *Request) (*Result, error) {
	body, contentType, err := c.buildMultipartBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return &result, nil
}

// buildMultipartBody assembles the multipart/form-data payload: the audio
// clip plus chunk metadata fields.
func (c *Client) buildMultipartBody(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if len(req.Audio) > 0 {
		ext := "bin"
		if req.MimeType == "audio/wav" {
			ext = "wav"
		} else if req.MimeType != "" {
			ext = "webm"
		}
		filename := fmt.Sprintf("chunk_%s_%d.%s", req.SessionID, req.SequenceIndex, ext)
		fileWriter, err := writer.CreateFormFile("audio_file", filename)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := fileWriter.Write(req.Audio); err != nil {
			return nil, "", fmt.Errorf("failed to write audio data: %w", err)
		}
	}

	fields := map[string]string{
		"session_id":      req.SessionID,
		"question_number": strconv.Itoa(req.QuestionNumber),
		"sequence_index":  strconv.FormatUint(req.SequenceIndex, 10),
		"mime_type":       req.MimeType,
		"duration":        fmt.Sprintf("%.3f", req.Duration),
		"request_id":      uuid.NewString(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// Statistics methods
func (c *Client) incrementTotal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetTimeout returns the configured per-upload timeout.
func (c *Client) GetTimeout() time.Duration {
	return c.config.Timeout
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
	}
}

// Close waits for all in-flight uploads to finish.
func (c *Client) Close() error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}
	return nil
}
