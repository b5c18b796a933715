package transcript

import (
	"strings"
	"sync"
	"time"
)

// DefaultMergeWindow is the span within which two fragments for the same
// question are combined into one record.
const DefaultMergeWindow = 7 * time.Second

// Fragment is one unit of recognized text returned asynchronously by the
// transcription backend for a previously delivered chunk.
type Fragment struct {
	QuestionNumber int       `json:"question_number"`
	Text           string    `json:"text"`
	Confidence     float64   `json:"confidence"`
	ArrivedAt      time.Time `json:"arrived_at"`
}

// Record is the accumulated transcript for one answered question. Records
// are append-only for the session's lifetime and ordered by first creation,
// not by question number.
type Record struct {
	QuestionNumber  int       `json:"question_number"`
	QuestionText    string    `json:"question_text"`
	Response        string    `json:"response"`
	Confidence      float64   `json:"confidence"` // running max across merged fragments
	DurationSeconds float64   `json:"duration_seconds"`
	LastUpdated     time.Time `json:"last_updated"`
}

// QuestionSource supplies the text of the question a fragment belongs to.
// The pipeline only reads from it.
type QuestionSource interface {
	QuestionText(number int) string
}

// Ledger merges fragments into records. Fragments for the most recently
// created record's question merge into it while its last update is within
// the merge window; anything else appends a new record. Late fragments for
// an already-closed question start a new record rather than being dropped or
// force-merged.
type Ledger struct {
	window    time.Duration
	questions QuestionSource
	clock     *SpeakingClock
	records   []*Record

	// Session-wide totals, independent of record merging.
	totalWords   int
	totalFillers int
	fillers      FillerBreakdown

	fragmentsApplied uint64
	fragmentsIgnored uint64

	now func() time.Time

	mu sync.RWMutex
}

// LedgerStats reports merge activity for monitoring.
type LedgerStats struct {
	Records          int             `json:"records"`
	FragmentsApplied uint64          `json:"fragments_applied"`
	FragmentsIgnored uint64          `json:"fragments_ignored"`
	TotalWords       int             `json:"total_words"`
	TotalFillers     int             `json:"total_fillers"`
	FillerBreakdown  FillerBreakdown `json:"filler_breakdown"`
}

// NewLedger creates a ledger with the given merge window. The questions
// source and speaking clock may be nil, in which case question text and
// durations are left empty.
func NewLedger(window time.Duration, questions QuestionSource, clock *SpeakingClock) *Ledger {
	if window <= 0 {
		window = DefaultMergeWindow
	}
	return &Ledger{
		window:    window,
		questions: questions,
		clock:     clock,
		now:       time.Now,
	}
}

// Apply folds one fragment into the ledger. Fragments whose text is empty
// after trimming are counted as ignored and change nothing.
func (l *Ledger) Apply(f Fragment) {
	text := strings.TrimSpace(f.Text)

	l.mu.Lock()
	defer l.mu.Unlock()

	if text == "" {
		l.fragmentsIgnored++
		return
	}

	now := f.ArrivedAt
	if now.IsZero() {
		now = l.now()
	}

	l.fragmentsApplied++

	// Word and filler totals accumulate per fragment regardless of how the
	// fragment lands in the record list.
	words, count, breakdown := CountFillers(text)
	l.totalWords += words
	l.totalFillers += count
	l.fillers.Add(breakdown)

	var duration float64
	if l.clock != nil {
		duration = l.clock.QuestionSeconds(f.QuestionNumber)
	}

	if last := l.lastRecord(); last != nil &&
		last.QuestionNumber == f.QuestionNumber &&
		now.Sub(last.LastUpdated) <= l.window {
		last.Response = last.Response + " " + text
		if f.Confidence > last.Confidence {
			last.Confidence = f.Confidence
		}
		last.DurationSeconds = duration
		last.LastUpdated = now
		return
	}

	rec := &Record{
		QuestionNumber:  f.QuestionNumber,
		Response:        text,
		Confidence:      f.Confidence,
		DurationSeconds: duration,
		LastUpdated:     now,
	}
	if l.questions != nil {
		rec.QuestionText = l.questions.QuestionText(f.QuestionNumber)
	}
	l.records = append(l.records, rec)
}

// lastRecord returns the most recently created record. Caller holds the lock.
func (l *Ledger) lastRecord() *Record {
	if len(l.records) == 0 {
		return nil
	}
	return l.records[len(l.records)-1]
}

// Records returns a snapshot of the record list in first-creation order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	for i, r := range l.records {
		out[i] = *r
	}
	return out
}

// TotalWords returns the session-wide word count across all fragments.
func (l *Ledger) TotalWords() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalWords
}

// TotalFillers returns the session-wide filler-word count.
func (l *Ledger) TotalFillers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalFillers
}

// GetStats returns a snapshot of merge activity.
func (l *Ledger) GetStats() LedgerStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LedgerStats{
		Records:          len(l.records),
		FragmentsApplied: l.fragmentsApplied,
		FragmentsIgnored: l.fragmentsIgnored,
		TotalWords:       l.totalWords,
		TotalFillers:     l.totalFillers,
		FillerBreakdown:  l.fillers,
	}
}

// SetNowFunc overrides the ledger's clock. Used by tests to exercise the
// merge window deterministically.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
