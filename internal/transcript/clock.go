package transcript

import (
	"sync"
	"time"
)

// SpeakingClock accrues elapsed speaking time reported by the voice
// activity detector, both session-wide and per question. Intervals are
// folded in immediately and never stored individually.
type SpeakingClock struct {
	total       time.Duration
	perQuestion map[int]time.Duration

	mu sync.RWMutex
}

// NewSpeakingClock creates an empty speaking clock.
func NewSpeakingClock() *SpeakingClock {
	return &SpeakingClock{perQuestion: make(map[int]time.Duration)}
}

// AddInterval folds one closed speech interval into the totals for the
// question that was current when the interval closed.
func (c *SpeakingClock) AddInterval(questionNumber int, d time.Duration) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += d
	c.perQuestion[questionNumber] += d
}

// TotalSeconds returns the session-wide speaking time in seconds.
func (c *SpeakingClock) TotalSeconds() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total.Seconds()
}

// QuestionSeconds returns the speaking time accrued for one question.
func (c *SpeakingClock) QuestionSeconds(questionNumber int) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perQuestion[questionNumber].Seconds()
}

// PerQuestionSeconds returns a snapshot of all per-question totals.
func (c *SpeakingClock) PerQuestionSeconds() map[int]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int]float64, len(c.perQuestion))
	for q, d := range c.perQuestion {
		out[q] = d.Seconds()
	}
	return out
}
