package session

import (
	"sync"
	"time"
)

// Session is the identity and question state of one interview capture
// session. The session ID is issued externally; the question number only
// ever moves forward.
type Session struct {
	ID        string
	StartTime time.Time

	questionNumber int
	questionTexts  map[int]string
	active         bool

	mu sync.RWMutex
}

// NewSession creates an active session starting at question 1.
func NewSession(id string) *Session {
	return &Session{
		ID:             id,
		StartTime:      time.Now(),
		questionNumber: 1,
		questionTexts:  make(map[int]string),
		active:         true,
	}
}

// SetQuestion advances the current question. Numbers lower than the current
// one are ignored, keeping the question number monotonically non-decreasing.
func (s *Session) SetQuestion(number int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if number < s.questionNumber {
		return
	}
	s.questionNumber = number
	if text != "" {
		s.questionTexts[number] = text
	}
}

// CurrentQuestion returns the question number active right now. Chunks are
// tagged with this value at flush time, so a chunk straddling a question
// boundary carries whichever question was current when it was finalized.
func (s *Session) CurrentQuestion() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionNumber
}

// QuestionText returns the recorded text for a question number, if any.
// Implements transcript.QuestionSource.
func (s *Session) QuestionText(number int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionTexts[number]
}

// Active reports whether the session is still capturing.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Deactivate marks the session ended. Idempotent.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}
