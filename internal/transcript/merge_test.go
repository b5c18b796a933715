package transcript

import (
	"testing"
	"time"
)

type staticQuestions map[int]string

func (q staticQuestions) QuestionText(number int) string { return q[number] }

func TestFragmentsWithinWindowMerge(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, staticQuestions{1: "Tell me about yourself."}, nil)

	ledger.Apply(Fragment{QuestionNumber: 1, Text: "I started my career", Confidence: 0.8, ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 1, Text: "as a backend engineer", Confidence: 0.9, ArrivedAt: base.Add(3 * time.Second)})

	records := ledger.Records()
	if len(records) != 1 {
		t.Fatalf("Expected 1 merged record, got %d", len(records))
	}

	rec := records[0]
	if rec.Response != "I started my career as a backend engineer" {
		t.Errorf("Unexpected merged response: %q", rec.Response)
	}
	if rec.Confidence != 0.9 {
		t.Errorf("Confidence must be the running max, got %f", rec.Confidence)
	}
	if rec.QuestionText != "Tell me about yourself." {
		t.Errorf("Question text not resolved: %q", rec.QuestionText)
	}
}

func TestFragmentsBeyondWindowStartNewRecord(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	ledger.Apply(Fragment{QuestionNumber: 1, Text: "first part", Confidence: 0.7, ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 1, Text: "late arrival", Confidence: 0.6, ArrivedAt: base.Add(10 * time.Second)})

	records := ledger.Records()
	if len(records) != 2 {
		t.Fatalf("Expected 2 records for a 10s gap with a 7s window, got %d", len(records))
	}
	if records[0].Response != "first part" || records[1].Response != "late arrival" {
		t.Errorf("Unexpected records: %q / %q", records[0].Response, records[1].Response)
	}
}

func TestWindowBoundaryInclusive(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	ledger.Apply(Fragment{QuestionNumber: 2, Text: "a", ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 2, Text: "b", ArrivedAt: base.Add(DefaultMergeWindow)})

	if got := len(ledger.Records()); got != 1 {
		t.Errorf("A gap of exactly the window must still merge, got %d records", got)
	}
}

func TestDifferentQuestionAlwaysAppends(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	ledger.Apply(Fragment{QuestionNumber: 1, Text: "answer one", ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 2, Text: "answer two", ArrivedAt: base.Add(time.Second)})
	// A late fragment for question 1 lands after question 2 opened, so it
	// starts a new record even though its own window has not elapsed.
	ledger.Apply(Fragment{QuestionNumber: 1, Text: "straggler", ArrivedAt: base.Add(2 * time.Second)})

	records := ledger.Records()
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if records[2].QuestionNumber != 1 || records[2].Response != "straggler" {
		t.Errorf("Straggler fragment mishandled: %+v", records[2])
	}
}

// Three speech intervals, with the interviewer advancing to the next
// question after the second: the first two transcripts merge into one
// answer, the third opens a new one.
func TestAnswerSpanningThreeIntervals(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	ledger.Apply(Fragment{QuestionNumber: 1, Text: "my biggest project was", Confidence: 0.8, ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 1, Text: "a billing migration", Confidence: 0.85, ArrivedAt: base.Add(5 * time.Second)})
	ledger.Apply(Fragment{QuestionNumber: 2, Text: "I would add more tests", Confidence: 0.9, ArrivedAt: base.Add(6 * time.Second)})

	records := ledger.Records()
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Response != "my biggest project was a billing migration" {
		t.Errorf("First answer not merged: %q", records[0].Response)
	}
	if records[1].QuestionNumber != 2 {
		t.Errorf("Second record must belong to question 2, got %d", records[1].QuestionNumber)
	}
}

func TestRecordListOrderedByFirstAppearance(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	// Network reordering: question 3's result arrives before question 2's.
	ledger.Apply(Fragment{QuestionNumber: 3, Text: "three", ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 2, Text: "two", ArrivedAt: base.Add(time.Second)})

	records := ledger.Records()
	if records[0].QuestionNumber != 3 || records[1].QuestionNumber != 2 {
		t.Errorf("Records must be ordered by arrival, got %d then %d",
			records[0].QuestionNumber, records[1].QuestionNumber)
	}
}

func TestEmptyFragmentIgnored(t *testing.T) {
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	ledger.Apply(Fragment{QuestionNumber: 1, Text: "   "})
	ledger.Apply(Fragment{QuestionNumber: 1, Text: ""})

	if got := len(ledger.Records()); got != 0 {
		t.Errorf("Blank fragments must not create records, got %d", got)
	}

	stats := ledger.GetStats()
	if stats.FragmentsIgnored != 2 || stats.FragmentsApplied != 0 {
		t.Errorf("Expected 2 ignored / 0 applied, got %d / %d",
			stats.FragmentsIgnored, stats.FragmentsApplied)
	}
}

func TestDurationTakenFromSpeakingClock(t *testing.T) {
	clock := NewSpeakingClock()
	clock.AddInterval(1, 4*time.Second)
	clock.AddInterval(1, 2*time.Second)
	clock.AddInterval(2, 3*time.Second)

	ledger := NewLedger(DefaultMergeWindow, nil, clock)
	ledger.Apply(Fragment{QuestionNumber: 1, Text: "answer", ArrivedAt: time.Now()})

	rec := ledger.Records()[0]
	if rec.DurationSeconds != 6 {
		t.Errorf("Expected 6s duration from the speaking clock, got %f", rec.DurationSeconds)
	}
}

func TestSessionTotalsAccumulateAcrossRecords(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(DefaultMergeWindow, nil, nil)

	ledger.Apply(Fragment{QuestionNumber: 1, Text: "um I worked on like three services", ArrivedAt: base})
	ledger.Apply(Fragment{QuestionNumber: 2, Text: "uh mostly payment systems", ArrivedAt: base.Add(time.Second)})

	if got := ledger.TotalWords(); got != 11 {
		t.Errorf("Expected 11 total words, got %d", got)
	}
	if got := ledger.TotalFillers(); got != 3 {
		t.Errorf("Expected 3 fillers (um, like, uh), got %d", got)
	}

	stats := ledger.GetStats()
	if stats.FillerBreakdown.Um != 1 || stats.FillerBreakdown.Uh != 1 || stats.FillerBreakdown.Like != 1 {
		t.Errorf("Unexpected breakdown: %+v", stats.FillerBreakdown)
	}
}
