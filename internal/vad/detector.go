package vad

import (
	"fmt"
	"sync"
	"time"
)

// Default hysteresis parameters. The stop side is four times slower than the
// start side so brief dips in level do not truncate an answer mid-sentence.
const (
	DefaultThreshold   = 12.0 // mean magnitude on a 0-255 scale
	DefaultStartFrames = 3
	DefaultStopFrames  = 12
)

// Config contains detector tuning parameters.
type Config struct {
	Threshold   float64
	StartFrames int
	StopFrames  int
}

// DefaultConfig returns the standard asymmetric hysteresis configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		StartFrames: DefaultStartFrames,
		StopFrames:  DefaultStopFrames,
	}
}

// Validate checks the detector configuration.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 255 {
		return fmt.Errorf("threshold must be between 0 and 255, got %f", c.Threshold)
	}
	if c.StartFrames < 1 {
		return fmt.Errorf("start_frames must be at least 1, got %d", c.StartFrames)
	}
	if c.StopFrames < 1 {
		return fmt.Errorf("stop_frames must be at least 1, got %d", c.StopFrames)
	}
	return nil
}

// Event is the outcome of feeding one sample to the detector.
type Event int

const (
	// EventNone - no state transition occurred.
	EventNone Event = iota
	// EventStart - a speech interval opened at this sample.
	EventStart
	// EventStop - a speech interval closed; its duration accompanies the event.
	EventStop
)

// Detector implements speech/non-speech classification with asymmetric
// hysteresis. A start transition fires only after the level exceeds the
// threshold for StartFrames consecutive samples; a stop transition fires
// only after it stays at or below the threshold for StopFrames consecutive
// samples.
type Detector struct {
	cfg        Config
	speaking   bool
	aboveCount int
	belowCount int
	speakStart time.Time

	// Statistics
	totalSamples uint64
	starts       uint64
	stops        uint64

	mu sync.Mutex
}

// Stats represents detector statistics.
type Stats struct {
	Speaking     bool   `json:"speaking"`
	TotalSamples uint64 `json:"total_samples"`
	Starts       uint64 `json:"starts"`
	Stops        uint64 `json:"stops"`
}

// NewDetector creates a detector in the non-speaking state.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Sample feeds one signal level (0-255 scale) observed at now. It returns
// EventStart when a speech interval opens, or EventStop with the interval's
// duration when one closes.
func (d *Detector) Sample(level float64, now time.Time) (Event, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.totalSamples++

	if level > d.cfg.Threshold {
		d.aboveCount++
		d.belowCount = 0

		if !d.speaking && d.aboveCount >= d.cfg.StartFrames {
			d.speaking = true
			d.speakStart = now
			d.starts++
			return EventStart, 0
		}
		return EventNone, 0
	}

	d.belowCount++
	d.aboveCount = 0

	if d.speaking && d.belowCount >= d.cfg.StopFrames {
		d.speaking = false
		d.stops++
		interval := now.Sub(d.speakStart)
		if interval < 0 {
			interval = 0
		}
		return EventStop, interval
	}
	return EventNone, 0
}

// Speaking reports whether a speech interval is currently open.
func (d *Detector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Status returns the display string for the UI status sink.
func (d *Detector) Status() string {
	if d.Speaking() {
		return "speech detected"
	}
	return "listening"
}

// Reset returns the detector to the non-speaking state. Any open interval
// is discarded, not flushed.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.speaking = false
	d.aboveCount = 0
	d.belowCount = 0
	d.speakStart = time.Time{}
}

// GetStats returns a snapshot of detector statistics.
func (d *Detector) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Speaking:     d.speaking,
		TotalSamples: d.totalSamples,
		Starts:       d.starts,
		Stops:        d.stops,
	}
}

// Level computes the mean absolute magnitude of a PCM frame scaled to the
// 0-255 range the detector threshold is defined on.
func Level(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, s := range frame {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(len(frame)) * 255
}
