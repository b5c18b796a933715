// Package transcript folds asynchronously arriving transcription fragments
// into per-question records, and accumulates session-wide speaking-time and
// filler-word totals.
package transcript
