// Package vad classifies a live audio signal as speech or non-speech using
// short-term energy with asymmetric hysteresis, and reports the elapsed
// speaking intervals. It runs independently of chunk boundaries and never
// performs I/O.
package vad
