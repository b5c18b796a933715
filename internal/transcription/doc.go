// Package transcription is the HTTP client for the external speech
// analysis backend. It uploads encoded audio chunks and parses the
// recognized text and derived metrics, tolerating partial or absent fields.
package transcription
