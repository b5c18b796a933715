// Package protocol defines the WebSocket ingest wire format: JSON control
// messages for session lifecycle and question changes, and binary frames of
// little-endian float32 PCM samples.
package protocol
