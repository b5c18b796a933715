// Package session owns the per-interview capture session: the chunk
// scheduler that slices the live stream into bounded segments on a fixed
// interval, and the manager that wires capture, voice activity detection,
// chunk delivery and transcript merging together for each session.
package session
