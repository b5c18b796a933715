// Package server implements the service's two listeners: the WebSocket
// ingest server that carries control messages and raw audio frames from
// interview clients, and the HTTP API server for monitoring.
package server
