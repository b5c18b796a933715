// Package capture provides the capture-format negotiator, the chunk
// encoder abstraction the scheduler drives, the raw-PCM fallback encoder,
// and the live frame pipe a capture session reads from.
package capture
