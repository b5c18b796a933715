package capture

// Support answers whether the capturing platform can encode a given
// container/codec identifier. Implementations must be pure queries.
type Support interface {
	IsSupported(format string) bool
}

// StaticSupport is a fixed support list, typically reported by the client
// during the ingest handshake.
type StaticSupport []string

// IsSupported reports whether the format appears in the list.
func (s StaticSupport) IsSupported(format string) bool {
	for _, f := range s {
		if f == format {
			return true
		}
	}
	return false
}

// DefaultPreferences is the ordered list of chunked-encoder formats tried
// during negotiation, most preferred first.
func DefaultPreferences() []string {
	return []string{
		"audio/webm;codecs=opus",
		"audio/webm",
		"audio/mp4",
		"audio/ogg;codecs=opus",
	}
}

// Negotiate returns the first preference the platform supports, or the
// empty string when none match. Absence of support is an expected outcome,
// not an error: the caller then uses the raw-PCM fallback unconditionally.
func Negotiate(support Support, preferences []string) string {
	if support == nil {
		return ""
	}
	for _, format := range preferences {
		if support.IsSupported(format) {
			return format
		}
	}
	return ""
}
