package transcript

import "strings"

// fillerVocabulary is the fixed, case-insensitive set of fillers counted in
// every fragment. Multi-word entries match as phrases.
var fillerVocabulary = []string{
	"um", "uh", "er", "ah", "like",
	"you know", "i mean", "sort of", "kind of", "i think",
	"maybe", "well", "so",
}

// FillerBreakdown buckets filler occurrences the way the session summary
// reports them: the three headline fillers individually, the rest combined.
type FillerBreakdown struct {
	Um    int `json:"um"`
	Uh    int `json:"uh"`
	Like  int `json:"like"`
	Other int `json:"other"`
}

// Add accumulates another breakdown into this one.
func (b *FillerBreakdown) Add(other FillerBreakdown) {
	b.Um += other.Um
	b.Uh += other.Uh
	b.Like += other.Like
	b.Other += other.Other
}

// Total returns the sum across all buckets.
func (b FillerBreakdown) Total() int {
	return b.Um + b.Uh + b.Like + b.Other
}

// CountFillers tokenizes text and counts filler occurrences against the
// fixed vocabulary. It returns the word count, the total filler count and
// the per-bucket breakdown.
func CountFillers(text string) (words int, count int, breakdown FillerBreakdown) {
	tokens := strings.Fields(strings.ToLower(text))
	words = len(tokens)
	if words == 0 {
		return 0, 0, FillerBreakdown{}
	}

	for _, filler := range fillerVocabulary {
		parts := strings.Fields(filler)
		n := countTokenRuns(tokens, parts)
		if n == 0 {
			continue
		}
		count += n
		switch filler {
		case "um":
			breakdown.Um += n
		case "uh":
			breakdown.Uh += n
		case "like":
			breakdown.Like += n
		default:
			breakdown.Other += n
		}
	}

	return words, count, breakdown
}

// countTokenRuns counts non-overlapping occurrences of the phrase tokens
// within the token stream. Tokens are compared after stripping trailing
// punctuation so "um," still counts.
func countTokenRuns(tokens, phrase []string) int {
	if len(phrase) == 0 {
		return 0
	}

	count := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, p := range phrase {
			if trimToken(tokens[i+j]) != p {
				match = false
				break
			}
		}
		if match {
			count++
			i += len(phrase) - 1
		}
	}
	return count
}

// trimToken strips leading and trailing punctuation from a token.
func trimToken(tok string) string {
	return strings.Trim(tok, ".,!?;:\"'()-")
}
