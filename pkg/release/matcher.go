package release

import "github.com/hbollon/go-edlib"

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // Score < 0.70
	ConfidenceLow                           // Score >= 0.70
	ConfidenceMedium                        // Score >= 0.85
	ConfidenceHigh                          // Score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult represents the result of a fuzzy title match.
type MatchResult struct {
	Title      string          // The matched candidate title
	Score      float64         // Jaro-Winkler similarity score (0.0-1.0)
	Confidence MatchConfidence // Confidence level based on score
}

func confidenceFor(score float64) MatchConfidence {
	switch {
	case score >= 0.95:
		return ConfidenceHigh
	case score >= 0.85:
		return ConfidenceMedium
	case score >= 0.70:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// MatchTitle finds the best match for query among candidates using
// Jaro-Winkler similarity over each CleanTitle-normalized pair. It always
// returns a result, even when nothing clears ConfidenceLow, so a scraper
// can still log the near-miss.
func MatchTitle(query string, candidates []string) MatchResult {
	normalizedQuery := CleanTitle(query)

	best := MatchResult{}
	for _, candidate := range candidates {
		score, err := edlib.StringsSimilarity(normalizedQuery, CleanTitle(candidate), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		s := float64(score)
		if s > best.Score {
			best = MatchResult{Title: candidate, Score: s}
		}
	}
	best.Confidence = confidenceFor(best.Score)
	return best
}
