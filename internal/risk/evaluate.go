package risk

import "strings"

// Assessment is the final score for one call after every signal is applied.
type Assessment struct {
	Score         float64 `json:"score"`
	Band          Band    `json:"band"`
	MatchedPhrase string  `json:"matched_phrase,omitempty"`
}

const highRiskCountryBump = 0.1

// Evaluate folds caller metadata and the profile's safe phrases into the
// voice summary. A nil voice summary means the call carried no usable
// recording and scores zero before adjustments.
func Evaluate(voice *ChunkSummary, highRiskCountry bool, transcript string, safePhrases []string) Assessment {
	assessment := Assessment{Band: BandNone}
	if voice != nil {
		assessment.Score = voice.BinaryAverageFake
		assessment.Band = voice.Band
	}

	if highRiskCountry {
		assessment.Score = min(assessment.Score+highRiskCountryBump, 1.0)
		if assessment.Band == BandNone && assessment.Score >= CautionThreshold {
			assessment.Band = BandCaution
		}
	}

	if phrase, ok := MatchSafePhrase(transcript, safePhrases); ok {
		assessment.MatchedPhrase = phrase
		assessment.Score /= 2
		assessment.Band = downgrade(assessment.Band)
	}
	return assessment
}

func downgrade(band Band) Band {
	switch band {
	case BandHigh:
		return BandCaution
	default:
		return BandNone
	}
}

// MatchSafePhrase reports the first safe phrase found in the transcript.
// Matching is case-insensitive and ignores runs of whitespace.
func MatchSafePhrase(transcript string, phrases []string) (string, bool) {
	haystack := normalizePhrase(transcript)
	if haystack == "" {
		return "", false
	}
	for _, phrase := range phrases {
		needle := normalizePhrase(phrase)
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return phrase, true
		}
	}
	return "", false
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
