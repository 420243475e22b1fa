package survey

// Answer scores
const (
	ScoreExcellent = 100
	ScoreGood      = 80
	ScoreNeutral   = 60
	ScorePoor      = 40
	ScoreBad       = 20

	// DefaultAnswerScore is given to any token outside the conversion table.
	DefaultAnswerScore = 50
)

var answerScores = buildAnswerScores(map[int][]string{
	ScoreExcellent: {
		"always", "completely", "very-comfortable", "very-well", "very-supported", "very-effectively",
		"very-approachable", "very-connected", "very-successful", "very-valued",
	},
	ScoreGood: {
		"usually", "mostly", "somewhat-comfortable", "somewhat-well", "somewhat-supported", "somewhat-effectively",
		"somewhat-approachable", "somewhat-connected", "somewhat-successful", "somewhat-valued",
	},
	ScoreNeutral: {
		"sometimes", "neutral", "somewhat", "regularly", "not-applicable",
	},
	ScorePoor: {
		"rarely", "a-little", "not-very-well", "somewhat-uncomfortable", "somewhat-unsupported",
		"somewhat-ineffectively", "somewhat-unapproachable", "somewhat-disconnected", "somewhat-unsuccessful",
		"somewhat-undervalued",
	},
	ScoreBad: {
		"never", "not-at-all", "very-uncomfortable", "very-unsupported", "very-ineffectively",
		"very-unapproachable", "very-disconnected", "very-unsuccessful", "very-undervalued",
	},
})

func buildAnswerScores(tiers map[int][]string) map[string]int {
	scores := make(map[string]int)
	for score, tokens := range tiers {
		for _, tok := range tokens {
			scores[tok] = score
		}
	}
	return scores
}

// AnswerScore converts an answer token to its numeric score.
func AnswerScore(answer string) int {
	if score, ok := answerScores[answer]; ok {
		return score
	}
	return DefaultAnswerScore
}

// IsKnownAnswer reports whether `answer` is part of the conversion table.
func IsKnownAnswer(answer string) bool {
	_, ok := answerScores[answer]
	return ok
}
