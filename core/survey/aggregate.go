package survey

import (
	"math"
	"time"
)

const (
	// ScoreWindow is how far back responses count towards a school score.
	ScoreWindow = 7 * 24 * time.Hour

	// DefaultOverallScore is the score of a school without responses in the window.
	DefaultOverallScore = 50
)

// Snapshot is the result of an aggregation run, before it is stored as a SchoolScore.
type Snapshot struct {
	OverallScore   int
	CategoryScores map[string]int
}

// WindowStart returns the earliest submission time included in a score computed at `now`.
func WindowStart(now time.Time) time.Time {
	return now.Add(-ScoreWindow)
}

// Aggregate groups `responses` by the category of their question, averages the converted answers
// of each category (rounded), then averages the category scores (rounded) into the overall score.
// Responses whose question is missing from `questions` are ignored.
func Aggregate(responses []Response, questions map[string]Question) Snapshot {
	type acc struct{ sum, n int }
	byCategory := make(map[string]*acc)
	for _, resp := range responses {
		q, ok := questions[resp.QuestionID]
		if !ok {
			continue
		}
		a, ok := byCategory[q.Category]
		if !ok {
			a = new(acc)
			byCategory[q.Category] = a
		}
		a.sum += AnswerScore(resp.Answer)
		a.n++
	}

	if len(byCategory) == 0 {
		return Snapshot{OverallScore: DefaultOverallScore, CategoryScores: map[string]int{}}
	}

	categoryScores := make(map[string]int, len(byCategory))
	var total int
	for cat, a := range byCategory {
		score := roundMean(a.sum, a.n)
		categoryScores[cat] = score
		total += score
	}
	return Snapshot{
		OverallScore:   roundMean(total, len(categoryScores)),
		CategoryScores: categoryScores,
	}
}

func roundMean(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}
