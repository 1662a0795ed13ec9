package store

import (
	"math"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/scoring"
)

// Score distribution bucket labels, upper bounds inclusive.
const (
	Bucket0to20   = "0-20"
	Bucket21to40  = "21-40"
	Bucket41to60  = "41-60"
	Bucket61to80  = "61-80"
	Bucket81to100 = "81-100"
)

type IntentCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summary aggregates stored results.
type Summary struct {
	Total             int            `json:"total"`
	ByIntent          IntentCounts   `json:"byIntent"`
	AverageScore      int            `json:"averageScore"`
	AverageConfidence float64        `json:"averageConfidence"`
	ScoreDistribution map[string]int `json:"scoreDistribution"`
}

// Summarize returns nil when there are no results.
func Summarize(results []*scoring.ScoringResult) *Summary {
	if len(results) == 0 {
		return nil
	}

	summary := &Summary{
		Total: len(results),
		ScoreDistribution: map[string]int{
			Bucket0to20:   0,
			Bucket21to40:  0,
			Bucket41to60:  0,
			Bucket61to80:  0,
			Bucket81to100: 0,
		},
	}

	var scoreSum int
	var confidenceSum float64
	for _, result := range results {
		scoreSum += result.Score
		confidenceSum += result.Confidence

		switch result.Intent {
		case ai.IntentHigh:
			summary.ByIntent.High++
		case ai.IntentMedium:
			summary.ByIntent.Medium++
		case ai.IntentLow:
			summary.ByIntent.Low++
		}

		summary.ScoreDistribution[bucket(result.Score)]++
	}

	total := float64(len(results))
	summary.AverageScore = int(math.Round(float64(scoreSum) / total))
	summary.AverageConfidence = math.Round(confidenceSum/total*100) / 100

	return summary
}

func bucket(score int) string {
	switch {
	case score <= 20:
		return Bucket0to20
	case score <= 40:
		return Bucket21to40
	case score <= 60:
		return Bucket41to60
	case score <= 80:
		return Bucket61to80
	default:
		return Bucket81to100
	}
}
