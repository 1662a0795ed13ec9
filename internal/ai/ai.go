package ai

import (
	"context"
	"math"

	"github.com/spigell/leadscore/internal/leads"
)

// Intent is the categorical buying-intent tier.
type Intent string

const (
	IntentHigh   Intent = "High"
	IntentMedium Intent = "Medium"
	IntentLow    Intent = "Low"
)

const (
	FallbackScore      = 25
	FallbackConfidence = 0.5
	FallbackReasoning  = "AI analysis unavailable, using fallback scoring"
	FallbackFactor     = "Fallback scoring applied"
)

// ParseIntent returns the tier named exactly by s.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentHigh, IntentMedium, IntentLow:
		return Intent(s), true
	default:
		return "", false
	}
}

// Base is the score an intent earns at full confidence.
func (i Intent) Base() int {
	switch i {
	case IntentHigh:
		return 50
	case IntentMedium:
		return 30
	case IntentLow:
		return 10
	default:
		return 0
	}
}

// InferenceScore is the language-model judgment for one lead.
type InferenceScore struct {
	Score      int      `json:"score"`
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	KeyFactors []string `json:"keyFactors"`

	Fallback bool   `json:"-"`
	Raw      string `json:"-"`
}

// NewInferenceScore derives the numeric score as round(base(intent) * confidence).
func NewInferenceScore(intent Intent, confidence float64, reasoning string, factors []string) *InferenceScore {
	return &InferenceScore{
		Score:      int(math.Round(float64(intent.Base()) * confidence)),
		Intent:     intent,
		Confidence: confidence,
		Reasoning:  reasoning,
		KeyFactors: factors,
	}
}

// Fallback returns the fixed neutral score used whenever inference fails.
func Fallback() *InferenceScore {
	return &InferenceScore{
		Score:      FallbackScore,
		Intent:     IntentMedium,
		Confidence: FallbackConfidence,
		Reasoning:  FallbackReasoning,
		KeyFactors: []string{FallbackFactor},
		Fallback:   true,
	}
}

// Scorer judges a lead against an offer. Implementations never fail: they
// return Fallback() when the underlying provider cannot produce a usable answer.
type Scorer interface {
	Score(ctx context.Context, lead *leads.Lead, offer *leads.Offer) *InferenceScore
}

// FallbackScorer is used when AI scoring is disabled in the configuration.
type FallbackScorer struct{}

func (FallbackScorer) Score(context.Context, *leads.Lead, *leads.Offer) *InferenceScore {
	return Fallback()
}
