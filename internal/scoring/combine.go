package scoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/leads"
)

const (
	MaxScore = 100

	highIntentThreshold   = 70
	mediumIntentThreshold = 40
)

var (
	newID = uuid.NewString
	now   = func() time.Time { return time.Now().UTC() }
)

// ErrInvalidInput is returned by Combine for missing or out-of-range inputs.
var ErrInvalidInput = errors.New("invalid scoring input")

// ScoringResult is the final verdict for one lead against one offer.
type ScoringResult struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"leadId"`
	OfferID    string    `json:"offerId"`
	Score      int       `json:"score"`
	RuleScore  int       `json:"ruleScore"`
	AIScore    int       `json:"aiScore"`
	Intent     ai.Intent `json:"intent"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	KeyFactors []string  `json:"keyFactors"`
	ScoredAt   time.Time `json:"scoredAt"`
}

// Combine merges the rule and inference scores. The final intent is derived
// from the combined score alone and may differ from the inference intent.
func Combine(rule *RuleScore, inference *ai.InferenceScore, lead *leads.Lead, offer *leads.Offer) (*ScoringResult, error) {
	switch {
	case rule == nil:
		return nil, fmt.Errorf("%w: rule score is required", ErrInvalidInput)
	case inference == nil:
		return nil, fmt.Errorf("%w: inference score is required", ErrInvalidInput)
	case lead == nil:
		return nil, fmt.Errorf("%w: lead is required", ErrInvalidInput)
	case offer == nil:
		return nil, fmt.Errorf("%w: offer is required", ErrInvalidInput)
	}

	if rule.Total < 0 || rule.Total > MaxRuleScore {
		return nil, fmt.Errorf("%w: rule score %d out of range", ErrInvalidInput, rule.Total)
	}
	if inference.Score < 0 || inference.Score > ai.IntentHigh.Base() {
		return nil, fmt.Errorf("%w: inference score %d out of range", ErrInvalidInput, inference.Score)
	}
	if inference.Confidence < 0 || inference.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidInput, inference.Confidence)
	}

	score := min(MaxScore, rule.Total+inference.Score)

	return &ScoringResult{
		ID:         newID(),
		LeadID:     lead.ID,
		OfferID:    offer.ID,
		Score:      score,
		RuleScore:  rule.Total,
		AIScore:    inference.Score,
		Intent:     FinalIntent(score),
		Confidence: inference.Confidence,
		Reasoning:  inference.Reasoning,
		KeyFactors: append([]string(nil), inference.KeyFactors...),
		ScoredAt:   now(),
	}, nil
}

// FinalIntent maps a combined score to its tier: 70 and above is High,
// 40 and above is Medium, anything lower is Low.
func FinalIntent(score int) ai.Intent {
	switch {
	case score >= highIntentThreshold:
		return ai.IntentHigh
	case score >= mediumIntentThreshold:
		return ai.IntentMedium
	default:
		return ai.IntentLow
	}
}
