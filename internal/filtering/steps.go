package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/scoring"
)

type uploadFilter struct {
	disabled bool
	reason   string
	uploadID string
}

// NewUpload creates a filter that keeps results of leads from one upload batch.
func NewUpload() Filter {
	return &uploadFilter{}
}

func (f *uploadFilter) Name() string { return "upload" }

func (f *uploadFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *uploadFilter) IsEnabled() bool { return !f.disabled }

func (f *uploadFilter) Validate(q *Query) error {
	f.uploadID = ""
	if q != nil {
		f.uploadID = strings.TrimSpace(q.UploadID)
	}
	return nil
}

func (f *uploadFilter) Apply(_ context.Context, deps Deps, results []*scoring.ScoringResult) ([]*scoring.ScoringResult, Step, error) {
	if f.uploadID == "" {
		return results, unchanged(results), nil
	}
	if deps.Leads == nil {
		return nil, Step{}, fmt.Errorf("lead index is required to filter by upload")
	}

	ids := make(map[string]struct{})
	for _, id := range deps.Leads.LeadIDs(f.uploadID) {
		ids[id] = struct{}{}
	}

	kept, step := keep(results, func(r *scoring.ScoringResult) bool {
		_, ok := ids[r.LeadID]
		return ok
	})

	if deps.Logger != nil && step.Dropped > 0 {
		deps.Logger.Debug("excluding results of other uploads",
			zap.String("upload_id", f.uploadID),
			zap.Int("results_left", step.Left),
		)
	}

	return kept, step, nil
}

func (f *uploadFilter) Status() Status {
	details := map[string]string{}
	if f.uploadID != "" {
		details["upload_id"] = f.uploadID
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type intentFilter struct {
	disabled bool
	reason   string
	intent   ai.Intent
}

// NewIntent creates a filter that keeps results of one final intent tier.
func NewIntent() Filter {
	return &intentFilter{}
}

func (f *intentFilter) Name() string { return "intent" }

func (f *intentFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *intentFilter) IsEnabled() bool { return !f.disabled }

func (f *intentFilter) Validate(q *Query) error {
	f.intent = ""
	if q == nil || q.Intent == "" {
		return nil
	}

	intent, ok := ai.ParseIntent(q.Intent)
	if !ok {
		return fmt.Errorf("%w: invalid intent value %q", ErrInvalidQuery, q.Intent)
	}
	f.intent = intent
	return nil
}

func (f *intentFilter) Apply(_ context.Context, _ Deps, results []*scoring.ScoringResult) ([]*scoring.ScoringResult, Step, error) {
	if f.intent == "" {
		return results, unchanged(results), nil
	}

	kept, step := keep(results, func(r *scoring.ScoringResult) bool {
		return r.Intent == f.intent
	})
	return kept, step, nil
}

func (f *intentFilter) Status() Status {
	details := map[string]string{}
	if f.intent != "" {
		details["intent"] = string(f.intent)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type minScoreFilter struct {
	disabled bool
	reason   string
	minScore *int
}

// NewMinScore creates a filter that keeps results scoring at least the requested minimum.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *minScoreFilter) IsEnabled() bool { return !f.disabled }

func (f *minScoreFilter) Validate(q *Query) error {
	f.minScore = nil
	if q == nil || q.MinScore == nil {
		return nil
	}

	if *q.MinScore < 0 || *q.MinScore > scoring.MaxScore {
		return fmt.Errorf("%w: minScore must be between 0 and %d", ErrInvalidQuery, scoring.MaxScore)
	}

	value := *q.MinScore
	f.minScore = &value
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, _ Deps, results []*scoring.ScoringResult) ([]*scoring.ScoringResult, Step, error) {
	if f.minScore == nil {
		return results, unchanged(results), nil
	}

	minScore := *f.minScore
	kept, step := keep(results, func(r *scoring.ScoringResult) bool {
		return r.Score >= minScore
	})
	return kept, step, nil
}

func (f *minScoreFilter) Status() Status {
	details := map[string]string{}
	if f.minScore != nil {
		details["min_score"] = strconv.Itoa(*f.minScore)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
