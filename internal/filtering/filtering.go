// Package filtering narrows scoring results with a chain of independent steps.
package filtering

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/scoring"
)

// ErrInvalidQuery is wrapped by query validation failures.
var ErrInvalidQuery = errors.New("invalid results query")

// Filter represents a single filtering step applied to scoring results.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(q *Query) error
	Apply(ctx context.Context, deps Deps, results []*scoring.ScoringResult) ([]*scoring.ScoringResult, Step, error)
}

// LeadIndex resolves the leads that belong to an upload batch.
type LeadIndex interface {
	LeadIDs(uploadID string) []string
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
	Leads  LeadIndex
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Query holds the criteria consumed by the filters. Zero values disable a criterion.
type Query struct {
	UploadID string
	Intent   string
	MinScore *int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the result filters in the order they are applied.
func Default() []Filter {
	return []Filter{
		NewUpload(),
		NewIntent(),
		NewMinScore(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates q against every enabled filter and then applies them in order.
// The input slice is never modified.
func Run(ctx context.Context, q *Query, deps Deps, steps []Filter, results []*scoring.ScoringResult) ([]*scoring.ScoringResult, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(q); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	current := append([]*scoring.ScoringResult(nil), results...)
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		current = next
	}

	return current, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

func keep(results []*scoring.ScoringResult, match func(*scoring.ScoringResult) bool) ([]*scoring.ScoringResult, Step) {
	kept := results[:0:0]
	for _, result := range results {
		if match(result) {
			kept = append(kept, result)
		}
	}
	return kept, Step{Initial: len(results), Dropped: len(results) - len(kept), Left: len(kept)}
}

func unchanged(results []*scoring.ScoringResult) Step {
	return Step{Initial: len(results), Left: len(results)}
}
