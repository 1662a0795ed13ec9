package scoring

import (
	"time"

	"github.com/spigell/leadscore/internal/ai"
)

// State is the lifecycle stage of a batch run.
type State string

const (
	StateIdle       State = "idle"
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Progress is a snapshot of a running batch. Processed never decreases and
// never exceeds Total.
type Progress struct {
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Status      State      `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ProgressFunc observes a batch. It is called synchronously once per lead and
// never concurrently.
type ProgressFunc func(Progress)

// Failure records a lead that could not be scored.
type Failure struct {
	LeadID   string `json:"leadId"`
	LeadName string `json:"leadName"`
	Message  string `json:"error"`
}

// BatchOutcome holds the successful results in lead input order and the
// per-lead failures.
type BatchOutcome struct {
	Results  []*ScoringResult `json:"results"`
	Failures []Failure        `json:"errors"`
}

// Summary counts the outcome of a finished batch.
type Summary struct {
	Total  int `json:"total"`
	Errors int `json:"errors"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summarize counts results by final intent.
func (o *BatchOutcome) Summarize() Summary {
	if o == nil {
		return Summary{}
	}

	summary := Summary{Total: len(o.Results), Errors: len(o.Failures)}
	for _, result := range o.Results {
		switch result.Intent {
		case ai.IntentHigh:
			summary.High++
		case ai.IntentMedium:
			summary.Medium++
		case ai.IntentLow:
			summary.Low++
		}
	}
	return summary
}

// Status describes the most recent batch run of a Runner.
type Status struct {
	State       State      `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Progress    Progress   `json:"progress"`
	Summary     *Summary   `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
}
