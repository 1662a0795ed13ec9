// Package scoring rates leads against an offer: a deterministic rule score is
// merged with a language-model judgment and batches run in bounded chunks.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/logger"
	"github.com/spigell/leadscore/internal/metrics"
)

// DefaultChunkSize is the number of leads scored concurrently.
const DefaultChunkSize = 5

var (
	ErrNoOffer    = errors.New("no offer configured")
	ErrNoLeads    = errors.New("no leads to score")
	ErrInProgress = errors.New("scoring already in progress")
)

// Store is the persistence the Runner reads its input from and hands results to.
type Store interface {
	Offer() *leads.Offer
	Leads(uploadID string) []*leads.Lead
	AddResults(results []*ScoringResult)
}

type Options struct {
	ChunkSize int
}

// Runner scores batches of leads. At most one batch is processed at a time.
type Runner struct {
	scorer    ai.Scorer
	store     Store
	logger    *zap.Logger
	chunkSize int

	running atomic.Bool

	// progressMu serializes progress increments together with observer calls.
	progressMu sync.Mutex

	mu     sync.Mutex
	status Status
}

func NewRunner(scorer ai.Scorer, store Store, opts Options, logger *zap.Logger) *Runner {
	if scorer == nil {
		scorer = ai.FallbackScorer{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		scorer:    scorer,
		store:     store,
		logger:    logger,
		chunkSize: opts.ChunkSize,
		status:    Status{State: StateIdle},
	}
}

// ScoreOne runs the rule engine, the inference scorer and the combiner for a
// single lead.
func (r *Runner) ScoreOne(ctx context.Context, lead *leads.Lead, offer *leads.Offer) (*ScoringResult, error) {
	if lead == nil {
		return nil, fmt.Errorf("%w: lead is required", ErrInvalidInput)
	}
	if offer == nil {
		return nil, ErrNoOffer
	}

	start := time.Now()
	defer func() {
		metrics.LeadScoringDuration.Observe(time.Since(start).Seconds())
	}()

	rule := ScoreRules(lead, offer)
	inference := r.scorer.Score(ctx, lead, offer)

	return Combine(rule, inference, lead, offer)
}

// RunBatch scores leads synchronously and hands the successful results to the
// store. Per-lead failures are collected in the outcome and never abort the batch.
func (r *Runner) RunBatch(ctx context.Context, batch []*leads.Lead, offer *leads.Offer, onProgress ProgressFunc) (*BatchOutcome, error) {
	if err := checkPreconditions(batch, offer); err != nil {
		return nil, err
	}

	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer r.running.Store(false)

	r.begin(len(batch), StateProcessing)
	outcome, err := r.run(ctx, batch, offer, onProgress)
	r.finish(outcome, err)

	return outcome, err
}

// Start launches a batch over the stored offer and the leads of uploadID (all
// leads when empty) and returns without waiting. The run is detached from
// ctx cancellation.
func (r *Runner) Start(ctx context.Context, uploadID string) (*Job, error) {
	if r.store == nil {
		return nil, errors.New("runner has no store configured")
	}

	offer := r.store.Offer()
	batch := r.store.Leads(uploadID)
	if err := checkPreconditions(batch, offer); err != nil {
		return nil, err
	}

	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}

	r.begin(len(batch), StatePending)
	job := newJob()

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer r.running.Store(false)

		r.setState(StateProcessing)
		outcome, err := r.run(runCtx, batch, offer, nil)
		r.finish(outcome, err)
		job.resolve(outcome, err)
	}()

	return job, nil
}

// Status returns a copy of the most recent run state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.status
	if status.Summary != nil {
		summary := *status.Summary
		status.Summary = &summary
	}
	return status
}

// Running reports whether a batch is being processed.
func (r *Runner) Running() bool {
	return r.running.Load()
}

func checkPreconditions(batch []*leads.Lead, offer *leads.Offer) error {
	if offer == nil {
		return ErrNoOffer
	}
	if len(batch) == 0 {
		return ErrNoLeads
	}
	return nil
}

func (r *Runner) run(ctx context.Context, batch []*leads.Lead, offer *leads.Offer, onProgress ProgressFunc) (outcome *BatchOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = nil
			err = fmt.Errorf("scoring pipeline failed: %v", rec)
		}
	}()

	log := logger.WithFields(r.logger, logger.OfferFields(offer)...)
	log.Info("batch scoring started", zap.Int("leads", len(batch)), zap.Int("chunk_size", r.chunkSize))

	results := make([]*ScoringResult, len(batch))
	failures := make([]*Failure, len(batch))

	for start := 0; start < len(batch); start += r.chunkSize {
		end := min(start+r.chunkSize, len(batch))
		log.Debug("scoring chunk",
			zap.Int("chunk", start/r.chunkSize+1),
			zap.Int("size", end-start),
		)

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				lead := batch[i]
				result, err := r.scoreSafely(ctx, lead, offer)
				if err != nil {
					failures[i] = newFailure(lead, err)
					metrics.LeadFailures.Inc()
					log.Warn("lead scoring failed", append(logger.LeadFields(lead), zap.Error(err))...)
				} else {
					results[i] = result
					metrics.LeadsScored.WithLabelValues(string(result.Intent)).Inc()
				}

				r.advance(onProgress)
				return nil
			})
		}
		_ = g.Wait()
	}

	outcome = &BatchOutcome{
		Results:  make([]*ScoringResult, 0, len(batch)),
		Failures: make([]Failure, 0),
	}
	for i := range batch {
		if results[i] != nil {
			outcome.Results = append(outcome.Results, results[i])
		}
		if failures[i] != nil {
			outcome.Failures = append(outcome.Failures, *failures[i])
		}
	}

	if r.store != nil && len(outcome.Results) > 0 {
		r.store.AddResults(outcome.Results)
	}

	log.Info("batch scoring completed",
		zap.Int("scored", len(outcome.Results)),
		zap.Int("failed", len(outcome.Failures)),
	)

	return outcome, nil
}

func (r *Runner) scoreSafely(ctx context.Context, lead *leads.Lead, offer *leads.Offer) (result *ScoringResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("panic while scoring lead: %v", rec)
		}
	}()

	return r.ScoreOne(ctx, lead, offer)
}

func newFailure(lead *leads.Lead, err error) *Failure {
	failure := &Failure{Message: err.Error()}
	if lead != nil {
		failure.LeadID = lead.ID
		failure.LeadName = lead.Name
	}
	return failure
}

// begin resets the status for a new run. Start reports the run as pending
// until its goroutine picks it up.
func (r *Runner) begin(total int, state State) {
	started := now()

	r.mu.Lock()
	r.status = Status{
		State:     state,
		StartedAt: &started,
		Progress: Progress{
			Total:     total,
			Status:    state,
			StartedAt: started,
		},
	}
	r.mu.Unlock()

	metrics.BatchInProgress.Set(1)
}

func (r *Runner) setState(state State) {
	r.mu.Lock()
	r.status.State = state
	r.status.Progress.Status = state
	r.mu.Unlock()
}

func (r *Runner) advance(onProgress ProgressFunc) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	r.mu.Lock()
	if r.status.Progress.Processed < r.status.Progress.Total {
		r.status.Progress.Processed++
	}
	snapshot := r.status.Progress
	r.mu.Unlock()

	if onProgress != nil {
		onProgress(snapshot)
	}
}

func (r *Runner) finish(outcome *BatchOutcome, err error) {
	completed := now()

	r.mu.Lock()
	r.status.CompletedAt = &completed
	r.status.Progress.CompletedAt = &completed
	if err != nil {
		r.status.State = StateFailed
		r.status.Error = err.Error()
	} else {
		summary := outcome.Summarize()
		r.status.State = StateCompleted
		r.status.Summary = &summary
	}
	r.status.Progress.Status = r.status.State
	state := r.status.State
	r.mu.Unlock()

	metrics.BatchRuns.WithLabelValues(string(state)).Inc()
	metrics.BatchInProgress.Set(0)

	if err != nil {
		r.logger.Error("batch scoring failed", zap.Error(err))
	}
}

// Job is the handle of a batch started with Runner.Start.
type Job struct {
	done    chan struct{}
	outcome *BatchOutcome
	err     error
}

func newJob() *Job {
	return &Job{done: make(chan struct{})}
}

func (j *Job) resolve(outcome *BatchOutcome, err error) {
	j.outcome = outcome
	j.err = err
	close(j.done)
}

// Done is closed when the batch has finished.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Outcome blocks until the batch has finished.
func (j *Job) Outcome() (*BatchOutcome, error) {
	<-j.done
	return j.outcome, j.err
}
