package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/logger"
	"github.com/spigell/leadscore/internal/metrics"
	"github.com/spigell/leadscore/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, req Request) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction = "You are an expert lead qualification specialist. Analyze prospects using structured reasoning and respond with JSON only."

	notSpecified = "Not specified"
	notProvided  = "Not provided"

	defaultMaxLogLength    = 200
	defaultTemperature     = 0.3
	defaultMaxOutputTokens = 500
	defaultTimeout         = 30 * time.Second
)

// Options tunes the generation call made for every lead.
type Options struct {
	Temperature     float32
	MaxOutputTokens int32
	// Timeout bounds a single lead evaluation including retries.
	Timeout      time.Duration
	MaxLogLength int
}

// Scorer asks Gemini to judge a lead against an offer.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	opts      Options
}

var _ ai.Scorer = (*Scorer)(nil)

func NewScorer(generator contentGenerator, opts Options, logger *zap.Logger) *Scorer {
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = defaultMaxOutputTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		opts:      opts,
	}
}

// Score never fails: provider, parsing and validation errors are logged and
// answered with ai.Fallback().
func (s *Scorer) Score(ctx context.Context, lead *leads.Lead, offer *leads.Offer) *ai.InferenceScore {
	start := time.Now()
	score, err := s.evaluate(ctx, lead, offer)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := fallbackReason(err)
		metrics.InferenceFallbacks.WithLabelValues(reason).Inc()

		s.logger.Warn("AI scoring failed, using fallback score",
			append(logger.LeadFields(lead), zap.String("reason", reason), zap.Error(err))...,
		)

		return ai.Fallback()
	}

	return score
}

func (s *Scorer) evaluate(ctx context.Context, lead *leads.Lead, offer *leads.Offer) (*ai.InferenceScore, error) {
	if lead == nil {
		return nil, fmt.Errorf("lead is required")
	}
	if offer == nil {
		return nil, fmt.Errorf("offer is required")
	}
	if s.generator == nil {
		return nil, fmt.Errorf("generator is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	prompt := buildPrompt(lead, offer)

	s.logger.Debug("gemini generate content request",
		append(logger.LeadFields(lead),
			zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
			zap.String("prompt_preview", utils.TruncateForLog(prompt, s.opts.MaxLogLength)),
		)...,
	)

	raw, err := s.generator.GenerateContent(ctx, Request{
		SystemInstruction: systemInstruction,
		Prompt:            prompt,
		Temperature:       s.opts.Temperature,
		MaxOutputTokens:   s.opts.MaxOutputTokens,
		JSON:              true,
		Schema:            responseSchema(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content response",
		append(logger.LeadFields(lead),
			zap.Int("response_length", utf8.RuneCountInString(raw)),
			zap.String("response_preview", utils.TruncateForLog(raw, s.opts.MaxLogLength)),
		)...,
	)

	score, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	score.Raw = raw
	return score, nil
}

func buildPrompt(lead *leads.Lead, offer *leads.Offer) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Offer: {{OFFER_NAME}}\nUse cases: {{USE_CASES}}\nProspect: {{LEAD_ROLE}} at {{LEAD_COMPANY}}\n\nJSON Response:"
	}

	replacer := strings.NewReplacer(
		"{{OFFER_NAME}}", singleLine(offer.Name),
		"{{VALUE_PROPS}}", joinItems(offer.ValueProps),
		"{{USE_CASES}}", joinItems(offer.IdealUseCases),
		"{{LEAD_NAME}}", singleLine(lead.Name),
		"{{LEAD_ROLE}}", singleLine(lead.Role),
		"{{LEAD_COMPANY}}", singleLine(lead.Company),
		"{{LEAD_INDUSTRY}}", valueOr(lead.Industry, notSpecified),
		"{{LEAD_LOCATION}}", valueOr(lead.Location, notSpecified),
		"{{LEAD_BIO}}", valueOr(lead.Bio, notProvided),
	)

	return replacer.Replace(template)
}

func valueOr(value, placeholder string) string {
	if value = singleLine(value); value == "" {
		return placeholder
	}
	return value
}

// singleLine collapses whitespace so prospect data cannot open new prompt sections.
func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func joinItems(items []string) string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = singleLine(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return strings.Join(cleaned, ", ")
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, errMalformedResponse):
		return "malformed"
	case errors.Is(err, errInvalidResponse):
		return "invalid"
	default:
		return "provider"
	}
}
