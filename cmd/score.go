package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/leadscore/internal/filtering"
	"github.com/spigell/leadscore/internal/leads"
	applog "github.com/spigell/leadscore/internal/logger"
	"github.com/spigell/leadscore/internal/scoring"
	"github.com/spigell/leadscore/internal/store"
	"github.com/spigell/leadscore/internal/utils"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	maxReasoningColumn = 80
)

var (
	errAborted     = errors.New("scoring aborted")
	errInterrupted = errors.New("scoring interrupted")
)

var confirmPrompt = promptui.Select{
	Label: "Score leads?",
	Items: []string{PromptYes, PromptNo},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a CSV of leads against an offer file and print the results",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := score(cmd); err != nil {
			if errors.Is(err, errAborted) {
				return
			}
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringP("offer", "o", "", "offer file in yaml or json (required)")
	scoreCmd.Flags().StringP("leads", "l", "", "leads csv file (required)")
	scoreCmd.Flags().StringP("output", "O", "", "write the scored results as json to this file")
	scoreCmd.Flags().StringP("intent", "i", "", "only print results with this intent (High, Medium, Low)")
	scoreCmd.Flags().IntP("min-score", "m", -1, "only print results with at least this score")
	scoreCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before scoring")

	scoreCmd.MarkFlagRequired("offer")
	scoreCmd.MarkFlagRequired("leads")
}

func score(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Error("getting a config", zap.Error(err))
		return err
	}

	offer, err := loadOffer(flagString(cmd, "offer"), time.Now().UTC())
	if err != nil {
		logger.Error("loading offer", zap.Error(err))
		return err
	}

	uploadID := uuid.NewString()
	batch, parsed, err := loadLeads(flagString(cmd, "leads"), uploadID, time.Now().UTC())
	if err != nil {
		logger.Error("loading leads", zap.Error(err))
		return err
	}

	for _, row := range parsed.Invalid {
		logger.Warn("skipping invalid lead", zap.Int("row", row.Row), zap.String("error", row.Error))
	}

	logger.Info("leads loaded",
		zap.String(applog.FieldOfferName, offer.Name),
		zap.String(applog.FieldUploadID, uploadID),
		zap.Int("valid", len(parsed.Valid)),
		zap.Int("invalid", len(parsed.Invalid)),
	)

	if len(batch) == 0 {
		logger.Info("exiting", zap.String("reason", "no valid leads found"))
		return nil
	}

	if flagString(cmd, "auto-approve") != "true" {
		_, action, err := confirmPrompt.Run()
		if err != nil {
			logger.Error("exiting", zap.Error(err))
			return err
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return errAborted
		}
	}

	scorer, err := newScorer(ctx, config.AI, logger)
	if err != nil {
		logger.Error("building ai scorer", zap.Error(err))
		return err
	}

	memory := store.NewMemory()
	memory.SetOffer(offer)
	memory.AddLeads(batch, uploadID)

	runner := scoring.NewRunner(scorer, memory, scoring.Options{ChunkSize: config.ChunkSize}, logger.Named("scoring"))

	outcome, err := runner.RunBatch(ctx, batch, offer, func(p scoring.Progress) {
		logger.Info("scoring progress", zap.Int("processed", p.Processed), zap.Int("total", p.Total))
	})
	if err != nil {
		logger.Error("scoring failed", zap.Error(err))
		return err
	}

	return reportOutcome(ctx, cmd, logger, memory, outcome, os.Stdout)
}

// reportOutcome prints the filtered results and writes the optional dump.
// Nothing is reported for an interrupted run: its remaining leads were
// answered with fallback scores.
func reportOutcome(ctx context.Context, cmd *cobra.Command, logger *zap.Logger, memory *store.Memory, outcome *scoring.BatchOutcome, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		logger.Warn("scoring interrupted, discarding results", zap.Error(err))
		return fmt.Errorf("%w: %w", errInterrupted, err)
	}

	for _, failure := range outcome.Failures {
		logger.Warn("lead not scored",
			zap.String(applog.FieldLeadID, failure.LeadID),
			zap.String(applog.FieldLeadName, failure.LeadName),
			zap.String("error", failure.Message),
		)
	}

	query, err := resultsQuery(cmd)
	if err != nil {
		logger.Error("building results filter", zap.Error(err))
		return err
	}

	steps := resultFilters(query)
	deps := filtering.Deps{Logger: logger, Leads: memory}
	shown, err := filtering.Run(ctx, query, deps, steps, outcome.Results)
	if err != nil {
		logger.Error("filtering results", zap.Error(err))
		return err
	}
	logger.Debug("result filters", zap.Any("filters", filtering.Describe(steps)))

	renderResults(w, store.Views(shown, memory))

	summary := outcome.Summarize()
	logger.Info("scoring finished",
		zap.Int("scored", summary.Total),
		zap.Int("errors", summary.Errors),
		zap.Int("high", summary.High),
		zap.Int("medium", summary.Medium),
		zap.Int("low", summary.Low),
		zap.Int("shown", len(shown)),
	)

	if output := flagString(cmd, "output"); output != "" {
		if err := dumpResults(output, store.ExportRecords(outcome.Results, memory)); err != nil {
			logger.Error("dumping results", zap.Error(err))
			return err
		}
		logger.Info("dumping result to file", zap.String("filename", output))
	}

	return nil
}

// resultFilters disables the steps the query does not ask for. A score run
// holds a single upload, so the upload step never applies.
func resultFilters(q *filtering.Query) []filtering.Filter {
	steps := filtering.Default()
	filtering.DisableByName(steps, "upload", "single upload per run")
	if q.Intent == "" {
		filtering.DisableByName(steps, "intent", "no --intent given")
	}
	if q.MinScore == nil {
		filtering.DisableByName(steps, "min_score", "no --min-score given")
	}
	return steps
}

// loadOffer reads an offer from a yaml or json file and validates it.
func loadOffer(path string, now time.Time) (*leads.Offer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read offer file: %w", err)
	}

	var input leads.Offer
	if err := yaml.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse offer file %s: %w", path, err)
	}

	return leads.NewOffer(input, now)
}

// loadLeads parses a lead CSV into leads of a single upload.
func loadLeads(path, uploadID string, now time.Time) ([]*leads.Lead, *leads.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read leads file: %w", err)
	}

	content := string(data)
	if err := leads.ValidateCSVFile(int64(len(data)), content); err != nil {
		return nil, nil, err
	}

	parsed, err := leads.ParseCSV(strings.NewReader(content))
	if err != nil {
		return nil, nil, err
	}

	batch := make([]*leads.Lead, 0, len(parsed.Valid))
	for _, input := range parsed.Valid {
		batch = append(batch, input.ToLead(uploadID, now))
	}

	return batch, parsed, nil
}

func resultsQuery(cmd *cobra.Command) (*filtering.Query, error) {
	q := &filtering.Query{Intent: flagString(cmd, "intent")}

	raw := flagString(cmd, "min-score")
	if raw == "" {
		return q, nil
	}

	minScore, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: min-score must be an integer", filtering.ErrInvalidQuery)
	}
	if minScore >= 0 {
		q.MinScore = &minScore
	}

	return q, nil
}

func renderResults(w io.Writer, views []store.ResultView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Name", "Role", "Company", "Intent", "Score", "Rule", "AI", "Confidence", "Reasoning"})

	for _, v := range views {
		t.AppendRow(table.Row{
			v.Name,
			v.Role,
			v.Company,
			v.Intent,
			v.Score,
			v.RuleScore,
			v.AIScore,
			fmt.Sprintf("%.2f", v.Confidence),
			utils.Truncate(v.Reasoning, maxReasoningColumn, "..."),
		})
	}

	t.AppendFooter(table.Row{"", "", "Total", len(views)})
	t.Render()
}

func dumpResults(path string, records []store.ExportRecord) error {
	pretty, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	if err := os.WriteFile(path, pretty, 0o600); err != nil {
		return fmt.Errorf("write results file: %w", err)
	}

	return nil
}

func flagString(cmd *cobra.Command, name string) string {
	flag := cmd.Flag(name)
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(flag.Value.String())
}
