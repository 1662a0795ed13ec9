package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/scoring"
)

const (
	unknownField    = "Unknown"
	keyFactorsSep   = "; "
	exportTimestamp = "2006-01-02T15:04:05.000Z07:00"
)

// CSVHeader is the first row of a results export.
var CSVHeader = []string{
	"Name", "Role", "Company", "Industry", "Location", "Intent", "Score",
	"Rule Score", "AI Score", "Confidence", "Reasoning", "Key Factors", "Scored At",
}

// LeadLookup resolves a lead by id.
type LeadLookup interface {
	Lead(id string) (*leads.Lead, bool)
}

// ResultView is a scoring result joined with the lead it rates.
type ResultView struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"leadId"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Company    string    `json:"company"`
	Industry   string    `json:"industry,omitempty"`
	Location   string    `json:"location,omitempty"`
	Intent     ai.Intent `json:"intent"`
	Score      int       `json:"score"`
	RuleScore  int       `json:"ruleScore"`
	AIScore    int       `json:"aiScore"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	KeyFactors []string  `json:"keyFactors"`
	ScoredAt   time.Time `json:"scoredAt"`
}

// Views joins results with their leads. Missing leads are reported as "Unknown".
func Views(results []*scoring.ScoringResult, lookup LeadLookup) []ResultView {
	views := make([]ResultView, 0, len(results))
	for _, result := range results {
		view := ResultView{
			ID:         result.ID,
			LeadID:     result.LeadID,
			Name:       unknownField,
			Role:       unknownField,
			Company:    unknownField,
			Intent:     result.Intent,
			Score:      result.Score,
			RuleScore:  result.RuleScore,
			AIScore:    result.AIScore,
			Confidence: result.Confidence,
			Reasoning:  result.Reasoning,
			KeyFactors: result.KeyFactors,
			ScoredAt:   result.ScoredAt,
		}

		if lead := findLead(lookup, result.LeadID); lead != nil {
			view.Name = lead.Name
			view.Role = lead.Role
			view.Company = lead.Company
			view.Industry = lead.Industry
			view.Location = lead.Location
		}

		views = append(views, view)
	}
	return views
}

// WriteCSV writes results with their lead data as CSV. Fields of missing
// leads are left empty.
func WriteCSV(w io.Writer, results []*scoring.ScoringResult, lookup LeadLookup) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, result := range results {
		lead := findLead(lookup, result.LeadID)
		if lead == nil {
			lead = &leads.Lead{}
		}

		row := []string{
			lead.Name,
			lead.Role,
			lead.Company,
			lead.Industry,
			lead.Location,
			string(result.Intent),
			strconv.Itoa(result.Score),
			strconv.Itoa(result.RuleScore),
			strconv.Itoa(result.AIScore),
			strconv.FormatFloat(result.Confidence, 'f', 2, 64),
			result.Reasoning,
			strings.Join(result.KeyFactors, keyFactorsSep),
			result.ScoredAt.UTC().Format(exportTimestamp),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row for result %s: %w", result.ID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportRecord is the nested JSON export shape of one result.
type ExportRecord struct {
	Lead     ExportLead     `json:"lead"`
	Scoring  ExportScoring  `json:"scoring"`
	Analysis ExportAnalysis `json:"analysis"`
	Metadata ExportMetadata `json:"metadata"`
}

type ExportLead struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Company  string `json:"company,omitempty"`
	Industry string `json:"industry,omitempty"`
	Location string `json:"location,omitempty"`
	Bio      string `json:"linkedin_bio,omitempty"`
}

type ExportScoring struct {
	Intent     ai.Intent `json:"intent"`
	TotalScore int       `json:"totalScore"`
	RuleScore  int       `json:"ruleScore"`
	AIScore    int       `json:"aiScore"`
	Confidence float64   `json:"confidence"`
}

type ExportAnalysis struct {
	Reasoning  string   `json:"reasoning"`
	KeyFactors []string `json:"keyFactors"`
}

type ExportMetadata struct {
	LeadID   string    `json:"leadId"`
	ScoredAt time.Time `json:"scoredAt"`
}

// ExportRecords builds the JSON export of results.
func ExportRecords(results []*scoring.ScoringResult, lookup LeadLookup) []ExportRecord {
	records := make([]ExportRecord, 0, len(results))
	for _, result := range results {
		record := ExportRecord{
			Scoring: ExportScoring{
				Intent:     result.Intent,
				TotalScore: result.Score,
				RuleScore:  result.RuleScore,
				AIScore:    result.AIScore,
				Confidence: result.Confidence,
			},
			Analysis: ExportAnalysis{
				Reasoning:  result.Reasoning,
				KeyFactors: result.KeyFactors,
			},
			Metadata: ExportMetadata{
				LeadID:   result.LeadID,
				ScoredAt: result.ScoredAt,
			},
		}

		if lead := findLead(lookup, result.LeadID); lead != nil {
			record.Lead = ExportLead{
				Name:     lead.Name,
				Role:     lead.Role,
				Company:  lead.Company,
				Industry: lead.Industry,
				Location: lead.Location,
				Bio:      lead.Bio,
			}
		}

		records = append(records, record)
	}
	return records
}

func findLead(lookup LeadLookup, id string) *leads.Lead {
	if lookup == nil {
		return nil
	}
	lead, ok := lookup.Lead(id)
	if !ok {
		return nil
	}
	return lead
}
