package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/leads"
	"github.com/spigell/leadscore/internal/scoring"
)

var scoredAt = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

func lead(id, upload string) *leads.Lead {
	return &leads.Lead{ID: id, UploadID: upload, Name: "Name " + id, Role: "CEO", Company: "Acme", Industry: "SaaS", Location: "Berlin"}
}

func result(id, leadID string, score int, intent ai.Intent, confidence float64) *scoring.ScoringResult {
	return &scoring.ScoringResult{
		ID:         id,
		LeadID:     leadID,
		Score:      score,
		RuleScore:  score / 2,
		AIScore:    score - score/2,
		Intent:     intent,
		Confidence: confidence,
		Reasoning:  `Strong "fit", clear need`,
		KeyFactors: []string{"Decision maker", "SaaS"},
		ScoredAt:   scoredAt,
	}
}

func TestMemoryLeads(t *testing.T) {
	m := NewMemory()
	m.AddLeads([]*leads.Lead{lead("a", "u1"), lead("b", "u1")}, "u1")
	m.AddLeads([]*leads.Lead{lead("c", "u2"), nil}, "u2")

	all := m.Leads("")
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	u2 := m.Leads("u2")
	require.Len(t, u2, 1)
	assert.Equal(t, "c", u2[0].ID)

	assert.Empty(t, m.Leads("missing"))
	assert.Equal(t, []string{"a", "b"}, m.LeadIDs("u1"))

	got, ok := m.Lead("b")
	require.True(t, ok)
	assert.Equal(t, "Name b", got.Name)

	_, ok = m.Lead("zzz")
	assert.False(t, ok)
}

func TestMemoryOfferAndResults(t *testing.T) {
	m := NewMemory()
	assert.Nil(t, m.Offer())

	offer := &leads.Offer{ID: "o1", Name: "Offer"}
	m.SetOffer(offer)
	assert.Same(t, offer, m.Offer())

	m.AddResults([]*scoring.ScoringResult{result("r1", "a", 80, ai.IntentHigh, 0.9), nil})
	m.AddResults([]*scoring.ScoringResult{result("r2", "b", 30, ai.IntentLow, 0.4)})
	m.AddResults([]*scoring.ScoringResult{result("r1", "a", 85, ai.IntentHigh, 0.9)})

	results := m.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "r1", results[0].ID)
	assert.Equal(t, 85, results[0].Score)
	assert.Equal(t, "r2", results[1].ID)

	m.Clear()
	assert.Nil(t, m.Offer())
	assert.Empty(t, m.Leads(""))
	assert.Empty(t, m.Results())
	assert.Empty(t, m.LeadIDs("u1"))
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("l%d", i)
			m.AddLeads([]*leads.Lead{lead(id, "u")}, fmt.Sprintf("u%d", i))
			m.AddResults([]*scoring.ScoringResult{result("r"+id, id, 50, ai.IntentMedium, 0.5)})
		}()
		go func() {
			defer wg.Done()
			_ = m.Leads("")
			_ = m.Results()
		}()
	}
	wg.Wait()

	assert.Len(t, m.Leads(""), 20)
	assert.Len(t, m.Results(), 20)
}

func TestSummarize(t *testing.T) {
	assert.Nil(t, Summarize(nil))

	summary := Summarize([]*scoring.ScoringResult{
		result("r1", "a", 20, ai.IntentLow, 0.5),
		result("r2", "b", 21, ai.IntentLow, 0.25),
		result("r3", "c", 60, ai.IntentMedium, 0.9),
		result("r4", "d", 81, ai.IntentHigh, 1),
	})
	require.NotNil(t, summary)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, IntentCounts{High: 1, Medium: 1, Low: 2}, summary.ByIntent)
	// (20+21+60+81)/4 = 45.5
	assert.Equal(t, 46, summary.AverageScore)
	// (0.5+0.25+0.9+1)/4 = 0.6625
	assert.InDelta(t, 0.66, summary.AverageConfidence, 1e-9)
	assert.Equal(t, map[string]int{
		Bucket0to20:   1,
		Bucket21to40:  1,
		Bucket41to60:  1,
		Bucket61to80:  0,
		Bucket81to100: 1,
	}, summary.ScoreDistribution)
}

func TestViews(t *testing.T) {
	m := NewMemory()
	m.AddLeads([]*leads.Lead{lead("a", "u1")}, "u1")

	views := Views([]*scoring.ScoringResult{
		result("r1", "a", 80, ai.IntentHigh, 0.9),
		result("r2", "gone", 30, ai.IntentLow, 0.4),
	}, m)
	require.Len(t, views, 2)

	assert.Equal(t, "r1", views[0].ID)
	assert.Equal(t, "a", views[0].LeadID)
	assert.Equal(t, "Name a", views[0].Name)
	assert.Equal(t, "SaaS", views[0].Industry)

	assert.Equal(t, "Unknown", views[1].Name)
	assert.Equal(t, "Unknown", views[1].Company)
	assert.Empty(t, views[1].Industry)
}

func TestWriteCSV(t *testing.T) {
	m := NewMemory()
	m.AddLeads([]*leads.Lead{lead("a", "u1")}, "u1")

	var buf bytes.Buffer
	err := WriteCSV(&buf, []*scoring.ScoringResult{
		result("r1", "a", 80, ai.IntentHigh, 0.9),
		result("r2", "gone", 30, ai.IntentLow, 0.456),
	}, m)
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{
		"Name a", "CEO", "Acme", "SaaS", "Berlin", "High", "80", "40", "40", "0.90",
		`Strong "fit", clear need`, "Decision maker; SaaS", "2025-03-04T05:06:07.890Z",
	}, rows[1])
	assert.Equal(t, "", rows[2][0])
	assert.Equal(t, "0.46", rows[2][9])
}

func TestExportRecords(t *testing.T) {
	m := NewMemory()
	l := lead("a", "u1")
	l.Bio = "Builds teams"
	m.AddLeads([]*leads.Lead{l}, "u1")

	records := ExportRecords([]*scoring.ScoringResult{result("r1", "a", 80, ai.IntentHigh, 0.9)}, m)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "Name a", record.Lead.Name)
	assert.Equal(t, "Builds teams", record.Lead.Bio)
	assert.Equal(t, ExportScoring{Intent: ai.IntentHigh, TotalScore: 80, RuleScore: 40, AIScore: 40, Confidence: 0.9}, record.Scoring)
	assert.Equal(t, []string{"Decision maker", "SaaS"}, record.Analysis.KeyFactors)
	assert.Equal(t, "a", record.Metadata.LeadID)
	assert.Equal(t, scoredAt, record.Metadata.ScoredAt)
}
