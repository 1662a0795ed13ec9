package scoring

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spigell/leadscore/internal/leads"
)

const (
	rolePointsDecisionMaker = 20
	rolePointsInfluencer    = 10
	industryPointsMatch     = 20
	industryPointsAdjacent  = 10
	completenessPoints      = 10

	// MaxRuleScore is the highest total the rule engine can award.
	MaxRuleScore = rolePointsDecisionMaker + industryPointsMatch + completenessPoints
)

var (
	decisionMakerMarkers = []string{"ceo", "cto", "cfo", "coo", "president", "vp", "vice president", "director", "head of"}
	influencerMarkers    = []string{"manager", "lead", "senior", "principal", "architect"}
)

//go:embed adjacency.yaml
var adjacencyYAML []byte

var adjacentIndustries = sync.OnceValue(func() map[string][]string {
	table, err := parseAdjacency(adjacencyYAML)
	if err != nil {
		panic(fmt.Sprintf("scoring: embedded adjacency table: %v", err))
	}
	return table
})

func parseAdjacency(data []byte) (map[string][]string, error) {
	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}

// RuleBreakdown holds the points awarded by each rule component.
type RuleBreakdown struct {
	Role         int `json:"role"`
	Industry     int `json:"industry"`
	Completeness int `json:"completeness"`
}

// RuleScore is the deterministic part of a lead score.
type RuleScore struct {
	Total     int           `json:"total"`
	Breakdown RuleBreakdown `json:"breakdown"`
	// Details has one line per evaluated component in computation order.
	Details []string `json:"details"`
}

// ScoreRules rates role seniority, industry fit and data completeness of a
// lead. It is pure and never fails; a nil lead scores zero.
func ScoreRules(lead *leads.Lead, offer *leads.Offer) *RuleScore {
	result := &RuleScore{Details: make([]string, 0, 3)}
	if lead == nil {
		return result
	}

	var useCases []string
	if offer != nil {
		useCases = offer.IdealUseCases
	}

	var detail string
	result.Breakdown.Role, detail = roleScore(lead.Role)
	result.Details = append(result.Details, detail)

	if industry := strings.TrimSpace(lead.Industry); industry != "" {
		result.Breakdown.Industry, detail = industryScore(industry, useCases)
		result.Details = append(result.Details, detail)
	}

	result.Breakdown.Completeness, detail = completenessScore(lead)
	result.Details = append(result.Details, detail)

	result.Total = result.Breakdown.Role + result.Breakdown.Industry + result.Breakdown.Completeness
	return result
}

func roleScore(role string) (int, string) {
	role = strings.ToLower(role)

	switch {
	case containsAny(role, decisionMakerMarkers):
		return rolePointsDecisionMaker, "Decision maker role (+20 points)"
	case containsAny(role, influencerMarkers):
		return rolePointsInfluencer, "Influencer role (+10 points)"
	default:
		return 0, "Standard role (+0 points)"
	}
}

func industryScore(industry string, useCases []string) (int, string) {
	industry = strings.ToLower(industry)
	table := adjacentIndustries()

	for _, useCase := range useCases {
		useCase = strings.ToLower(strings.TrimSpace(useCase))
		if useCase == "" {
			continue
		}
		if strings.Contains(industry, useCase) || strings.Contains(useCase, industry) {
			return industryPointsMatch, "Perfect industry match (+20 points)"
		}
	}

	for _, useCase := range useCases {
		if containsAny(industry, table[strings.ToLower(useCase)]) {
			return industryPointsAdjacent, "Adjacent industry (+10 points)"
		}
	}

	return 0, "Industry mismatch (+0 points)"
}

func completenessScore(lead *leads.Lead) (int, string) {
	fields := []string{lead.Name, lead.Role, lead.Company, lead.Industry, lead.Location, lead.Bio}

	filled := 0
	for _, value := range fields {
		if strings.TrimSpace(value) != "" {
			filled++
		}
	}

	points := int(math.Round(float64(filled) / float64(len(fields)) * completenessPoints))
	return points, fmt.Sprintf("Data completeness: %d/%d fields (+%d points)", filled, len(fields), points)
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
