package leads

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOffer() Offer {
	return Offer{
		Name:          "AI Outreach Automation",
		ValueProps:    []string{"24/7 outreach", "6x more meetings"},
		IdealUseCases: []string{"B2B SaaS mid-market"},
	}
}

func TestOfferValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(o *Offer)
		wantErr string
	}{
		{name: "valid", mutate: func(*Offer) {}},
		{name: "missing name", mutate: func(o *Offer) { o.Name = "  " }, wantErr: "name is required"},
		{name: "no value props", mutate: func(o *Offer) { o.ValueProps = nil }, wantErr: "value_props must contain"},
		{name: "too many use cases", mutate: func(o *Offer) { o.IdealUseCases = make([]string, 11) }, wantErr: "ideal_use_cases must contain"},
		{name: "empty use case", mutate: func(o *Offer) { o.IdealUseCases = []string{""} }, wantErr: "ideal_use_cases[0] must not be empty"},
		{name: "long value prop", mutate: func(o *Offer) { o.ValueProps = []string{strings.Repeat("x", 201)} }, wantErr: "at most 200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			offer := validOffer()
			tt.mutate(&offer)

			err := offer.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewOfferSanitizesAndStamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := validOffer()
	in.Name = "<b>AI Outreach</b>"

	offer, err := NewOffer(in, now)
	require.NoError(t, err)

	assert.NotEmpty(t, offer.ID)
	assert.Equal(t, "AI Outreach", offer.Name)
	assert.Equal(t, now, offer.CreatedAt)
	assert.Equal(t, now, offer.UpdatedAt)
}

func TestLeadInputValidate(t *testing.T) {
	t.Parallel()

	valid := LeadInput{Name: "Ava Patel", Role: "Head of Growth", Company: "FlowMetrics"}
	require.NoError(t, valid.Validate())

	missingRole := valid
	missingRole.Role = ""
	assert.ErrorContains(t, missingRole.Validate(), "role is required")

	longBio := valid
	longBio.Bio = strings.Repeat("b", 1001)
	assert.ErrorContains(t, longBio.Validate(), "linkedin_bio")
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	content := "name,role,company,industry,location,LinkedIn Bio\n" +
		"Ava Patel,Head of Growth,FlowMetrics,SaaS,San Francisco,Scaling outbound\n" +
		"\n" +
		",Engineer,NoName Inc,,,\n" +
		"Ben Ito,<script>x</script>CTO,Acme,Software,,\n"

	result, err := ParseCSV(strings.NewReader(content))
	require.NoError(t, err)

	require.Len(t, result.Valid, 2)
	assert.Equal(t, "Ava Patel", result.Valid[0].Name)
	assert.Equal(t, "Scaling outbound", result.Valid[0].Bio)
	assert.Equal(t, "CTO", result.Valid[1].Role)

	require.Len(t, result.Invalid, 1)
	assert.Equal(t, 3, result.Invalid[0].Row)
	assert.Contains(t, result.Invalid[0].Error, "name is required")
}

func TestParseCSVEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidateCSVFile(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateCSVFile(10, "a\nb"))
	require.ErrorIs(t, ValidateCSVFile(MaxCSVSize+1, ""), ErrInvalid)
	require.ErrorIs(t, ValidateCSVFile(10, strings.Repeat("\n", MaxCSVRows)), ErrInvalid)
}
