// Package leads holds the offer and lead records scored by leadscore together
// with their validation and CSV ingestion.
package leads

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/spigell/leadscore/internal/utils"
)

const (
	maxOfferNameLen = 100
	maxOfferItems   = 10
	maxOfferItemLen = 200
	maxLeadFieldLen = 100
	maxBioLen       = 1000
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("validation failed")

// Offer is the product leads are qualified against.
type Offer struct {
	ID               string    `json:"id" yaml:"id"`
	Name             string    `json:"name" yaml:"name"`
	ValueProps       []string  `json:"value_props" yaml:"value_props"`
	IdealUseCases    []string  `json:"ideal_use_cases" yaml:"ideal_use_cases"`
	TargetIndustries []string  `json:"target_industries,omitempty" yaml:"target_industries,omitempty"`
	CompanySize      string    `json:"company_size,omitempty" yaml:"company_size,omitempty"`
	DecisionMakers   []string  `json:"decision_makers,omitempty" yaml:"decision_makers,omitempty"`
	CreatedAt        time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"-"`
}

// Lead is a prospect uploaded in a batch.
type Lead struct {
	ID        string    `json:"id"`
	UploadID  string    `json:"uploadId"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Company   string    `json:"company"`
	Industry  string    `json:"industry,omitempty"`
	Location  string    `json:"location,omitempty"`
	Bio       string    `json:"linkedin_bio,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeadInput is an unvalidated lead as it arrives from a CSV row.
type LeadInput struct {
	Name     string `mapstructure:"name"`
	Role     string `mapstructure:"role"`
	Company  string `mapstructure:"company"`
	Industry string `mapstructure:"industry"`
	Location string `mapstructure:"location"`
	Bio      string `mapstructure:"linkedin_bio"`
}

// Validate checks offer limits: a name and 1..10 value propositions and ideal
// use cases, each non-empty and at most 200 characters.
func (o *Offer) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: offer is required", ErrInvalid)
	}

	name := strings.TrimSpace(o.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if utf8.RuneCountInString(name) > maxOfferNameLen {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalid, maxOfferNameLen)
	}

	if err := validateList("value_props", o.ValueProps); err != nil {
		return err
	}

	return validateList("ideal_use_cases", o.IdealUseCases)
}

// Sanitize strips markup from the free-text fields used in prompts.
func (o *Offer) Sanitize() {
	o.Name = utils.SanitizeText(o.Name)
	o.ValueProps = sanitizeAll(o.ValueProps)
	o.IdealUseCases = sanitizeAll(o.IdealUseCases)
}

// NewOffer validates and sanitizes o and stamps it with a fresh identifier.
func NewOffer(o Offer, now time.Time) (*Offer, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	o.Sanitize()
	o.ID = uuid.NewString()
	o.CreatedAt = now
	o.UpdatedAt = now

	return &o, nil
}

// Validate enforces lead field limits.
func (in *LeadInput) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"name", in.Name},
		{"role", in.Role},
		{"company", in.Company},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalid, field.name)
		}
		if utf8.RuneCountInString(field.value) > maxLeadFieldLen {
			return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalid, field.name, maxLeadFieldLen)
		}
	}

	if utf8.RuneCountInString(in.Bio) > maxBioLen {
		return fmt.Errorf("%w: linkedin_bio must be at most %d characters", ErrInvalid, maxBioLen)
	}

	return nil
}

// ToLead converts a validated input into a lead of the given upload batch.
func (in *LeadInput) ToLead(uploadID string, now time.Time) *Lead {
	return &Lead{
		ID:        uuid.NewString(),
		UploadID:  uploadID,
		Name:      in.Name,
		Role:      in.Role,
		Company:   in.Company,
		Industry:  in.Industry,
		Location:  in.Location,
		Bio:       in.Bio,
		CreatedAt: now,
	}
}

func validateList(field string, items []string) error {
	if len(items) == 0 || len(items) > maxOfferItems {
		return fmt.Errorf("%w: %s must contain between 1 and %d items", ErrInvalid, field, maxOfferItems)
	}

	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%w: %s[%d] must not be empty", ErrInvalid, field, i)
		}
		if utf8.RuneCountInString(item) > maxOfferItemLen {
			return fmt.Errorf("%w: %s[%d] must be at most %d characters", ErrInvalid, field, i, maxOfferItemLen)
		}
	}

	return nil
}

func sanitizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, utils.SanitizeText(item))
	}
	return out
}
