package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/leadscore/internal/leads"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"

	FieldLeadID    = "lead_id"
	FieldLeadName  = "lead_name"
	FieldCompany   = "lead_company"
	FieldUploadID  = "upload_id"
	FieldOfferID   = "offer_id"
	FieldOfferName = "offer_name"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// LeadFields identifies a lead in log entries. A nil lead yields no fields.
func LeadFields(lead *leads.Lead) []zap.Field {
	if lead == nil {
		return nil
	}

	return StringFields(
		StringField{Key: FieldLeadID, Value: lead.ID},
		StringField{Key: FieldLeadName, Value: lead.Name},
		StringField{Key: FieldCompany, Value: lead.Company},
		StringField{Key: FieldUploadID, Value: lead.UploadID},
	)
}

// OfferFields identifies an offer in log entries. A nil offer yields no fields.
func OfferFields(offer *leads.Offer) []zap.Field {
	if offer == nil {
		return nil
	}

	return StringFields(
		StringField{Key: FieldOfferID, Value: offer.ID},
		StringField{Key: FieldOfferName, Value: offer.Name},
	)
}
