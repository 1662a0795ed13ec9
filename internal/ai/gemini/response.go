package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"

	"github.com/spigell/leadscore/internal/ai"
	"github.com/spigell/leadscore/internal/utils"
)

const (
	maxReasoningRunes = 500
	maxKeyFactors     = 5
	maxKeyFactorRunes = 100
)

var (
	errMalformedResponse = errors.New("malformed gemini response")
	errInvalidResponse   = errors.New("invalid gemini response")
)

// responseDocument validates the decoded payload. Confidence may arrive as a
// numeric string, so its range is checked after coercion.
var responseDocument = map[string]any{
	"type":     "object",
	"required": []any{"intent", "confidence", "reasoning", "keyFactors"},
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []any{string(ai.IntentHigh), string(ai.IntentMedium), string(ai.IntentLow)},
		},
		"confidence": map[string]any{
			"type": []any{"number", "string"},
		},
		"reasoning": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
		"keyFactors": map[string]any{
			"type":     "array",
			"minItems": 1,
		},
	},
}

var compiledResponseDocument = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(responseDocument))
})

// responseSchema is sent to Gemini to constrain structured output.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent": {
				Type: genai.TypeString,
				Enum: []string{string(ai.IntentHigh), string(ai.IntentMedium), string(ai.IntentLow)},
			},
			"confidence": {
				Type:    genai.TypeNumber,
				Minimum: genai.Ptr(0.0),
				Maximum: genai.Ptr(1.0),
			},
			"reasoning": {Type: genai.TypeString},
			"keyFactors": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required:         []string{"intent", "confidence", "reasoning", "keyFactors"},
		PropertyOrdering: []string{"intent", "confidence", "reasoning", "keyFactors"},
	}
}

func parseResponse(raw string) (*ai.InferenceScore, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty payload", errMalformedResponse)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedResponse, err)
	}

	if err := validateDocument(data); err != nil {
		return nil, err
	}

	intent, ok := ai.ParseIntent(coerceString(data["intent"]))
	if !ok {
		return nil, fmt.Errorf("%w: invalid intent value", errInvalidResponse)
	}

	confidence := coerceFloat(data["confidence"])
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: invalid confidence value", errInvalidResponse)
	}

	reasoning := utils.Truncate(coerceString(data["reasoning"]), maxReasoningRunes, "")
	reasoning = utils.SanitizeText(reasoning)
	if reasoning == "" {
		return nil, fmt.Errorf("%w: invalid reasoning", errInvalidResponse)
	}

	factors, ok := data["keyFactors"].([]any)
	if !ok || len(factors) == 0 {
		return nil, fmt.Errorf("%w: invalid keyFactors", errInvalidResponse)
	}

	keyFactors := make([]string, 0, maxKeyFactors)
	for _, factor := range factors {
		if len(keyFactors) == maxKeyFactors {
			break
		}
		text := utils.SanitizeText(utils.Truncate(coerceString(factor), maxKeyFactorRunes, ""))
		if text == "" {
			continue
		}
		keyFactors = append(keyFactors, text)
	}
	if len(keyFactors) == 0 {
		return nil, fmt.Errorf("%w: no usable keyFactors", errInvalidResponse)
	}

	return ai.NewInferenceScore(intent, confidence, reasoning, keyFactors), nil
}

func validateDocument(data map[string]any) error {
	schema, err := compiledResponseDocument()
	if err != nil {
		return fmt.Errorf("compile response schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", errMalformedResponse, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("%w: %s", errInvalidResponse, strings.Join(details, "; "))
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
