package leads

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/leadscore/internal/utils"
)

const (
	MaxCSVSize = 10 * 1024 * 1024
	MaxCSVRows = 10000
)

// InvalidRow describes a CSV record rejected during parsing.
type InvalidRow struct {
	Row   int               `json:"row"`
	Data  map[string]string `json:"data"`
	Error string            `json:"error"`
}

// ParseResult splits parsed CSV records into valid and rejected ones.
type ParseResult struct {
	Valid   []*LeadInput
	Invalid []InvalidRow
}

// ValidateCSVFile rejects uploads above the size or line limits.
func ValidateCSVFile(size int64, content string) error {
	if size > MaxCSVSize {
		return fmt.Errorf("%w: file size exceeds 10MB limit", ErrInvalid)
	}

	if lines := strings.Count(content, "\n") + 1; lines > MaxCSVRows {
		return fmt.Errorf("%w: CSV exceeds %d rows limit", ErrInvalid, MaxCSVRows)
	}

	return nil
}

// ParseCSV reads a lead CSV with a header row. Every record is sanitized and
// validated on its own, so one bad row never rejects the whole file.
func ParseCSV(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: CSV is empty", ErrInvalid)
		}
		return nil, fmt.Errorf("CSV parsing failed: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = normalizeColumn(name)
	}

	result := &ParseResult{}
	// header is line 1
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++

		if err != nil {
			result.Invalid = append(result.Invalid, InvalidRow{Row: row, Error: err.Error()})
			continue
		}

		data := recordToMap(columns, record)
		if isBlank(data) {
			continue
		}

		input, err := decodeLead(data)
		if err != nil {
			result.Invalid = append(result.Invalid, InvalidRow{Row: row, Data: data, Error: err.Error()})
			continue
		}

		result.Valid = append(result.Valid, input)
	}

	return result, nil
}

func decodeLead(data map[string]string) (*LeadInput, error) {
	sanitized := make(map[string]any, len(data))
	for key, value := range data {
		sanitized[key] = utils.SanitizeText(value)
	}

	var input LeadInput
	if err := mapstructure.Decode(sanitized, &input); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	return &input, nil
}

func recordToMap(columns, record []string) map[string]string {
	data := make(map[string]string, len(columns))
	for i, column := range columns {
		if column == "" || i >= len(record) {
			continue
		}
		data[column] = strings.TrimSpace(record[i])
	}
	return data
}

func isBlank(data map[string]string) bool {
	for _, value := range data {
		if value != "" {
			return false
		}
	}
	return true
}

// normalizeColumn maps header variants such as "LinkedIn Bio" onto the
// mapstructure keys of LeadInput.
func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	if name == "bio" {
		return "linkedin_bio"
	}
	return name
}
