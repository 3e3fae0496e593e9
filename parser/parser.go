package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aluiziolira/petroleum-report/models"
)

// RecordError reports a record that is missing a required field.
type RecordError struct {
	Index int
	Field string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: missing %s", e.Index, e.Field)
}

type rawRecord struct {
	Country *string  `json:"country"`
	Year    *int     `json:"year"`
	Product *string  `json:"petroleum_product"`
	Sale    *float64 `json:"sale"`
}

// DecodeRecords parses a JSON array of sale records.
// Every record must carry country, year and petroleum_product. A null or
// absent sale decodes as NaN, meaning not reported.
func DecodeRecords(body []byte) ([]models.Record, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var raw []rawRecord
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]models.Record, 0, len(raw))
	for i, r := range raw {
		rec, err := r.record(i)
		if err != nil {
			return nil, err
		}
		if err := ValidateRecord(&rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r rawRecord) record(index int) (models.Record, error) {
	switch {
	case r.Country == nil:
		return models.Record{}, &RecordError{Index: index, Field: "country"}
	case r.Year == nil:
		return models.Record{}, &RecordError{Index: index, Field: "year"}
	case r.Product == nil:
		return models.Record{}, &RecordError{Index: index, Field: "petroleum_product"}
	}
	sale := math.NaN()
	if r.Sale != nil {
		sale = *r.Sale
	}
	return models.Record{
		Country: NormalizeName(*r.Country),
		Year:    *r.Year,
		Product: NormalizeName(*r.Product),
		Sale:    sale,
	}, nil
}

// ValidateRecord ensures the record names a country and a product.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Country) == "" {
		return fmt.Errorf("record missing country")
	}
	if strings.TrimSpace(r.Product) == "" {
		return fmt.Errorf("record missing petroleum product for %s", r.Country)
	}
	return nil
}

// NormalizeName trims surrounding whitespace from a country or product name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
