package biz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// totalTolerance is the rounding tolerance for cross-field amount
	// consistency checks.
	totalTolerance = 0.5

	// taxRateTolerance is the tolerance for recognizing a tax rate.
	taxRateTolerance = 0.5
)

// knownTaxRates are the recognized Norwegian VAT rates (plus the
// food-rate legacy value 11.11 seen in older receipts).
var knownTaxRates = []float64{0, 11.11, 12, 15, 25}

// placeholderMarkers flag suspicious boilerplate in text fields.
var placeholderMarkers = []string{
	"lorem ipsum",
	"placeholder",
	"example merchant",
	"test merchant",
	"sample text",
	"xxx",
}

// requiredFields lists the top-level fields each operation type must
// carry for the schema phase.
var requiredFields = map[model.OperationType][]string{
	model.OperationReceipt:  {"merchant_name", "total_amount"},
	model.OperationDocument: {"title", "classification"},
}

// dateLayouts are the accepted input date formats, normalized to ISO
// during sanitization.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	time.RFC3339,
}

// ValidatorUseCase validates and sanitizes analysis output uniformly,
// regardless of which provider or fallback path produced it. Three
// ordered phases short-circuit on the first hard failure: schema,
// business rules, data quality. A final sanitization pass normalizes
// the data. The result is always returned, never thrown.
type ValidatorUseCase struct {
	logger *log.Helper
}

// NewValidatorUseCase creates the output validator.
func NewValidatorUseCase(logger log.Logger) *ValidatorUseCase {
	return &ValidatorUseCase{logger: log.NewHelper(logger)}
}

// ValidateOutput runs the three validation phases and sanitization.
// Errors block the result (IsValid=false); warnings pass through.
func (uc *ValidatorUseCase) ValidateOutput(input map[string]any, opType model.OperationType) *model.ValidationResult {
	result := &model.ValidationResult{
		Data:     copyMap(input),
		Metadata: map[string]any{"operation_type": string(opType)},
	}

	if input == nil {
		result.Errors = append(result.Errors, "output data is missing")
		result.Metadata["phase"] = "schema"
		return result
	}

	// Phase 1: schema presence
	if errs := uc.checkSchema(result.Data, opType); len(errs) > 0 {
		result.Errors = errs
		result.Metadata["phase"] = "schema"
		return result
	}

	// Phase 2: business rules
	errs, warns := uc.checkBusinessRules(result.Data, opType)
	result.Warnings = append(result.Warnings, warns...)
	if len(errs) > 0 {
		result.Errors = errs
		result.Metadata["phase"] = "business"
		return result
	}

	// Phase 3: data quality
	qErrs, qWarns := uc.checkQuality(result.Data, opType)
	result.Errors = append(result.Errors, qErrs...)
	result.Warnings = append(result.Warnings, qWarns...)
	result.Metadata["phase"] = "quality"

	if len(result.Errors) > 0 {
		return result
	}

	uc.sanitize(result.Data, opType)
	result.IsValid = true
	result.Metadata["phase"] = "sanitized"

	return result
}

// checkSchema verifies that required top-level fields exist.
func (uc *ValidatorUseCase) checkSchema(data map[string]any, opType model.OperationType) []string {
	var errs []string
	for _, field := range requiredFields[opType] {
		if _, ok := data[field]; !ok {
			errs = append(errs, fmt.Sprintf("missing required field: %s", field))
		}
	}
	return errs
}

// checkBusinessRules applies type-specific required field rules and
// numeric range checks.
func (uc *ValidatorUseCase) checkBusinessRules(data map[string]any, opType model.OperationType) (errs, warns []string) {
	switch opType {
	case model.OperationReceipt:
		total, ok := toFloat(data["total_amount"])
		if !ok {
			errs = append(errs, "total_amount must be a number")
		} else if total < 0 {
			errs = append(errs, "total_amount must not be negative")
		}

		if name, ok := data["merchant_name"].(string); !ok || strings.TrimSpace(name) == "" {
			errs = append(errs, "merchant_name must be a non-empty string")
		}

		if raw, ok := data["date"].(string); ok && raw != "" {
			if _, ok := parseDate(raw); !ok {
				warns = append(warns, fmt.Sprintf("unrecognized date format: %s", raw))
			}
		}

		if items, ok := data["items"].([]any); ok {
			for i, item := range items {
				entry, ok := item.(map[string]any)
				if !ok {
					warns = append(warns, fmt.Sprintf("item %d is not an object", i))
					continue
				}
				if _, ok := toFloat(entry["amount"]); !ok {
					warns = append(warns, fmt.Sprintf("item %d is missing a numeric amount", i))
				}
			}
		}

	case model.OperationDocument:
		if title, ok := data["title"].(string); !ok || strings.TrimSpace(title) == "" {
			errs = append(errs, "title must be a non-empty string")
		}
		if class, ok := data["classification"].(string); !ok || strings.TrimSpace(class) == "" {
			errs = append(errs, "classification must be a non-empty string")
		}
	}

	return errs, warns
}

// checkQuality applies cross-field consistency heuristics. A line-item
// sum that disagrees with the declared total beyond the tolerance is a
// hard error; the remaining heuristics only warn.
func (uc *ValidatorUseCase) checkQuality(data map[string]any, opType model.OperationType) (errs, warns []string) {
	if opType == model.OperationReceipt {
		if mismatch, sum, total := itemSumMismatch(data); mismatch {
			errs = append(errs, fmt.Sprintf(
				"calculation_mismatch: item sum %.2f differs from declared total %.2f", sum, total))
		}

		if rate, ok := toFloat(data["tax_rate"]); ok && !recognizedTaxRate(rate) {
			warns = append(warns, fmt.Sprintf("unrecognized tax rate: %.2f", rate))
		}

		if raw, ok := data["date"].(string); ok && raw != "" {
			if parsed, ok := parseDate(raw); ok && !plausibleDate(parsed) {
				warns = append(warns, fmt.Sprintf("implausible date: %s", raw))
			}
		}
	}

	for _, field := range []string{"merchant_name", "title", "summary"} {
		if text, ok := data[field].(string); ok && containsPlaceholder(text) {
			warns = append(warns, fmt.Sprintf("suspicious placeholder text in %s", field))
		}
	}

	return errs, warns
}

// sanitize normalizes numeric rounding, date formats, whitespace, and
// deduplicates array fields in place. It is idempotent: sanitizing
// already-sanitized data changes nothing.
func (uc *ValidatorUseCase) sanitize(data map[string]any, opType model.OperationType) {
	for _, field := range []string{"total_amount", "tax_amount", "tax_rate", "confidence"} {
		if v, ok := toFloat(data[field]); ok {
			data[field] = round2(v)
		}
	}

	for _, field := range []string{"merchant_name", "title", "summary", "classification"} {
		if text, ok := data[field].(string); ok {
			data[field] = strings.TrimSpace(text)
		}
	}

	if raw, ok := data["date"].(string); ok && raw != "" {
		if parsed, ok := parseDate(raw); ok {
			data["date"] = parsed.Format("2006-01-02")
		}
	}

	if items, ok := data["items"].([]any); ok {
		for _, item := range items {
			if entry, ok := item.(map[string]any); ok {
				if v, ok := toFloat(entry["amount"]); ok {
					entry["amount"] = round2(v)
				}
				if desc, ok := entry["description"].(string); ok {
					entry["description"] = strings.TrimSpace(desc)
				}
			}
		}
	}

	if tags, ok := data["tags"].([]any); ok {
		data["tags"] = dedupeStrings(tags)
	}
}

// itemSumMismatch reports whether the summed line items disagree with
// the declared total beyond the rounding tolerance.
func itemSumMismatch(data map[string]any) (bool, float64, float64) {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		return false, 0, 0
	}
	total, ok := toFloat(data["total_amount"])
	if !ok {
		return false, 0, 0
	}

	sum := 0.0
	counted := 0
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if amount, ok := toFloat(entry["amount"]); ok {
			sum += amount
			counted++
		}
	}
	if counted == 0 {
		return false, 0, 0
	}

	return math.Abs(sum-total) > totalTolerance, sum, total
}

// recognizedTaxRate reports whether the rate is within tolerance of a
// known VAT rate.
func recognizedTaxRate(rate float64) bool {
	for _, known := range knownTaxRates {
		if math.Abs(rate-known) <= taxRateTolerance {
			return true
		}
	}
	return false
}

// plausibleDate accepts dates from 2000 up to one day in the future.
func plausibleDate(t time.Time) bool {
	return t.Year() >= 2000 && t.Before(time.Now().Add(24*time.Hour))
}

// containsPlaceholder reports whether the text carries boilerplate
// placeholder markers.
func containsPlaceholder(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseDate tries the accepted layouts in order.
func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toFloat coerces the numeric representations JSON decoding and the
// degradation extractor produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", "."), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dedupeStrings removes duplicate string entries preserving order.
func dedupeStrings(values []any) []any {
	seen := make(map[string]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			out = append(out, v)
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// copyMap makes a shallow-plus-one-level copy so sanitization never
// mutates the caller's map.
func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch typed := v.(type) {
		case map[string]any:
			out[k] = copyMap(typed)
		case []any:
			list := make([]any, len(typed))
			for i, item := range typed {
				if m, ok := item.(map[string]any); ok {
					list[i] = copyMap(m)
				} else {
					list[i] = item
				}
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}
