package biz

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// Confidence bounds for pattern-based extraction. AI-backed results
// score >= 0.85; degraded results stay visibly below that so callers
// can branch on it.
const (
	degradedBaseConfidence = 0.3
	degradedMaxConfidence  = 0.6
)

// knownMerchantChains are recognizable Norwegian retail chains used
// for merchant name extraction.
var knownMerchantChains = []string{
	"REMA 1000",
	"KIWI",
	"MENY",
	"COOP EXTRA",
	"COOP PRIX",
	"COOP MEGA",
	"BUNNPRIS",
	"JOKER",
	"SPAR",
	"EUROPRIS",
	"IKEA",
	"CLAS OHLSON",
	"BILTEMA",
}

// Receipt extraction patterns.
var (
	totalPattern = regexp.MustCompile(`(?i)(?:totalt|total|sum|å betale|beløp)\s*[:=]?\s*(?:kr\.?\s*)?(\d+(?:[.,]\d{1,2})?)\s*(?:kr|nok|,-)?`)
	orgNrPattern = regexp.MustCompile(`(?i)org\.?\s*(?:nr\.?|nummer)?\s*[:=]?\s*(?:no\s*)?(\d{3}\s?\d{3}\s?\d{3})`)
	phonePattern = regexp.MustCompile(`(?:\+47\s?)?\b\d{2}\s?\d{2}\s?\d{2}\s?\d{2}\b`)
	datePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{2}[./-]\d{2}[./-]\d{4})\b`)
	itemPattern  = regexp.MustCompile(`(?m)^\s*(\S.{2,40}?)\s{2,}(\d+[.,]\d{2})\s*$`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// paymentMethods maps keyword to normalized payment method value.
var paymentMethods = map[string]string{
	"vipps":      "vipps",
	"bankaxept":  "card",
	"visa":       "card",
	"mastercard": "card",
	"kort":       "card",
	"kontant":    "cash",
	"cash":       "cash",
}

// documentKeywordBuckets classifies documents by keyword presence.
// Checked in order; the first bucket with a hit wins.
var documentKeywordBuckets = []struct {
	classification string
	keywords       []string
}{
	{"invoice", []string{"faktura", "invoice", "forfallsdato", "betalingsfrist", "kid"}},
	{"receipt", []string{"kvittering", "receipt", "totalt"}},
	{"contract", []string{"kontrakt", "avtale", "agreement", "parter"}},
	{"report", []string{"rapport", "report", "årsrapport", "analyse"}},
	{"letter", []string{"brev", "dear", "kjære", "hilsen"}},
}

// DegradationUseCase is the non-AI last line of defense: regex and
// keyword pattern extraction used only when every provider in a chain
// is exhausted. It always returns a structurally valid result with an
// explicit low-confidence marker, never an error.
type DegradationUseCase struct {
	logger *log.Helper
}

// NewDegradationUseCase creates the degradation fallback analyzer.
func NewDegradationUseCase(logger log.Logger) *DegradationUseCase {
	return &DegradationUseCase{logger: log.NewHelper(logger)}
}

// ProvideFallbackAnalysis extracts what it can from raw content using
// pattern tables and returns a result shaped like a normal provider
// response, with provider "fallback" and confidence well below the AI
// threshold.
func (uc *DegradationUseCase) ProvideFallbackAnalysis(_ context.Context, content string, opType model.OperationType) *model.AnalysisResult {
	var data map[string]any
	var confidence float64

	switch opType {
	case model.OperationDocument:
		data, confidence = uc.extractDocument(content)
	default:
		data, confidence = uc.extractReceipt(content)
	}

	uc.logger.Warnw("degraded pattern-based analysis produced",
		"type", "degraded",
		"operation", string(opType),
		"confidence", confidence)

	return &model.AnalysisResult{
		Data:          data,
		Provider:      model.FallbackProviderName,
		OperationType: opType,
		Confidence:    confidence,
		Degraded:      true,
		Warnings:      []string{"result produced by pattern-based fallback, not AI analysis"},
		AnalyzedAt:    time.Now(),
	}
}

// extractReceipt applies the receipt heuristics: merchant name,
// organization number, phone, total, date, payment method, item lines.
// Each strong signal found raises confidence toward the cap.
func (uc *DegradationUseCase) extractReceipt(content string) (map[string]any, float64) {
	data := map[string]any{
		"merchant_name": "Unknown Merchant",
		"total_amount":  0.0,
	}
	confidence := degradedBaseConfidence

	if merchant, known := extractMerchant(content); merchant != "" {
		data["merchant_name"] = merchant
		if known {
			confidence += 0.1
		}
	}

	if m := totalPattern.FindStringSubmatch(content); m != nil {
		if total, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			data["total_amount"] = total
			confidence += 0.1
		}
	}

	if m := orgNrPattern.FindStringSubmatch(content); m != nil {
		data["org_number"] = strings.ReplaceAll(m[1], " ", "")
	}

	if m := phonePattern.FindString(content); m != "" {
		data["phone"] = strings.TrimSpace(m)
	}

	if m := datePattern.FindStringSubmatch(content); m != nil {
		data["date"] = m[1]
		confidence += 0.1
	}

	lower := strings.ToLower(content)
	for keyword, method := range paymentMethods {
		if strings.Contains(lower, keyword) {
			data["payment_method"] = method
			break
		}
	}

	if items := extractItems(content); len(items) > 0 {
		data["items"] = items
	}

	if confidence > degradedMaxConfidence {
		confidence = degradedMaxConfidence
	}
	return data, confidence
}

// extractMerchant returns the merchant name: a known chain anywhere in
// the text wins, otherwise the first non-empty line.
func extractMerchant(content string) (string, bool) {
	upper := strings.ToUpper(content)
	for _, chain := range knownMerchantChains {
		if strings.Contains(upper, chain) {
			return chain, true
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 60 {
				line = line[:60]
			}
			return line, false
		}
	}
	return "", false
}

// extractItems parses "description  amount" formatted lines.
func extractItems(content string) []any {
	matches := itemPattern.FindAllStringSubmatch(content, -1)
	items := make([]any, 0, len(matches))
	for _, m := range matches {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
		if err != nil {
			continue
		}
		items = append(items, map[string]any{
			"description": strings.TrimSpace(m[1]),
			"amount":      amount,
		})
	}
	return items
}

// extractDocument applies the document heuristics: first-line title,
// keyword bucket classification, leading-text summary, frequency-based
// tags, and simple entity extraction.
func (uc *DegradationUseCase) extractDocument(content string) (map[string]any, float64) {
	confidence := degradedBaseConfidence

	title := "Untitled Document"
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			if len(line) > 100 {
				line = line[:100]
			}
			title = line
			confidence += 0.1
			break
		}
	}

	classification := "other"
	lower := strings.ToLower(content)
	for _, bucket := range documentKeywordBuckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lower, keyword) {
				classification = bucket.classification
				confidence += 0.1
				break
			}
		}
		if classification != "other" {
			break
		}
	}

	data := map[string]any{
		"title":          title,
		"classification": classification,
		"summary":        summarize(content),
		"tags":           topKeywords(lower, 5),
	}

	entities := map[string]any{}
	if emails := emailPattern.FindAllString(content, 3); len(emails) > 0 {
		entities["emails"] = toAnySlice(emails)
	}
	if m := orgNrPattern.FindStringSubmatch(content); m != nil {
		entities["org_number"] = strings.ReplaceAll(m[1], " ", "")
	}
	if dates := datePattern.FindAllString(content, 3); len(dates) > 0 {
		entities["dates"] = toAnySlice(dates)
	}
	if len(entities) > 0 {
		data["entities"] = entities
	}

	if confidence > degradedMaxConfidence {
		confidence = degradedMaxConfidence
	}
	return data, confidence
}

// summarize returns the leading text up to 200 characters, cut at a
// word boundary.
func summarize(content string) string {
	text := strings.Join(strings.Fields(content), " ")
	if len(text) <= 200 {
		return text
	}
	cut := strings.LastIndex(text[:200], " ")
	if cut <= 0 {
		cut = 200
	}
	return text[:cut] + "..."
}

// topKeywords returns the most frequent words longer than five
// characters, alphabetical among equal counts for determinism.
func topKeywords(lower string, n int) []any {
	counts := map[string]int{}
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != 'æ' && r != 'ø' && r != 'å'
	}) {
		if len([]rune(word)) > 5 {
			counts[word]++
		}
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return toAnySlice(words)
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
