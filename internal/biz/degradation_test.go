package biz

import (
	"context"
	"os"
	"testing"

	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDegradation(t *testing.T) *DegradationUseCase {
	t.Helper()
	return NewDegradationUseCase(log.NewStdLogger(os.Stdout))
}

const sampleReceipt = `REMA 1000 Grünerløkka
Org nr: 883 409 442
Tlf: 22 33 44 55

Melk Tine 1L        25,90
Brød Grovt          32,50
Ost Norvegia        91,90

Totalt: 150,30 kr
Betalt med BankAxept
Dato: 15.08.2026
`

func TestFallbackAnalysis_Receipt(t *testing.T) {
	uc := newTestDegradation(t)

	result := uc.ProvideFallbackAnalysis(context.Background(), sampleReceipt, model.OperationReceipt)

	assert.Equal(t, model.FallbackProviderName, result.Provider)
	assert.True(t, result.Degraded)
	assert.Less(t, result.Confidence, 0.7)
	assert.GreaterOrEqual(t, result.Confidence, degradedBaseConfidence)
	assert.NotEmpty(t, result.Warnings)

	assert.Equal(t, "REMA 1000", result.Data["merchant_name"])
	assert.InDelta(t, 150.30, result.Data["total_amount"], 0.001)
	assert.Equal(t, "883409442", result.Data["org_number"])
	assert.Equal(t, "card", result.Data["payment_method"])
	assert.Equal(t, "15.08.2026", result.Data["date"])

	items, ok := result.Data["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 3)
}

func TestFallbackAnalysis_ReceiptWithoutSignals(t *testing.T) {
	uc := newTestDegradation(t)

	result := uc.ProvideFallbackAnalysis(context.Background(), "nothing useful here", model.OperationReceipt)

	// Structurally valid even with nothing extracted.
	assert.Equal(t, "nothing useful here", result.Data["merchant_name"])
	assert.Equal(t, 0.0, result.Data["total_amount"])
	assert.InDelta(t, degradedBaseConfidence, result.Confidence, 0.001)
}

func TestFallbackAnalysis_ReceiptIsValidatable(t *testing.T) {
	uc := newTestDegradation(t)
	validator := newTestValidator(t)

	result := uc.ProvideFallbackAnalysis(context.Background(), sampleReceipt, model.OperationReceipt)

	validation := validator.ValidateOutput(result.Data, model.OperationReceipt)
	assert.True(t, validation.IsValid, "degraded results must pass structural validation: %v", validation.Errors)
}

func TestFallbackAnalysis_DocumentInvoice(t *testing.T) {
	uc := newTestDegradation(t)

	content := `Faktura nr 2026-118
Betalingsfrist: 2026-09-15
Kontakt: post@leverandor.no

Beløp til betaling for konsulenttjenester levert i august.
`
	result := uc.ProvideFallbackAnalysis(context.Background(), content, model.OperationDocument)

	assert.Equal(t, model.FallbackProviderName, result.Provider)
	assert.Equal(t, "Faktura nr 2026-118", result.Data["title"])
	assert.Equal(t, "invoice", result.Data["classification"])
	assert.NotEmpty(t, result.Data["summary"])

	entities, ok := result.Data["entities"].(map[string]any)
	require.True(t, ok)
	emails, ok := entities["emails"].([]any)
	require.True(t, ok)
	assert.Contains(t, emails, "post@leverandor.no")
}

func TestFallbackAnalysis_DocumentDefaultsToOther(t *testing.T) {
	uc := newTestDegradation(t)

	result := uc.ProvideFallbackAnalysis(context.Background(), "Helt vanlig tekst uten signaler", model.OperationDocument)
	assert.Equal(t, "other", result.Data["classification"])
}

func TestFallbackAnalysis_ConfidenceNeverExceedsCap(t *testing.T) {
	uc := newTestDegradation(t)

	// A receipt with every signal present still stays at the cap.
	result := uc.ProvideFallbackAnalysis(context.Background(), sampleReceipt, model.OperationReceipt)
	assert.LessOrEqual(t, result.Confidence, degradedMaxConfidence)
}

func TestSummarize(t *testing.T) {
	short := summarize("Kort tekst.")
	assert.Equal(t, "Kort tekst.", short)

	long := summarize(string(make([]byte, 0)) + "ord " + repeatWord("lang", 100))
	assert.LessOrEqual(t, len(long), 204)
	assert.Contains(t, long, "...")
}

func repeatWord(word string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += word + " "
	}
	return out
}
