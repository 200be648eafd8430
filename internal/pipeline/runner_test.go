package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fmcg/rfp-cli/internal/catalog"
	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/internal/reader"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

// scriptedBackend answers per stage, keyed off the system prompt.
func scriptedBackend(req genai.Request) (string, error) {
	switch {
	case req.System == intakeSystemPrompt:
		return `{
			"client_name": "MegaMart",
			"location": "Pune",
			"line_items": [{"id": "1", "description": "50 cases Dove shampoo", "quantity": 50, "unit": "cases"}],
			"is_relevant": true
		}`, nil
	case req.System == skuMatchSystemPrompt:
		return `{"matches": [{"line_item_id": "1", "matched_sku_code": "SKU001", "matched_sku_name": "Dove Intense Repair 340ml", "confidence": 0.9}]}`, nil
	case strings.Contains(req.System, "FMCG Pricing Agent"):
		return `[{"sku_code": "SKU001", "sku_name": "Dove Intense Repair 340ml", "qty": 50, "unit_price_base": 300, "net_unit_price": 300, "line_total_price": 15000}]`, nil
	case req.System == insightsSystemPrompt:
		return `{"win_probability_pct": 70, "confidence_level": "High"}`, nil
	case req.System == proposalSystemPrompt:
		return "# MegaMart Proposal\n\nbody", nil
	default:
		return "", eris.Errorf("unexpected system prompt: %.40s", req.System)
	}
}

func newTestRunner(t *testing.T, gen *genai.Client, progress ProgressFunc) *Runner {
	t.Helper()
	search := fakeSearcher{cands: []catalog.Candidate{
		{SKU: catalog.SKU{ID: "SKU001", Name: "Dove Intense Repair 340ml"}, Similarity: 0.9},
	}}
	return NewRunner(
		reader.New(""),
		NewIntakeStage(gen),
		NewMatchStage(gen, search, 10),
		NewPricingStage(gen, DefaultRules(), 10),
		NewInsightsStage(gen),
		NewProposalStage(gen),
		progress,
	)
}

func TestRunnerHappyPath(t *testing.T) {
	gen := testGen(t, scriptedBackend)

	var stages []string
	var percents []int
	r := newTestRunner(t, gen, func(stage string, percent int) {
		stages = append(stages, stage)
		percents = append(percents, percent)
	})

	state := r.Run(context.Background(), "50 cases Dove shampoo for MegaMart Pune")

	assert.True(t, strings.HasPrefix(state.RFPID, "ORDER_"))
	assert.Equal(t, model.StatusDone, state.Status)
	assert.Empty(t, state.Errors)

	assert.Equal(t, "MegaMart", state.Intake.ClientName)
	require.Len(t, state.Matches, 1)
	assert.Equal(t, "SKU001", state.Matches[0].MatchedSKUCode)
	assert.Equal(t, 50, state.Matches[0].Quantity)

	require.Len(t, state.Pricing.Table, 1)
	assert.InDelta(t, 15000, state.Pricing.Summary.Subtotal, 1e-6)
	assert.InDelta(t, 17700, state.Pricing.Summary.GrandTotal, 1e-6)

	assert.InDelta(t, 70, state.Insights.WinProbabilityPct, 1e-9)
	assert.Contains(t, state.Proposal, "# MegaMart Proposal")

	// Progress is monotonic and ends at 100.
	assert.Equal(t, []int{40, 65, 80, 85, 95, 100}, percents)
	assert.Equal(t, "Complete", stages[len(stages)-1])
}

func TestRunnerContinuesWhenEverythingFails(t *testing.T) {
	gen := testGen(t, func(genai.Request) (string, error) {
		return "", eris.New("total outage")
	})

	r := newTestRunner(t, gen, nil)
	state := r.Run(context.Background(), "some order text")

	// The run still finished. Intake, insights, and proposal record
	// their failures; matching and pricing see zero inputs and succeed
	// with empty output.
	assert.Equal(t, model.StatusDone, state.Status)
	assert.Len(t, state.Errors, 3)

	assert.Empty(t, state.Intake.LineItems)
	assert.Empty(t, state.Matches)
	assert.Empty(t, state.Pricing.Table)
	assert.Equal(t, DefaultInsights(), state.Insights)
	assert.Contains(t, state.Proposal, "# Sales Quote")
}

func TestRunnerPartialFailure(t *testing.T) {
	gen := testGen(t, func(req genai.Request) (string, error) {
		if req.System == skuMatchSystemPrompt {
			return "", eris.New("matching model unavailable")
		}
		return scriptedBackend(req)
	})

	r := newTestRunner(t, gen, nil)
	state := r.Run(context.Background(), "50 cases Dove shampoo")

	assert.Equal(t, model.StatusDone, state.Status)
	require.Len(t, state.Errors, 1)
	assert.Contains(t, state.Errors[0], "sku matching error")

	// Pricing fell back to PENDING stand-ins built from the line items.
	assert.Empty(t, state.Matches)
	require.NotEmpty(t, state.Pricing.Table)
}

func TestRunnerRunFile(t *testing.T) {
	gen := testGen(t, scriptedBackend)

	var percents []int
	r := newTestRunner(t, gen, func(_ string, percent int) {
		percents = append(percents, percent)
	})

	path := filepath.Join(t.TempDir(), "order.txt")
	require.NoError(t, os.WriteFile(path, []byte("50 cases Dove shampoo"), 0o644))

	state, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, state.Status)
	assert.Equal(t, []int{5, 20, 40, 65, 80, 85, 95, 100}, percents)
}

func TestRunnerRunFileMissing(t *testing.T) {
	gen := testGen(t, scriptedBackend)
	r := newTestRunner(t, gen, nil)

	_, err := r.RunFile(context.Background(), "/nonexistent/order.txt")
	require.Error(t, err)
}
