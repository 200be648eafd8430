package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

func testMatches() []model.SKUMatch {
	return []model.SKUMatch{
		{LineItemID: "1", MatchedSKUCode: "SKU001", MatchedSKUName: "Dove Intense Repair 340ml", Quantity: 50},
		{LineItemID: "2", MatchedSKUCode: "SKU003", MatchedSKUName: "Surf Excel Matic 2kg", Quantity: 200},
	}
}

func TestPricingHappyPath(t *testing.T) {
	gen := testGen(t, func(req genai.Request) (string, error) {
		assert.Contains(t, req.Prompt, "SKU: SKU001 | Name: Dove Intense Repair 340ml | Qty: 50")
		return `[
			{"sku_code": "SKU001", "sku_name": "Dove Intense Repair 340ml", "qty": 50, "unit_price_base": 300, "discount_pct": 0, "net_unit_price": 300, "line_total_price": 15000},
			{"sku_code": "SKU003", "sku_name": "Surf Excel Matic 2kg", "qty": 200, "unit_price_base": 184, "discount_pct": 5, "net_unit_price": 175, "line_total_price": 35000}
		]`, nil
	})

	res := NewPricingStage(gen, DefaultRules(), 10).Run(context.Background(), testMatches(), nil)
	require.False(t, res.Failed)
	require.Len(t, res.Value.Table, 2)

	sum := res.Value.Summary
	assert.InDelta(t, 50000, sum.Subtotal, 1e-6)
	assert.InDelta(t, 9000, sum.TaxAmount, 1e-6)
	assert.InDelta(t, 59000, sum.GrandTotal, 1e-6)
	assert.InDelta(t, 20, sum.OverallMarginPct, 1e-6)
}

func TestPricingPromptRendersRules(t *testing.T) {
	rules := Rules{
		TaxRate:          0.12,
		DefaultMarginPct: 25,
		VolumeDiscounts:  []VolumeDiscount{{MinQty: 250, DiscountPct: 7.5}},
	}

	gen := testGen(t, func(req genai.Request) (string, error) {
		assert.Contains(t, req.System, "25% margin")
		assert.Contains(t, req.System, "sells at 133.33")
		assert.Contains(t, req.System, "qty > 250 units: 7.5% off")
		assert.NotContains(t, req.System, "qty > 100 units")
		assert.Contains(t, req.Prompt, "Qty: 300 | Tier discount: 7.5%")
		assert.Contains(t, req.Prompt, "Qty: 50 | Tier discount: 0%")
		return `[{"sku_name": "A", "qty": 300, "line_total_price": 100}]`, nil
	})

	matches := []model.SKUMatch{
		{LineItemID: "1", MatchedSKUCode: "S1", MatchedSKUName: "A", Quantity: 300},
		{LineItemID: "2", MatchedSKUCode: "S2", MatchedSKUName: "B", Quantity: 50},
	}
	res := NewPricingStage(gen, rules, 10).Run(context.Background(), matches, nil)
	require.False(t, res.Failed)
}

func TestPricingSummaryInvariant(t *testing.T) {
	gen := testGen(t, func(genai.Request) (string, error) {
		// Model totals are nonsense on purpose; summary must come from
		// the rows, not from here.
		return `{"pricing_table": [
			{"sku_name": "A", "qty": 10, "line_total_price": 1200.55},
			{"sku_name": "B", "qty": 3, "line_total_price": 99.45}
		], "summary": {"subtotal": 1, "grand_total": 2}}`, nil
	})

	res := NewPricingStage(gen, DefaultRules(), 10).Run(context.Background(), testMatches(), nil)
	require.False(t, res.Failed)

	sum := res.Value.Summary
	assert.InDelta(t, 1300.00, sum.Subtotal, 1e-6)
	assert.InDelta(t, sum.Subtotal+sum.TaxAmount, sum.GrandTotal, 1e-6)
}

func TestPricingStandInsForUnmatchedItems(t *testing.T) {
	var sawPrompt string
	gen := testGen(t, func(req genai.Request) (string, error) {
		sawPrompt = req.Prompt
		return `[{"sku_name": "Generic", "qty": 10, "line_total_price": 1000}]`, nil
	})

	items := []model.LineItem{
		{ID: "1", Description: "unbranded cooking oil", Quantity: 0},
	}
	res := NewPricingStage(gen, DefaultRules(), 10).Run(context.Background(), nil, items)
	require.False(t, res.Failed)
	// Unmatched items are priced as PENDING stand-ins with the default
	// quantity.
	assert.Contains(t, sawPrompt, "SKU: PENDING")
	assert.Contains(t, sawPrompt, "Qty: 10")
}

func TestPricingNoInputs(t *testing.T) {
	gen := testGen(t, func(genai.Request) (string, error) {
		t.Fatal("no generation expected")
		return "", nil
	})

	res := NewPricingStage(gen, DefaultRules(), 10).Run(context.Background(), nil, nil)
	assert.False(t, res.Failed)
	assert.Empty(t, res.Value.Table)
	assert.Zero(t, res.Value.Summary.GrandTotal)
}

func TestPricingAllBatchesFail(t *testing.T) {
	gen := testGen(t, func(genai.Request) (string, error) {
		return "", eris.New("no capacity")
	})

	res := NewPricingStage(gen, DefaultRules(), 10).Run(context.Background(), testMatches(), nil)
	assert.True(t, res.Failed)
	assert.Empty(t, res.Value.Table)
	assert.Zero(t, res.Value.Summary.GrandTotal)
}

func TestDecodePricingRowsShapes(t *testing.T) {
	cases := map[string]string{
		"bare array":    `[{"sku_name": "A", "line_total_price": 10}]`,
		"pricing_table": `{"pricing_table": [{"sku_name": "A", "line_total_price": 10}]}`,
		"items":         `{"items": [{"sku_name": "A", "line_total_price": 10}]}`,
		"other key":     `{"rows": [{"sku_name": "A", "line_total_price": 10}]}`,
		"single row":    `{"sku_name": "A", "line_total_price": 10}`,
	}
	for name, text := range cases {
		rows, err := decodePricingRows(text)
		require.NoError(t, err, name)
		require.Len(t, rows, 1, name)
		assert.Equal(t, "A", rows[0].SKUName, name)
	}
}

func TestDecodePricingRowsUnrecognized(t *testing.T) {
	_, err := decodePricingRows(`{"note": "no rows here"}`)
	require.Error(t, err)
}
