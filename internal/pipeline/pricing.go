package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/batch"
	"github.com/meridian-fmcg/rfp-cli/internal/jsonx"
	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

// pendingSKUCode marks stand-in rows priced without a catalog match.
const pendingSKUCode = "PENDING"

// defaultStandInQty is assumed when neither the match nor the line item
// carries a usable quantity.
const defaultStandInQty = 10

// PricingStage prices the matched SKU list in concurrent batches. Row
// values come from the model; all summary totals are recomputed locally
// and the model's own totals are discarded.
type PricingStage struct {
	gen       *genai.Client
	rules     Rules
	system    string
	batchSize int
}

func NewPricingStage(gen *genai.Client, rules Rules, batchSize int) *PricingStage {
	if batchSize <= 0 {
		batchSize = batch.DefaultSize
	}
	return &PricingStage{
		gen:       gen,
		rules:     rules,
		system:    pricingSystem(rules),
		batchSize: batchSize,
	}
}

// pricingSystem renders the commercial rules into the stage's system
// prompt so the model prices on the configured terms.
func pricingSystem(r Rules) string {
	var tiers strings.Builder
	for _, t := range r.VolumeDiscounts {
		fmt.Fprintf(&tiers, "   - qty > %d units: %s%% off\n", t.MinQty, formatPct(t.DiscountPct))
	}
	if len(r.VolumeDiscounts) == 0 {
		tiers.WriteString("   - none\n")
	}
	return fmt.Sprintf(pricingSystemPromptFmt,
		formatPct(r.DefaultMarginPct),
		SellPrice(100, r.DefaultMarginPct),
		tiers.String(),
	)
}

func formatPct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Run prices the matches. When no matches exist, stand-in rows are built
// from the raw line items so the client still receives an indicative
// quote. The stage fails only when inputs exist but no batch priced
// anything; the fallback is then an empty table with zero totals.
func (s *PricingStage) Run(ctx context.Context, matches []model.SKUMatch, items []model.LineItem) StageResult[model.Pricing] {
	if len(matches) == 0 && len(items) > 0 {
		zap.L().Warn("pipeline: no sku matches, pricing line items directly")
		matches = standIns(items)
	}
	if len(matches) == 0 {
		return succeeded(model.Pricing{Summary: s.summarize(nil)})
	}
	zap.L().Info("pipeline: pricing started", zap.Int("rows", len(matches)))

	rows := batch.Run(ctx, matches, s.batchSize, s.priceBatch)

	pricing := model.Pricing{Table: rows, Summary: s.summarize(rows)}
	zap.L().Info("pipeline: pricing complete",
		zap.Int("rows", len(rows)),
		zap.Float64("grand_total", pricing.Summary.GrandTotal),
	)
	if len(rows) == 0 {
		return failedWith(pricing, eris.New("pipeline: all pricing batches failed"))
	}
	return succeeded(pricing)
}

// standIns builds placeholder matches from unmatched line items.
func standIns(items []model.LineItem) []model.SKUMatch {
	out := make([]model.SKUMatch, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = defaultStandInQty
		}
		out = append(out, model.SKUMatch{
			LineItemID:     item.ID,
			OriginalDesc:   item.Description,
			MatchedSKUCode: pendingSKUCode,
			MatchedSKUName: item.Description,
			Quantity:       qty,
		})
	}
	return out
}

func (s *PricingStage) priceBatch(ctx context.Context, matches []model.SKUMatch) ([]model.PricingRow, error) {
	var sb strings.Builder
	for _, m := range matches {
		name := m.MatchedSKUName
		if name == "" {
			name = m.OriginalDesc
		}
		if name == "" {
			name = "Unknown"
		}
		code := m.MatchedSKUCode
		if code == "" {
			code = "N/A"
		}
		qty := m.Quantity
		if qty <= 0 {
			qty = defaultStandInQty
		}
		fmt.Fprintf(&sb, "- SKU: %s | Name: %s | Qty: %d | Tier discount: %s%%\n",
			code, name, qty, formatPct(s.rules.DiscountFor(qty)))
	}

	prompt := fmt.Sprintf(`INPUT BATCH:
%s
Calculate the invoice for these items using the PRICING LOGIC.
Return ONLY a JSON array of objects. Do not wrap in a "pricing_table" key.
Example:
[
  { "sku_name": "...", "qty": 10, "unit_price_base": 100, "net_unit_price": 95, "line_total_price": 950 }
]`, sb.String())

	text, err := s.gen.Generate(ctx, prompt, s.system)
	if err != nil {
		return nil, err
	}
	return decodePricingRows(text)
}

// decodePricingRows tolerates the shapes the model actually produces: a
// bare array, a "pricing_table" or "items" wrapper, any object whose
// first array-valued key holds the rows, or a single row object.
func decodePricingRows(text string) ([]model.PricingRow, error) {
	raw, err := jsonx.Extract(text)
	if err != nil {
		return nil, err
	}

	var rows []model.PricingRow
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode pricing payload")
	}

	for _, key := range []string{"pricing_table", "items"} {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, &rows); err == nil {
				return rows, nil
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := obj[k]; len(v) > 0 && v[0] == '[' {
			if err := json.Unmarshal(v, &rows); err == nil {
				return rows, nil
			}
		}
	}

	if _, ok := obj["sku_name"]; ok {
		var row model.PricingRow
		if err := json.Unmarshal(raw, &row); err == nil {
			return []model.PricingRow{row}, nil
		}
	}

	return nil, eris.New("pipeline: unrecognized pricing payload shape")
}

// summarize recomputes totals from the row line totals.
func (s *PricingStage) summarize(rows []model.PricingRow) model.PricingSummary {
	var subtotal float64
	for _, row := range rows {
		subtotal += row.LineTotal
	}
	tax := subtotal * s.rules.TaxRate
	return model.PricingSummary{
		Subtotal:         subtotal,
		TotalDiscount:    0,
		TaxAmount:        tax,
		GrandTotal:       subtotal + tax,
		OverallMarginPct: s.rules.DefaultMarginPct,
	}
}
