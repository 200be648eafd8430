package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/batch"
	"github.com/meridian-fmcg/rfp-cli/internal/catalog"
	"github.com/meridian-fmcg/rfp-cli/internal/jsonx"
	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

const candidatesPerItem = 3

// MatchStage links extracted line items to catalog SKUs. Candidate SKUs
// come from the local similarity index; the model only chooses among
// them.
type MatchStage struct {
	gen       *genai.Client
	search    catalog.Searcher
	batchSize int
}

func NewMatchStage(gen *genai.Client, search catalog.Searcher, batchSize int) *MatchStage {
	if batchSize <= 0 {
		batchSize = batch.DefaultSize
	}
	return &MatchStage{gen: gen, search: search, batchSize: batchSize}
}

// Run matches all line items in concurrent batches. A batch that errors
// contributes no matches; items the model skips are dropped silently.
// The stage fails only when items exist but no batch produced anything.
func (s *MatchStage) Run(ctx context.Context, items []model.LineItem) StageResult[[]model.SKUMatch] {
	if len(items) == 0 {
		zap.L().Warn("pipeline: no line items to match")
		return succeeded[[]model.SKUMatch](nil)
	}
	zap.L().Info("pipeline: sku matching started", zap.Int("items", len(items)))

	quantities := make(map[string]int, len(items))
	descriptions := make(map[string]string, len(items))
	for _, item := range items {
		quantities[item.ID] = item.Quantity
		descriptions[item.ID] = item.Description
	}

	matches := batch.Run(ctx, items, s.batchSize, s.matchBatch)

	for i := range matches {
		m := &matches[i]
		if m.Reason == "" {
			m.Reason = fmt.Sprintf("Catalog analysis: closest match for %q", descriptions[m.LineItemID])
		}
		if m.OriginalDesc == "" {
			m.OriginalDesc = descriptions[m.LineItemID]
		}
		if m.Quantity == 0 {
			m.Quantity = quantities[m.LineItemID]
		}
	}

	zap.L().Info("pipeline: sku matching complete",
		zap.Int("matched", len(matches)),
		zap.Int("items", len(items)),
	)
	if len(matches) == 0 {
		return failedWith[[]model.SKUMatch](nil, eris.New("pipeline: all match batches failed"))
	}
	return succeeded(matches)
}

// matchBatch resolves one batch of items with a single generation call.
func (s *MatchStage) matchBatch(ctx context.Context, items []model.LineItem) ([]model.SKUMatch, error) {
	var sb strings.Builder
	sb.WriteString("MATCH THE FOLLOWING ITEMS:\n\n")

	for _, item := range items {
		query := strings.TrimSpace(item.ItemName + " " + item.Description)
		cands, err := s.search.Search(ctx, query, candidatesPerItem, "")
		if err != nil {
			zap.L().Warn("pipeline: candidate search failed",
				zap.String("item_id", item.ID),
				zap.Error(err),
			)
		}

		fmt.Fprintf(&sb, "ITEM ID: %s\nDESC: %s\nCANDIDATES:\n", item.ID, item.Description)
		for _, c := range cands {
			fmt.Fprintf(&sb, "   - %s: %s (%s)\n", c.ID, c.Name, c.Specs)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`For each ITEM ID above, select the best matching candidate.
Return JSON: { "matches": [ { "line_item_id": "...", "matched_sku_code": "..." } ] }`)

	text, err := s.gen.Generate(ctx, sb.String(), skuMatchSystemPrompt)
	if err != nil {
		return nil, err
	}
	return decodeMatches(text)
}

// decodeMatches accepts the documented wrapper object, a bare array, or a
// single match object.
func decodeMatches(text string) ([]model.SKUMatch, error) {
	raw, err := jsonx.Extract(text)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Matches []model.SKUMatch `json:"matches"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Matches != nil {
		return wrapper.Matches, nil
	}

	var arr []model.SKUMatch
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var single model.SKUMatch
	if err := json.Unmarshal(raw, &single); err == nil && single.LineItemID != "" {
		return []model.SKUMatch{single}, nil
	}

	return nil, eris.New("pipeline: unrecognized match payload shape")
}
