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

func TestInsightsHappyPath(t *testing.T) {
	gen := testGen(t, func(req genai.Request) (string, error) {
		assert.InDelta(t, insightsTemperature, req.Temperature, 1e-9)
		assert.Equal(t, int64(insightsMaxTokens), req.MaxTokens)
		return `{
			"win_probability_pct": 72,
			"confidence_level": "High",
			"risk_level": "Low",
			"risks": [{"type": "commercial", "description": "aggressive discount expectation", "severity": "low", "mitigation": "volume tiers"}],
			"competitors": ["P&G"],
			"strengths": ["Distribution"],
			"recommendations": ["bundle conditioners"]
		}`, nil
	})

	res := NewInsightsStage(gen).Run(context.Background(), "order text",
		model.IntakeResult{ClientName: "MegaMart"}, nil, model.Pricing{})
	require.False(t, res.Failed)
	assert.InDelta(t, 72, res.Value.WinProbabilityPct, 1e-9)
	assert.Equal(t, []string{"P&G"}, res.Value.Competitors)
}

func TestInsightsPromptCarriesMatchCompliance(t *testing.T) {
	matches := []model.SKUMatch{
		{LineItemID: "1", Confidence: 0.92},
		{LineItemID: "2", Confidence: 0.80},
		{LineItemID: "3", Confidence: 0.40},
	}

	gen := testGen(t, func(req genai.Request) (string, error) {
		assert.Contains(t, req.Prompt, "Catalog compliance: 66.67%")
		return `{"win_probability_pct": 60}`, nil
	})

	res := NewInsightsStage(gen).Run(context.Background(), "text",
		model.IntakeResult{}, matches, model.Pricing{})
	require.False(t, res.Failed)
}

func TestMatchCompliance(t *testing.T) {
	assert.Zero(t, matchCompliance(nil))
	assert.InDelta(t, 100, matchCompliance([]model.SKUMatch{{Confidence: 0.75}}), 1e-9)
	assert.InDelta(t, 50, matchCompliance([]model.SKUMatch{
		{Confidence: 0.9}, {Confidence: 0.74},
	}), 1e-9)
	assert.InDelta(t, 66.67, matchCompliance([]model.SKUMatch{
		{Confidence: 0.9}, {Confidence: 0.8}, {Confidence: 0.1},
	}), 1e-9)
}

func TestInsightsTruncatesLongOrderText(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}

	gen := testGen(t, func(req genai.Request) (string, error) {
		assert.Less(t, len(req.Prompt), 3000)
		return `{"win_probability_pct": 50}`, nil
	})

	res := NewInsightsStage(gen).Run(context.Background(), string(long), model.IntakeResult{}, nil, model.Pricing{})
	require.False(t, res.Failed)
}

func TestInsightsFallbackOnError(t *testing.T) {
	gen := testGen(t, func(genai.Request) (string, error) {
		return "", eris.New("backend down")
	})

	res := NewInsightsStage(gen).Run(context.Background(), "text", model.IntakeResult{}, nil, model.Pricing{})
	assert.True(t, res.Failed)
	assert.Equal(t, DefaultInsights(), res.Value)
}

func TestInsightsFallbackOnGarbage(t *testing.T) {
	gen := testGen(t, func(genai.Request) (string, error) {
		return "absolutely not json", nil
	})

	res := NewInsightsStage(gen).Run(context.Background(), "text", model.IntakeResult{}, nil, model.Pricing{})
	assert.True(t, res.Failed)
	assert.Equal(t, DefaultInsights(), res.Value)
}

func TestNormalizeInsightsClampsProbability(t *testing.T) {
	for _, bad := range []float64{0, -5, 101, 1000} {
		in := model.Insights{WinProbabilityPct: bad}
		normalizeInsights(&in)
		assert.InDelta(t, defaultWinProbability, in.WinProbabilityPct, 1e-9)
	}

	in := model.Insights{WinProbabilityPct: 88}
	normalizeInsights(&in)
	assert.InDelta(t, 88, in.WinProbabilityPct, 1e-9)
}

func TestNormalizeInsightsBackfillsFields(t *testing.T) {
	in := model.Insights{WinProbabilityPct: 70}
	normalizeInsights(&in)

	def := DefaultInsights()
	assert.Equal(t, def.ConfidenceLevel, in.ConfidenceLevel)
	assert.Equal(t, def.RiskLevel, in.RiskLevel)
	assert.Equal(t, def.Risks, in.Risks)
	assert.Equal(t, def.Competitors, in.Competitors)
	assert.Equal(t, def.Strengths, in.Strengths)
	assert.Equal(t, def.Recommendations, in.Recommendations)
}

func TestNormalizeInsightsKeepsProvidedFields(t *testing.T) {
	in := model.Insights{
		WinProbabilityPct: 40,
		ConfidenceLevel:   "Low",
		Competitors:       []string{"Dabur"},
	}
	normalizeInsights(&in)
	assert.Equal(t, "Low", in.ConfidenceLevel)
	assert.Equal(t, []string{"Dabur"}, in.Competitors)
}
