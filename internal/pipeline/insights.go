package pipeline

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/jsonx"
	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

const (
	insightsTemperature = 0.3
	insightsMaxTokens   = 4000

	// insightsTextLimit caps how much raw order text goes into the
	// analysis prompt.
	insightsTextLimit = 1000

	// complianceThreshold is the match confidence at which a line item
	// counts as technically compliant.
	complianceThreshold = 0.75

	defaultWinProbability = 65
)

// DefaultInsights is the fallback analysis returned whenever generation
// or parsing fails. Consumers always get a fully populated value.
func DefaultInsights() model.Insights {
	return model.Insights{
		WinProbabilityPct: defaultWinProbability,
		ConfidenceLevel:   "Medium",
		RiskLevel:         "Medium",
		Risks: []model.Risk{
			{
				Type:        "commercial",
				Description: "Short delivery timeline",
				Severity:    "medium",
				Mitigation:  "Pre-book inventory",
			},
		},
		Competitors: []string{"Philips", "Prestige", "Havells"},
		Strengths:   []string{"Pricing", "Supply Chain", "Product Variety"},
		Recommendations: []string{
			"Highlight premium product benefits",
			"Offer competitive warranty terms",
			"Bundle complementary products",
		},
	}
}

// InsightsStage estimates win probability and deal risks.
type InsightsStage struct {
	gen *genai.Client
}

func NewInsightsStage(gen *genai.Client) *InsightsStage {
	return &InsightsStage{gen: gen}
}

// Run analyzes the deal. Any failure yields DefaultInsights; a parsed
// result is normalized so every field is populated and the win
// probability sits in [1, 100].
func (s *InsightsStage) Run(ctx context.Context, rawText string, intake model.IntakeResult, matches []model.SKUMatch, pricing model.Pricing) StageResult[model.Insights] {
	compliance := matchCompliance(matches)
	zap.L().Info("pipeline: insights started",
		zap.Float64("deal_value", pricing.Summary.GrandTotal),
		zap.Float64("compliance_pct", compliance),
	)

	excerpt := rawText
	if len(excerpt) > insightsTextLimit {
		excerpt = excerpt[:insightsTextLimit]
	}

	prompt := fmt.Sprintf(`Analyze this FMCG supply deal and calculate win probability.

Client: %s, Location: %s, Deadline: %s
Line items: %d
Deal value: %.0f with %.0f%% margin
Catalog compliance: %.2f%% of items matched with high confidence
Order text: %s

Calculate win probability (0-100) based on:
- Named client with clear specifications: +10
- Large order value: +10
- High catalog compliance (>75%%): +10
- Tight deadline: -10 (fulfilment risk)
- High margin (>20%%): -10 (price risk)
- Competitive margin (10-15%%): +10
- Base: 50

Return ONLY this JSON structure:
{
    "win_probability_pct": 75,
    "confidence_level": "High",
    "risk_level": "Medium",
    "risks": [{"type": "commercial", "description": "Short delivery timeline", "severity": "medium", "mitigation": "Pre-book inventory"}],
    "competitors": ["Philips", "Prestige", "Havells"],
    "strengths": ["Pricing", "Supply Chain", "Product Variety"],
    "recommendations": ["rec 1", "rec 2"]
}`,
		intake.ClientName, intake.Location, intake.Deadline,
		len(intake.LineItems),
		pricing.Summary.GrandTotal, pricing.Summary.OverallMarginPct,
		compliance,
		excerpt,
	)

	text, err := s.gen.Generate(ctx, prompt, insightsSystemPrompt,
		genai.WithTemperature(insightsTemperature),
		genai.WithMaxTokens(insightsMaxTokens),
	)
	if err != nil {
		return failedWith(DefaultInsights(), err)
	}

	var result model.Insights
	if err := jsonx.ExtractInto(text, &result); err != nil {
		return failedWith(DefaultInsights(), err)
	}

	normalizeInsights(&result)
	zap.L().Info("pipeline: insights complete",
		zap.Float64("win_probability", result.WinProbabilityPct),
	)
	return succeeded(result)
}

// matchCompliance is the share of matches at or above the confidence
// threshold, as a percentage rounded to two decimals.
func matchCompliance(matches []model.SKUMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	var compliant int
	for _, m := range matches {
		if m.Confidence >= complianceThreshold {
			compliant++
		}
	}
	return math.Round(10000*float64(compliant)/float64(len(matches))) / 100
}

// normalizeInsights clamps the win probability and back-fills missing
// fields from the defaults.
func normalizeInsights(in *model.Insights) {
	def := DefaultInsights()

	if in.WinProbabilityPct < 1 || in.WinProbabilityPct > 100 {
		zap.L().Warn("pipeline: invalid win probability, using default",
			zap.Float64("got", in.WinProbabilityPct),
		)
		in.WinProbabilityPct = def.WinProbabilityPct
	}
	if in.ConfidenceLevel == "" {
		in.ConfidenceLevel = def.ConfidenceLevel
	}
	if in.RiskLevel == "" {
		in.RiskLevel = def.RiskLevel
	}
	if len(in.Risks) == 0 {
		in.Risks = def.Risks
	}
	if len(in.Competitors) == 0 {
		in.Competitors = def.Competitors
	}
	if len(in.Strengths) == 0 {
		in.Strengths = def.Strengths
	}
	if len(in.Recommendations) == 0 {
		in.Recommendations = def.Recommendations
	}
}
