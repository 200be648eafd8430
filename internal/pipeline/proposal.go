package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

const fallbackClientName = "Valued Client"

// ProposalStage drafts the client-facing proposal markdown.
type ProposalStage struct {
	gen *genai.Client
	now func() time.Time
}

func NewProposalStage(gen *genai.Client) *ProposalStage {
	return &ProposalStage{gen: gen, now: time.Now}
}

// Run generates the proposal document. Generation runs at temperature 0;
// any failure falls back to a deterministic minimal quote so the client
// always receives something signable.
func (s *ProposalStage) Run(ctx context.Context, intake model.IntakeResult, pricing model.Pricing, insights model.Insights) StageResult[string] {
	clientName := intake.ClientName
	if clientName == "" {
		clientName = fallbackClientName
	}
	zap.L().Info("pipeline: proposal started", zap.String("client", clientName))

	var table strings.Builder
	for _, row := range pricing.Table {
		fmt.Fprintf(&table, "- SKU: %s | Name: %s | Qty: %d | Line Total: %s\n",
			row.SKUCode, row.SKUName, row.Qty, formatINR(row.LineTotal))
	}

	prompt := fmt.Sprintf(`Generate a professional FMCG sales proposal / quote.

CLIENT: %s
LOCATION: %s
DEADLINE: %s
TOTAL VALUE: %s
WIN PROBABILITY: %.0f%%
KEY STRENGTHS: %s

PRICED ITEMS:
%s
Use the proposal structure from the system prompt.`,
		clientName, intake.Location, intake.Deadline,
		formatINR(pricing.Summary.GrandTotal),
		insights.WinProbabilityPct,
		strings.Join(insights.Strengths, ", "),
		table.String(),
	)

	text, err := s.gen.Generate(ctx, prompt, proposalSystemPrompt, genai.WithTemperature(0))
	if err != nil {
		return failedWith(s.fallback(clientName, pricing), err)
	}

	content := stripCodeFence(strings.TrimSpace(text))
	if content == "" {
		return failedWith(s.fallback(clientName, pricing), nil)
	}

	zap.L().Info("pipeline: proposal complete", zap.Int("chars", len(content)))
	return succeeded(content)
}

// fallback produces a minimal deterministic quote.
func (s *ProposalStage) fallback(clientName string, pricing model.Pricing) string {
	return fmt.Sprintf(`# Sales Quote

**Client:** %s
**Date:** %s

## Commercial Summary
**Total Order Value:** %s

Thank you for your business. Please confirm this order for processing.
`,
		clientName,
		s.now().Format("2006-01-02"),
		formatINR(pricing.Summary.GrandTotal),
	)
}

// stripCodeFence unwraps output the model fenced in triple backticks,
// dropping a leading language tag line if present.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	parts := strings.SplitN(content, "```", 3)
	if len(parts) < 3 {
		return content
	}
	inner := parts[1]
	if lines := strings.SplitN(inner, "\n", 2); len(lines) == 2 && isWord(strings.TrimSpace(lines[0])) {
		inner = lines[1]
	}
	return strings.TrimSpace(inner)
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var inrPrinter = message.NewPrinter(language.English)

// formatINR renders an amount as rupees with grouped digits.
func formatINR(v float64) string {
	return inrPrinter.Sprintf("₹%v",
		number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
