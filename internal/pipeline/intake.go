package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/jsonx"
	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/pkg/genai"
)

const intakeTemperature = 0.1

// IntakeStage extracts structured order data from raw document text.
type IntakeStage struct {
	gen *genai.Client
}

func NewIntakeStage(gen *genai.Client) *IntakeStage {
	return &IntakeStage{gen: gen}
}

// Run parses rawText into an IntakeResult. On failure the fallback is an
// empty result with no line items, which the rest of the pipeline can
// still carry forward.
func (s *IntakeStage) Run(ctx context.Context, rawText string) StageResult[model.IntakeResult] {
	zap.L().Info("pipeline: intake started", zap.Int("chars", len(rawText)))

	prompt := fmt.Sprintf(`Process this FMCG order text / RFP:

INPUT:
%s

Extract the data according to the system prompt.`, rawText)

	text, err := s.gen.Generate(ctx, prompt, intakeSystemPrompt, genai.WithTemperature(intakeTemperature))
	if err != nil {
		return failedWith(model.IntakeResult{}, err)
	}

	var result model.IntakeResult
	if err := jsonx.ExtractInto(text, &result); err != nil {
		return failedWith(model.IntakeResult{}, err)
	}

	// Line items are referenced by ID in later stages; assign positional
	// IDs where the model left them blank.
	for i := range result.LineItems {
		if result.LineItems[i].ID == "" {
			result.LineItems[i].ID = strconv.Itoa(i + 1)
		}
	}

	zap.L().Info("pipeline: intake complete",
		zap.String("client", result.ClientName),
		zap.Int("line_items", len(result.LineItems)),
	)
	return succeeded(result)
}
