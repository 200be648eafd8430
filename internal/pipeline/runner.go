package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/model"
	"github.com/meridian-fmcg/rfp-cli/internal/reader"
)

// ProgressFunc observes orchestration progress. Percent is monotonically
// non-decreasing within a run.
type ProgressFunc func(stage string, percent int)

// Runner drives a full order through every stage in sequence. Stage
// failures are recorded on the state and the run always continues with
// that stage's fallback value.
type Runner struct {
	reader   *reader.Reader
	intake   *IntakeStage
	match    *MatchStage
	pricing  *PricingStage
	insights *InsightsStage
	proposal *ProposalStage
	progress ProgressFunc
	now      func() time.Time
}

// NewRunner assembles the orchestrator. progress may be nil.
func NewRunner(
	rd *reader.Reader,
	intake *IntakeStage,
	match *MatchStage,
	pricing *PricingStage,
	insights *InsightsStage,
	proposal *ProposalStage,
	progress ProgressFunc,
) *Runner {
	return &Runner{
		reader:   rd,
		intake:   intake,
		match:    match,
		pricing:  pricing,
		insights: insights,
		proposal: proposal,
		progress: progress,
		now:      time.Now,
	}
}

func (r *Runner) report(stage string, percent int) {
	if r.progress != nil {
		r.progress(stage, percent)
	}
	zap.L().Info("pipeline: progress", zap.String("stage", stage), zap.Int("percent", percent))
}

// RunFile reads the document at path and processes it. Reading is the
// only step that aborts the run; everything after it degrades instead.
func (r *Runner) RunFile(ctx context.Context, path string) (*model.PipelineState, error) {
	r.report("Order received", 5)
	r.report("Parsing order text", 20)

	rawText, err := r.reader.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, rawText), nil
}

// Run processes raw order text through all five stages.
func (r *Runner) Run(ctx context.Context, rawText string) *model.PipelineState {
	state := &model.PipelineState{
		RFPID:   newOrderID(r.now()),
		RawText: rawText,
		Status:  model.StatusReceived,
	}
	zap.L().Info("pipeline: run started", zap.String("rfp_id", state.RFPID))

	r.report("Extracting requirements", 40)
	intake := r.intake.Run(ctx, rawText)
	state.Intake = intake.Value
	recordStage(state, "intake", intake.Failed, intake.Err,
		model.StatusIntakeComplete, model.StatusIntakeFailed)

	r.report("Matching SKUs", 65)
	matches := r.match.Run(ctx, state.Intake.LineItems)
	state.Matches = matches.Value
	recordStage(state, "sku matching", matches.Failed, matches.Err,
		model.StatusSKUMatchingComplete, model.StatusSKUMatchingFailed)

	r.report("Pricing calculation", 80)
	pricing := r.pricing.Run(ctx, state.Matches, state.Intake.LineItems)
	state.Pricing = pricing.Value
	recordStage(state, "pricing", pricing.Failed, pricing.Err,
		model.StatusPricingComplete, model.StatusPricingFailed)

	r.report("Analyzing market", 85)
	insights := r.insights.Run(ctx, rawText, state.Intake, state.Matches, state.Pricing)
	state.Insights = insights.Value
	recordStage(state, "insights", insights.Failed, insights.Err,
		model.StatusInsightsComplete, model.StatusInsightsFailed)

	r.report("Generating proposal", 95)
	proposal := r.proposal.Run(ctx, state.Intake, state.Pricing, state.Insights)
	state.Proposal = proposal.Value
	recordStage(state, "proposal", proposal.Failed, proposal.Err,
		model.StatusProposalComplete, model.StatusProposalFailed)

	state.Status = model.StatusDone
	r.report("Complete", 100)
	zap.L().Info("pipeline: run complete",
		zap.String("rfp_id", state.RFPID),
		zap.Int("errors", len(state.Errors)),
	)
	return state
}

// recordStage updates status and appends the stage error, if any.
func recordStage(state *model.PipelineState, name string, failed bool, err error, okStatus, failStatus model.RunStatus) {
	if !failed {
		state.Status = okStatus
		return
	}
	state.Status = failStatus
	msg := fmt.Sprintf("%s error", name)
	if err != nil {
		msg = fmt.Sprintf("%s error: %v", name, err)
	}
	state.Errors = append(state.Errors, msg)
	zap.L().Error("pipeline: stage failed", zap.String("stage", name), zap.Error(err))
}

// newOrderID builds a human-sortable order identifier.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("ORDER_%s_%s",
		now.Format("20060102_150405"),
		uuid.NewString()[:8],
	)
}
