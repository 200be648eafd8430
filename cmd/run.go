package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/model"
)

var (
	runFile   string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a single order document end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := env.runner(nil)
		state, err := r.RunFile(ctx, runFile)
		if err != nil {
			return eris.Wrap(err, "read order file")
		}

		outDir := runOutput
		if outDir == "" {
			outDir = cfg.Output.Dir
		}
		if err := writeArtifacts(outDir, state); err != nil {
			return err
		}

		zap.L().Info("order processed",
			zap.String("rfp_id", state.RFPID),
			zap.String("client", state.Intake.ClientName),
			zap.Float64("grand_total", state.Pricing.Summary.GrandTotal),
			zap.Int("errors", len(state.Errors)),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

// writeArtifacts persists per-stage outputs under <dir>/<rfp_id>/.
func writeArtifacts(dir string, state *model.PipelineState) error {
	runDir := filepath.Join(dir, state.RFPID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return eris.Wrapf(err, "create output dir %s", runDir)
	}

	files := map[string]any{
		"rfp_data.json":    state.Intake,
		"sku_matches.json": state.Matches,
		"pricing.json":     state.Pricing,
		"insights.json":    state.Insights,
	}
	for name, data := range files {
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return eris.Wrapf(err, "marshal %s", name)
		}
		if err := os.WriteFile(filepath.Join(runDir, name), raw, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", name)
		}
	}

	if err := os.WriteFile(filepath.Join(runDir, "proposal.md"), []byte(state.Proposal), 0o644); err != nil {
		return eris.Wrap(err, "write proposal.md")
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runFile, "file", "", "order document path (txt or pdf, required)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output directory (default from config)")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}
