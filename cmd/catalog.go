package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/catalog"
)

var (
	catalogFile     string
	catalogQuery    string
	catalogTopK     int
	catalogCategory string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the SKU catalog index",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a SKU catalog file (csv or xlsx) into the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		skus, err := catalog.Load(catalogFile)
		if err != nil {
			return err
		}

		st, err := catalog.NewStore(cfg.Catalog.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate catalog")
		}
		if err := st.Index(ctx, skus); err != nil {
			return err
		}

		total, err := st.Count(ctx)
		if err != nil {
			return err
		}
		categories, err := st.Categories(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("catalog loaded",
			zap.String("file", catalogFile),
			zap.Int("loaded", len(skus)),
			zap.Int("total", total),
			zap.Strings("categories", categories),
		)
		return nil
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the catalog index for similar SKUs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := catalog.NewStore(cfg.Catalog.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		results, err := st.Search(ctx, catalogQuery, catalogTopK, catalogCategory)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	catalogLoadCmd.Flags().StringVar(&catalogFile, "file", "", "catalog file path (required)")
	_ = catalogLoadCmd.MarkFlagRequired("file")

	catalogSearchCmd.Flags().StringVar(&catalogQuery, "query", "", "search text (required)")
	catalogSearchCmd.Flags().IntVar(&catalogTopK, "top", 3, "number of results")
	catalogSearchCmd.Flags().StringVar(&catalogCategory, "category", "", "restrict to a category")
	_ = catalogSearchCmd.MarkFlagRequired("query")

	catalogCmd.AddCommand(catalogLoadCmd, catalogSearchCmd)
	rootCmd.AddCommand(catalogCmd)
}
