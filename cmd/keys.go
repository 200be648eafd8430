package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meridian-fmcg/rfp-cli/internal/keypool"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show configured API credentials (redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := cfg.GenAI.ResolveKeys()
		if len(keys) == 0 {
			fmt.Println("no API credentials configured")
			fmt.Println("set RFP_GENAI_KEY_1..9, RFP_GENAI_KEYS, or RFP_GENAI_KEY")
			return nil
		}

		fmt.Printf("%d credential(s) configured:\n", len(keys))
		for i, k := range keys {
			fmt.Printf("  %d. %s\n", i+1, keypool.Mask(k))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
