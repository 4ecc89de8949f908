package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi"
	"github.com/mitool/mi/internal/config"
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ingest mined claims and edges",
}

var mineApplyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply mined claims and edges from a JSON file",
	Long: `Apply reads a mined-output JSON document ({"claims": [...],
"edges": [...]}) and writes the surviving records. Claims below the
confidence floor, without a valid evidence citation, or duplicating an
existing claim's content are skipped; duplicates link to the existing
claim instead of writing. Use "-" to read from stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading mined output: %v\n", err)
			os.Exit(1)
		}

		var output mi.MinedOutput
		if err := json.Unmarshal(data, &output); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing mined output: %v\n", err)
			os.Exit(1)
		}

		events, _ := cmd.Flags().GetStringSlice("event")
		allowed := map[string]struct{}{}
		for _, id := range events {
			allowed[id] = struct{}{}
		}

		minConfidence := config.GetFloat64("mining.min_confidence")
		if cmd.Flags().Changed("min-confidence") {
			minConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
		}
		maxClaims := config.GetInt("mining.max_claims")
		if cmd.Flags().Changed("max-claims") {
			maxClaims, _ = cmd.Flags().GetInt("max-claims")
		}

		res, err := store.ApplyMinedOutput(output, allowed, minConfidence, maxClaims)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(res)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Applied mined output: %d written, %d linked, %d edges, %d skipped\n",
			green("✓"), len(res.Written), len(res.LinkedExisting), len(res.WrittenEdges), len(res.Skipped))
		for _, sk := range res.Skipped {
			fmt.Printf("  skipped %s (%s): %s\n", sk.Kind, sk.Reason, sk.Detail)
		}
	},
}

func init() {
	mineApplyCmd.Flags().StringSlice("event", nil, "Allowed evidence event id (repeatable)")
	mineApplyCmd.Flags().Float64("min-confidence", config.DefaultMinConfidence, "Confidence floor for mined records")
	mineApplyCmd.Flags().Int("max-claims", config.DefaultMaxClaims, "Maximum claims written per batch")
	mineCmd.AddCommand(mineApplyCmd)
	rootCmd.AddCommand(mineCmd)
}
