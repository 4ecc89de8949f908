package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi/internal/config"
	"github.com/mitool/mi/internal/thoughtdb"
)

var expandCmd = &cobra.Command{
	Use:   "expand [seed-id...]",
	Short: "Expand seed records one hop along the edge graph",
	Long: `Expand takes seed claim/node ids and returns the records one
edge away in either direction, across both scopes, skipping inactive
records and deduplicating edges. Budgets bound how many new claims and
nodes are admitted.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asOf, _ := cmd.Flags().GetString("as-of")
		edgeTypeNames, _ := cmd.Flags().GetStringSlice("edge-type")

		maxClaims := config.GetInt("retrieval.max_new_claims")
		if cmd.Flags().Changed("max-claims") {
			maxClaims, _ = cmd.Flags().GetInt("max-claims")
		}
		maxNodes := config.GetInt("retrieval.max_new_nodes")
		if cmd.Flags().Changed("max-nodes") {
			maxNodes, _ = cmd.Flags().GetInt("max-nodes")
		}

		var edgeTypes map[thoughtdb.EdgeType]struct{}
		if len(edgeTypeNames) > 0 {
			edgeTypes = map[thoughtdb.EdgeType]struct{}{}
			for _, name := range edgeTypeNames {
				et := thoughtdb.EdgeType(name)
				if !thoughtdb.ValidEdgeType(et) {
					fmt.Fprintf(os.Stderr, "Error: invalid edge type %q\n", name)
					os.Exit(1)
				}
				edgeTypes[et] = struct{}{}
			}
		}

		vProj, err := store.LoadView(thoughtdb.ScopeProject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		vGlob, err := store.LoadView(thoughtdb.ScopeGlobal)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		seeds := map[string]struct{}{}
		for _, id := range args {
			seeds[id] = struct{}{}
		}

		exp := thoughtdb.ExpandOneHop(vProj, vGlob, seeds, asOf, maxClaims, maxNodes, edgeTypes)

		if jsonOutput {
			outputJSON(exp)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Expanded %d seeds: %d claims, %d nodes (%s)\n",
			green("✓"), len(seeds), len(exp.ClaimIDs), len(exp.NodeIDs), exp.Notes)
		for _, cid := range exp.ClaimIDs {
			fmt.Printf("  claim %s\n", cid)
		}
		for _, nid := range exp.NodeIDs {
			fmt.Printf("  node  %s\n", nid)
		}
	},
}

func init() {
	expandCmd.Flags().String("as-of", "", "Validity check time for claims (RFC3339)")
	expandCmd.Flags().StringSlice("edge-type", nil, "Edge type to follow (repeatable; default all)")
	expandCmd.Flags().Int("max-claims", config.DefaultMaxNewClaims, "Maximum new claims admitted")
	expandCmd.Flags().Int("max-nodes", config.DefaultMaxNewNodes, "Maximum new nodes admitted")
	rootCmd.AddCommand(expandCmd)
}
