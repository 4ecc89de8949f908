package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi/internal/thoughtdb"
)

var showCmd = &cobra.Command{
	Use:   "show [id...]",
	Short: "Show claim or node details",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yamlOutput, _ := cmd.Flags().GetBool("yaml")
		scope := scopeFromFlag(cmd)

		v, err := store.LoadView(scope)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		allDetails := []any{}
		for idx, id := range args {
			canonical := v.ResolveID(id)

			if c, ok := v.ClaimsByID[canonical]; ok {
				details := claimDetails(v, c, id, canonical)
				if jsonOutput || yamlOutput {
					allDetails = append(allDetails, details)
					continue
				}
				if idx > 0 {
					fmt.Println("\n" + strings.Repeat("─", 60))
				}
				printClaim(v, c, id, canonical)
				continue
			}

			if n, ok := v.NodesByID[canonical]; ok {
				details := nodeDetails(v, n, id, canonical)
				if jsonOutput || yamlOutput {
					allDetails = append(allDetails, details)
					continue
				}
				if idx > 0 {
					fmt.Println("\n" + strings.Repeat("─", 60))
				}
				printNode(v, n, id, canonical)
				continue
			}

			fmt.Fprintf(os.Stderr, "Record %s not found in %s scope\n", id, scope)
		}

		if len(allDetails) > 0 {
			if yamlOutput {
				outputYAML(allDetails)
			} else {
				outputJSON(allDetails)
			}
		}
	},
}

func claimDetails(v *thoughtdb.View, c *thoughtdb.Claim, requested, canonical string) map[string]any {
	out := map[string]any{
		"claim":  c,
		"status": v.ClaimStatus(canonical),
	}
	if canonical != requested {
		out["canonical_id"] = canonical
		out["requested_id"] = requested
	}
	if edges := thoughtdb.EdgesAdjacent(v, canonical); len(edges) > 0 {
		out["edges"] = edges
	}
	return out
}

func nodeDetails(v *thoughtdb.View, n *thoughtdb.Node, requested, canonical string) map[string]any {
	out := map[string]any{
		"node":   n,
		"status": v.NodeStatus(canonical),
	}
	if canonical != requested {
		out["canonical_id"] = canonical
		out["requested_id"] = requested
	}
	if edges := thoughtdb.EdgesAdjacent(v, canonical); len(edges) > 0 {
		out["edges"] = edges
	}
	return out
}

func printClaim(v *thoughtdb.View, c *thoughtdb.Claim, requested, canonical string) {
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("\n%s: %s\n", cyan(c.ClaimID), c.Text)
	if canonical != requested {
		fmt.Printf("(redirected from %s)\n", requested)
	}
	fmt.Printf("Status: %s\n", v.ClaimStatus(canonical))
	fmt.Printf("Type: %s\n", c.ClaimType)
	fmt.Printf("Scope: %s  Visibility: %s\n", c.Scope, c.Visibility)
	fmt.Printf("Asserted: %s\n", c.AssertedTS)
	if c.ValidFrom != "" || c.ValidTo != "" {
		fmt.Printf("Valid: [%s, %s)\n", c.ValidFrom, c.ValidTo)
	}
	if c.Confidence > 0 {
		fmt.Printf("Confidence: %.2f\n", c.Confidence)
	}
	if len(c.Tags) > 0 {
		fmt.Printf("Tags: %v\n", c.Tags)
	}
	if c.Notes != "" {
		fmt.Printf("\nNotes:\n%s\n", c.Notes)
	}
	printEdges(v, canonical)
	fmt.Println()
}

func printNode(v *thoughtdb.View, n *thoughtdb.Node, requested, canonical string) {
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("\n%s: %s\n", cyan(n.NodeID), n.Title)
	if canonical != requested {
		fmt.Printf("(redirected from %s)\n", requested)
	}
	fmt.Printf("Status: %s\n", v.NodeStatus(canonical))
	fmt.Printf("Type: %s\n", n.NodeType)
	fmt.Printf("Scope: %s  Visibility: %s\n", n.Scope, n.Visibility)
	fmt.Printf("Asserted: %s\n", n.AssertedTS)
	if len(n.Tags) > 0 {
		fmt.Printf("Tags: %v\n", n.Tags)
	}
	if n.Text != "" {
		fmt.Printf("\n%s\n", n.Text)
	}
	printEdges(v, canonical)
	fmt.Println()
}

func printEdges(v *thoughtdb.View, id string) {
	edges := thoughtdb.EdgesAdjacent(v, id)
	if len(edges) == 0 {
		return
	}
	fmt.Printf("\nEdges (%d):\n", len(edges))
	for _, e := range edges {
		if e.FromID == id {
			fmt.Printf("  → %s %s\n", e.EdgeType, e.ToID)
		} else {
			fmt.Printf("  ← %s %s\n", e.EdgeType, e.FromID)
		}
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims in recency order",
	Run: func(cmd *cobra.Command, args []string) {
		includeInactive, _ := cmd.Flags().GetBool("all")
		includeAliases, _ := cmd.Flags().GetBool("aliases")
		asOf, _ := cmd.Flags().GetString("as-of")
		tag, _ := cmd.Flags().GetString("tag")
		limit, _ := cmd.Flags().GetInt("limit")
		nodes, _ := cmd.Flags().GetBool("nodes")

		v, err := store.LoadView(scopeFromFlag(cmd))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if nodes {
			listNodes(v, includeInactive, includeAliases, limit)
			return
		}

		infos := v.Claims(thoughtdb.ClaimFilter{
			IncludeInactive: includeInactive,
			IncludeAliases:  includeAliases,
			AsOf:            asOf,
		})
		if tag != "" {
			keep := map[string]struct{}{}
			for _, cid := range v.ClaimIDsByTagName(tag) {
				keep[cid] = struct{}{}
			}
			filtered := infos[:0]
			for _, ci := range infos {
				if _, ok := keep[ci.ClaimID]; ok {
					filtered = append(filtered, ci)
				}
			}
			infos = filtered
		}
		if limit > 0 && len(infos) > limit {
			infos = infos[:limit]
		}

		if jsonOutput {
			outputJSON(infos)
			return
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		for _, ci := range infos {
			statusSuffix := ""
			if ci.Status != thoughtdb.StatusActive {
				statusSuffix = fmt.Sprintf(" (%s)", ci.Status)
			}
			fmt.Printf("%s [%s]%s %s\n", cyan(ci.ClaimID), ci.ClaimType, statusSuffix, ci.Text)
		}
	},
}

func listNodes(v *thoughtdb.View, includeInactive, includeAliases bool, limit int) {
	infos := v.Nodes(thoughtdb.NodeFilter{
		IncludeInactive: includeInactive,
		IncludeAliases:  includeAliases,
	})
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	if jsonOutput {
		outputJSON(infos)
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	for _, ni := range infos {
		statusSuffix := ""
		if ni.Status != thoughtdb.StatusActive {
			statusSuffix = fmt.Sprintf(" (%s)", ni.Status)
		}
		fmt.Printf("%s [%s]%s %s\n", cyan(ni.NodeID), ni.NodeType, statusSuffix, ni.Title)
	}
}

func init() {
	showCmd.Flags().String("scope", "project", "Scope (project or global)")
	showCmd.Flags().Bool("yaml", false, "Output YAML format")
	rootCmd.AddCommand(showCmd)

	listCmd.Flags().String("scope", "project", "Scope (project or global)")
	listCmd.Flags().BoolP("all", "a", false, "Include superseded and retracted records")
	listCmd.Flags().Bool("aliases", false, "Include alias records (same_as sources)")
	listCmd.Flags().String("as-of", "", "Filter claims by validity window at this RFC3339 time")
	listCmd.Flags().String("tag", "", "Only claims carrying this tag")
	listCmd.Flags().IntP("limit", "n", 20, "Maximum records to list (0 = all)")
	listCmd.Flags().Bool("nodes", false, "List nodes instead of claims")
	rootCmd.AddCommand(listCmd)
}
