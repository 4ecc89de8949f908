package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi/internal/thoughtdb"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact a scope's logs, archiving the originals",
	Long: `Compact rewrites claims/edges/nodes logs into their minimal
equivalent form: the last record per claim and node id plus surviving
retractions, and the last edge per (type, from, to) key. The originals
are archived as gzip first and the view snapshot is deleted so the next
read replays the compacted logs.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		rep, err := store.Compact(scopeFromFlag(cmd), dryRun)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(rep)
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		verb := "Compacted"
		if dryRun {
			verb = "Would compact"
		}
		fmt.Printf("%s %s %s scope\n", green("✓"), verb, rep.Scope)
		fmt.Printf("  claims: %d -> %d lines\n", rep.Claims.Stats.InputLines, rep.Claims.Stats.OutputLines)
		fmt.Printf("  edges:  %d -> %d lines\n", rep.Edges.Stats.InputLines, rep.Edges.Stats.OutputLines)
		fmt.Printf("  nodes:  %d -> %d lines\n", rep.Nodes.Stats.InputLines, rep.Nodes.Stats.OutputLines)
		if rep.SnapshotDeleted {
			fmt.Printf("  snapshot deleted: %s\n", rep.SnapshotPath)
		}
		if !dryRun {
			fmt.Printf("  archive: %s\n", rep.ArchiveDir)
		}
	},
}

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Write view snapshots for cached scopes",
	Run: func(cmd *cobra.Command, args []string) {
		// Load both scopes so there is something to flush even on a
		// cold cache.
		for _, scope := range []thoughtdb.Scope{thoughtdb.ScopeProject, thoughtdb.ScopeGlobal} {
			if _, err := store.LoadView(scope); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading %s view: %v\n", scope, err)
				os.Exit(1)
			}
		}
		store.FlushSnapshots()

		if jsonOutput {
			outputJSON(map[string]bool{"flushed": true})
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Snapshots flushed\n", green("✓"))
	},
}

func init() {
	compactCmd.Flags().String("scope", "project", "Scope (project or global)")
	compactCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
	rootCmd.AddCommand(compactCmd)

	rootCmd.AddCommand(flushCmd)
}
