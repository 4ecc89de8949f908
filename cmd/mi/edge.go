package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi"
	"github.com/mitool/mi/internal/thoughtdb"
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Manage typed edges between records",
}

var edgeAddCmd = &cobra.Command{
	Use:   "add [from-id] [to-id]",
	Short: "Append a typed edge",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		edgeType, _ := cmd.Flags().GetString("type")
		visibility, _ := cmd.Flags().GetString("visibility")
		events, _ := cmd.Flags().GetStringSlice("event")
		notes, _ := cmd.Flags().GetString("notes")

		id, err := store.AppendEdge(mi.EdgeInput{
			EdgeType:       thoughtdb.EdgeType(edgeType),
			FromID:         args[0],
			ToID:           args[1],
			Scope:          scopeFromFlag(cmd),
			Visibility:     thoughtdb.Visibility(visibility),
			SourceEventIDs: events,
			Notes:          notes,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{"edge_id": id})
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created edge: %s (%s %s -> %s)\n", green("✓"), id, edgeType, args[0], args[1])
	},
}

func init() {
	edgeAddCmd.Flags().StringP("type", "t", "", "Edge type (depends_on, supports, contradicts, derived_from, mentions, supersedes, same_as)")
	edgeAddCmd.Flags().String("scope", "project", "Scope (project or global)")
	edgeAddCmd.Flags().String("visibility", "project", "Visibility (private, project, global)")
	edgeAddCmd.Flags().StringSlice("event", nil, "Source evidence event id (repeatable)")
	edgeAddCmd.Flags().String("notes", "", "Free-form notes")
	_ = edgeAddCmd.MarkFlagRequired("type")
	edgeCmd.AddCommand(edgeAddCmd)

	rootCmd.AddCommand(edgeCmd)
}
