package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi"
	"github.com/mitool/mi/internal/thoughtdb"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage narrative nodes",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Append a new node",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		nodeType, _ := cmd.Flags().GetString("type")
		title, _ := cmd.Flags().GetString("title")
		visibility, _ := cmd.Flags().GetString("visibility")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		events, _ := cmd.Flags().GetStringSlice("event")
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		notes, _ := cmd.Flags().GetString("notes")

		id, err := store.AppendNode(mi.NodeInput{
			NodeType:       thoughtdb.NodeType(nodeType),
			Title:          title,
			Text:           args[0],
			Scope:          scopeFromFlag(cmd),
			Visibility:     thoughtdb.Visibility(visibility),
			Tags:           tags,
			SourceEventIDs: events,
			Confidence:     confidence,
			Notes:          notes,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{"node_id": id})
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created node: %s\n", green("✓"), id)
	},
}

var nodeRetractCmd = &cobra.Command{
	Use:   "retract [id]",
	Short: "Retract a node",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rationale, _ := cmd.Flags().GetString("rationale")
		events, _ := cmd.Flags().GetStringSlice("event")

		if err := store.RetractNode(args[0], scopeFromFlag(cmd), rationale, events); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{"node_id": args[0], "status": "retracted"})
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Retracted node: %s\n", green("✓"), args[0])
	},
}

func init() {
	nodeAddCmd.Flags().StringP("type", "t", "summary", "Node type (decision, action, summary)")
	nodeAddCmd.Flags().String("title", "", "Node title (default: first line of text)")
	nodeAddCmd.Flags().String("scope", "project", "Scope (project or global)")
	nodeAddCmd.Flags().String("visibility", "project", "Visibility (private, project, global)")
	nodeAddCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	nodeAddCmd.Flags().StringSlice("event", nil, "Source evidence event id (repeatable)")
	nodeAddCmd.Flags().Float64("confidence", 1.0, "Confidence in [0,1]")
	nodeAddCmd.Flags().String("notes", "", "Free-form notes")
	nodeCmd.AddCommand(nodeAddCmd)

	nodeRetractCmd.Flags().String("scope", "project", "Scope (project or global)")
	nodeRetractCmd.Flags().StringP("rationale", "r", "", "Why the node is retracted")
	nodeRetractCmd.Flags().StringSlice("event", nil, "Source evidence event id (repeatable)")
	nodeCmd.AddCommand(nodeRetractCmd)

	rootCmd.AddCommand(nodeCmd)
}
