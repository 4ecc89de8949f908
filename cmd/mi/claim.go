package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mitool/mi"
	"github.com/mitool/mi/internal/thoughtdb"
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Manage claims",
}

var claimAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Append a new claim",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		claimType, _ := cmd.Flags().GetString("type")
		visibility, _ := cmd.Flags().GetString("visibility")
		validFrom, _ := cmd.Flags().GetString("valid-from")
		validTo, _ := cmd.Flags().GetString("valid-to")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		events, _ := cmd.Flags().GetStringSlice("event")
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		notes, _ := cmd.Flags().GetString("notes")

		id, err := store.AppendClaim(mi.ClaimInput{
			ClaimType:      thoughtdb.ClaimType(claimType),
			Text:           args[0],
			Scope:          scopeFromFlag(cmd),
			Visibility:     thoughtdb.Visibility(visibility),
			ValidFrom:      validFrom,
			ValidTo:        validTo,
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
			outputJSON(map[string]string{"claim_id": id})
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created claim: %s\n", green("✓"), id)
	},
}

var claimRetractCmd = &cobra.Command{
	Use:   "retract [id]",
	Short: "Retract a claim",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rationale, _ := cmd.Flags().GetString("rationale")
		events, _ := cmd.Flags().GetStringSlice("event")

		if err := store.RetractClaim(args[0], scopeFromFlag(cmd), rationale, events); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]string{"claim_id": args[0], "status": "retracted"})
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Retracted claim: %s\n", green("✓"), args[0])
	},
}

func init() {
	claimAddCmd.Flags().StringP("type", "t", "fact", "Claim type (fact, preference, assumption, goal)")
	claimAddCmd.Flags().String("scope", "project", "Scope (project or global)")
	claimAddCmd.Flags().String("visibility", "project", "Visibility (private, project, global)")
	claimAddCmd.Flags().String("valid-from", "", "Validity window start (RFC3339)")
	claimAddCmd.Flags().String("valid-to", "", "Validity window end (RFC3339, exclusive)")
	claimAddCmd.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	claimAddCmd.Flags().StringSlice("event", nil, "Source evidence event id (repeatable)")
	claimAddCmd.Flags().Float64("confidence", 1.0, "Confidence in [0,1]")
	claimAddCmd.Flags().String("notes", "", "Free-form notes")
	claimCmd.AddCommand(claimAddCmd)

	claimRetractCmd.Flags().String("scope", "project", "Scope (project or global)")
	claimRetractCmd.Flags().StringP("rationale", "r", "", "Why the claim is retracted")
	claimRetractCmd.Flags().StringSlice("event", nil, "Source evidence event id (repeatable)")
	claimCmd.AddCommand(claimRetractCmd)

	rootCmd.AddCommand(claimCmd)
}
