/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a structured freight record from documents",
	Long: `Reconstructs each scoped document's text from its indexed chunks and
extracts the fixed freight record with a completeness-weighted confidence.
Without --document the most recently uploaded document is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		documentIDs, _ := cmd.Flags().GetStringArray("document")

		svc, err := newDocumentService()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}

		results, err := svc.Extract(context.Background(), documentIDs)
		if err != nil {
			log.Fatalf("Extract failed: %v", err)
		}

		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringArrayP("document", "D", nil, "Document id to extract from (repeatable)")
}
