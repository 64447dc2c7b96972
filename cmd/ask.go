/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against indexed documents",
	Long: `Answers a natural-language question from the indexed chunks of the
scoped documents. Without --document the most recently uploaded document is
used. The answer comes with a guardrail status, a calibrated confidence and
the source chunks it was grounded on.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		documentIDs, _ := cmd.Flags().GetStringArray("document")
		question := strings.Join(args, " ")

		svc, err := newDocumentService()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}

		result, err := svc.Ask(context.Background(), question, documentIDs)
		if err != nil {
			log.Fatalf("Ask failed: %v", err)
		}

		fmt.Println(result.Answer)
		fmt.Printf("\nguardrail=%s confidence=%.4f\n", result.Guardrail, result.Confidence)
		fmt.Printf("rewritten query: %s\n", result.RewrittenQuery)
		if len(result.Sources) > 0 {
			fmt.Println("sources:")
			for _, src := range result.Sources {
				page := src.Metadata["page_number"]
				fmt.Printf("  [%s] page=%v score=%.4f\n", src.ID, page, src.Score)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringArrayP("document", "D", nil, "Document id to scope the question to (repeatable)")
}
