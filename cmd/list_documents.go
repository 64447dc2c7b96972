/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

// listDocumentsCmd represents the list-documents command
var listDocumentsCmd = &cobra.Command{
	Use:   "list-documents",
	Short: "List registered documents, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := newDocumentService()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}

		docs, err := svc.ListDocuments(context.Background())
		if err != nil {
			log.Fatalf("List failed: %v", err)
		}
		if len(docs) == 0 {
			fmt.Println("No documents uploaded yet")
			return
		}

		for _, doc := range docs {
			uploaded := time.Unix(doc.UploadedAt, 0).Format(time.RFC3339)
			fmt.Printf("%s  %s  chunks=%d  tenant=%s  uploaded=%s\n",
				doc.DocumentID, doc.FileName, doc.ChunkCount, doc.TenantID, uploaded)
		}
	},
}

func init() {
	rootCmd.AddCommand(listDocumentsCmd)
}
