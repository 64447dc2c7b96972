/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

// uploadDocumentCmd represents the upload-document command
var uploadDocumentCmd = &cobra.Command{
	Use:   "upload-document",
	Short: "Index a document (or a directory of documents)",
	Long: `Parses, chunks and indexes a document so it can be asked about or
extracted from. With --dir every supported file in the directory is uploaded
sequentially, each as its own document.`,
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		dirPath, _ := cmd.Flags().GetString("dir")
		tenant, _ := cmd.Flags().GetString("tenant")

		if filePath == "" && dirPath == "" {
			log.Fatal("either --file or --dir is required")
		}

		svc, err := newDocumentService()
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}

		paths := []string{}
		if filePath != "" {
			paths = append(paths, filePath)
		}
		if dirPath != "" {
			entries, err := os.ReadDir(dirPath)
			if err != nil {
				log.Fatalf("Failed to read directory: %v", err)
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					paths = append(paths, filepath.Join(dirPath, entry.Name()))
				}
			}
			sort.Strings(paths)
		}

		for _, path := range paths {
			content, err := os.ReadFile(path)
			if err != nil {
				log.Fatalf("Failed to read %s: %v", path, err)
			}
			doc, err := svc.Upload(context.Background(), content, filepath.Base(path), tenant)
			if err != nil {
				log.Fatalf("Failed to upload %s: %v", path, err)
			}
			fmt.Printf("Uploaded %s: document_id=%s chunks=%d namespace=%s\n",
				doc.FileName, doc.DocumentID, doc.ChunkCount, doc.Namespace)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadDocumentCmd)

	uploadDocumentCmd.Flags().StringP("file", "f", "", "Path to the file to upload")
	uploadDocumentCmd.Flags().StringP("dir", "d", "", "Directory of files to upload")
	uploadDocumentCmd.Flags().StringP("tenant", "t", "", "Tenant id (defaults to the configured tenant)")
}
