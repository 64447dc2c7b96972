/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tieubaoca/docqa-be/config"
	"github.com/tieubaoca/docqa-be/database"
	"github.com/tieubaoca/docqa-be/service"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docqa-be",
	Short: "Document question answering backend",
	Long: `docqa-be indexes uploaded documents into a hybrid dense+sparse
vector index and answers natural-language questions against them with
citations and a calibrated confidence, or extracts a structured freight
record from a document.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file")
}

// newDocumentService wires the full pipeline from the loaded config. Every
// command goes through this single constructor.
func newDocumentService() (*service.DocumentService, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := database.NewPineconeStore(cfg.Pinecone)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Pinecone: %w", err)
	}

	dense := service.NewOpenAIEmbedder(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel)
	sparse := database.NewPineconeSparseEmbedder(store.Client(), cfg.Pinecone.SparseModel)

	var model service.StructuredModel
	switch cfg.Provider {
	case "gemini":
		model, err = service.NewGeminiService(cfg.Gemini.APIKeys, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini service: %w", err)
		}
	default:
		model = service.NewOpenAIService(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	chunker := service.NewChunker(cfg.Chunking)
	index := service.NewHybridIndex(store, dense, sparse, cfg.Retrieval.Alpha, cfg.Retrieval.EmbedBatchSize)
	registry := service.NewRegistry(store, dense, cfg.NamespacePrefix)
	agent := service.NewRetrievalAgent(index, model, cfg.Retrieval, cfg.Guardrail)
	extractor := service.NewExtractionEngine(index, model, cfg.Extraction.MaxChars)

	return service.NewDocumentService(
		chunker, index, registry, agent, extractor,
		cfg.NamespacePrefix, cfg.DefaultTenant,
	), nil
}
