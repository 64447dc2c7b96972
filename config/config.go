package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Provider        string `mapstructure:"provider"` // "openai" or "gemini"
	DefaultTenant   string `mapstructure:"default_tenant"`
	NamespacePrefix string `mapstructure:"namespace_prefix"`

	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Pinecone   PineconeConfig   `mapstructure:"pinecone"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Guardrail  GuardrailConfig  `mapstructure:"guardrail"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
}

type OpenAIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"OPENAI_API_KEY"`
	Model      string `mapstructure:"model"`
	EmbedModel string `mapstructure:"embed_model"`
}

type GeminiConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
	Model   string   `mapstructure:"model"`
}

type PineconeConfig struct {
	APIKey      string `mapstructure:"PINECONE_API_KEY"`
	Index       string `mapstructure:"index"`
	SparseModel string `mapstructure:"sparse_model"`
}

type ChunkingConfig struct {
	TargetSize  int `mapstructure:"target_size"`
	OverlapSize int `mapstructure:"overlap_size"`
}

type RetrievalConfig struct {
	Alpha          float64 `mapstructure:"alpha"`
	TopK           int     `mapstructure:"top_k"`
	MaxIterations  int     `mapstructure:"max_iterations"`
	PoolCap        int     `mapstructure:"pool_cap"`
	EmbedBatchSize int     `mapstructure:"embed_batch_size"`
}

type GuardrailConfig struct {
	MinTopScore       float64 `mapstructure:"min_top_score"`
	LowConfidence     float64 `mapstructure:"low_confidence"`
	CautionConfidence float64 `mapstructure:"caution_confidence"`
}

type ExtractionConfig struct {
	MaxChars int `mapstructure:"max_chars"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set up Viper to read from config file
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set up Viper to read from environment variables
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables for secrets
	v.BindEnv("openai.OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("pinecone.PINECONE_API_KEY", "PINECONE_API_KEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("default_tenant", "default")
	v.SetDefault("namespace_prefix", "docqa")

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embed_model", "text-embedding-3-small")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("pinecone.sparse_model", "pinecone-sparse-english-v0")

	v.SetDefault("chunking.target_size", 1200)
	v.SetDefault("chunking.overlap_size", 180)

	v.SetDefault("retrieval.alpha", 0.5)
	v.SetDefault("retrieval.top_k", 6)
	v.SetDefault("retrieval.max_iterations", 8)
	v.SetDefault("retrieval.pool_cap", 16)
	v.SetDefault("retrieval.embed_batch_size", 50)

	v.SetDefault("guardrail.min_top_score", 0.85)
	v.SetDefault("guardrail.low_confidence", 0.4)
	v.SetDefault("guardrail.caution_confidence", 0.6)

	v.SetDefault("extraction.max_chars", 40000)
}
