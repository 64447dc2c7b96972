package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/api/option"

	"github.com/tieubaoca/docqa-be/types"
)

// GeminiService implements StructuredModel on Gemini with a JSON response
// MIME type and a translated response schema. Supports several API keys and
// rotates to the next one when a call fails.
type GeminiService struct {
	apiKeys    []string
	currentKey int
	modelName  string
	client     *genai.Client
	mu         sync.Mutex
}

func NewGeminiService(apiKeys []string, modelName string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:    apiKeys,
		currentKey: 0,
		modelName:  modelName,
	}
	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiService) initClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.mu.Lock()
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	return s.initClient()
}

func (s *GeminiService) Invoke(ctx context.Context, messages []types.Message, schemaName string, schema *jsonschema.Definition, out any) error {
	model := s.client.GenerativeModel(s.modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = toGenaiSchema(schema)

	var system string
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			system += msg.Content + "\n"
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if len(parts) == 0 {
		return errors.New("no user content to send")
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		// Try rotating API key if there's an error
		if err := s.rotateAPIKey(); err != nil {
			return err
		}
		model = s.client.GenerativeModel(s.modelName)
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(schema)
		resp, err = model.GenerateContent(ctx, parts...)
		if err != nil {
			return err
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return errors.New("no response generated")
	}
	content := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content += string(text)
		}
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("model output does not conform to %s schema: %v", schemaName, err)
	}
	return nil
}

// toGenaiSchema translates the OpenAI-flavored jsonschema definition the rest
// of the codebase uses into Gemini's schema type.
func toGenaiSchema(def *jsonschema.Definition) *genai.Schema {
	if def == nil {
		return nil
	}
	schema := &genai.Schema{
		Description: def.Description,
		Required:    def.Required,
		Enum:        def.Enum,
	}
	switch def.Type {
	case jsonschema.Object:
		schema.Type = genai.TypeObject
	case jsonschema.Array:
		schema.Type = genai.TypeArray
	case jsonschema.String:
		schema.Type = genai.TypeString
	case jsonschema.Number:
		schema.Type = genai.TypeNumber
	case jsonschema.Integer:
		schema.Type = genai.TypeInteger
	case jsonschema.Boolean:
		schema.Type = genai.TypeBoolean
	default:
		schema.Type = genai.TypeString
		schema.Nullable = true
	}
	if len(def.Properties) > 0 {
		schema.Properties = make(map[string]*genai.Schema, len(def.Properties))
		for name, prop := range def.Properties {
			p := prop
			schema.Properties[name] = toGenaiSchema(&p)
		}
	}
	if def.Items != nil {
		schema.Items = toGenaiSchema(def.Items)
	}
	return schema
}
