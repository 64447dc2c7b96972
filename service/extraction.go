package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/tieubaoca/docqa-be/types"
)

const defaultExtractionMaxChars = 40000

// fetchIndex is the slice of HybridIndex the extraction engine needs.
type fetchIndex interface {
	FetchAll(ctx context.Context, documentID, namespace string) ([]types.SourceSnippet, error)
}

// ExtractionEngine reconstructs a document's full text from its indexed
// chunks and asks a structured-output model for a fixed freight record.
type ExtractionEngine struct {
	index    fetchIndex
	model    StructuredModel
	maxChars int
}

func NewExtractionEngine(index *HybridIndex, model StructuredModel, maxChars int) *ExtractionEngine {
	if maxChars <= 0 {
		maxChars = defaultExtractionMaxChars
	}
	return &ExtractionEngine{
		index:    index,
		model:    model,
		maxChars: maxChars,
	}
}

// Extract processes documents sequentially. A document with no
// reconstructable text fails the whole request; partial results are not
// returned.
func (e *ExtractionEngine) Extract(ctx context.Context, docs []types.Document) ([]types.ExtractionResult, error) {
	results := make([]types.ExtractionResult, 0, len(docs))
	for _, doc := range docs {
		result, err := e.extractOne(ctx, doc)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

func (e *ExtractionEngine) extractOne(ctx context.Context, doc types.Document) (*types.ExtractionResult, error) {
	snippets, err := e.index.FetchAll(ctx, doc.DocumentID, doc.Namespace)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	text := strings.Join(parts, "\n\n")
	if strings.TrimSpace(text) == "" {
		return nil, types.UnprocessableContent("no indexed content for document %s", doc.DocumentID)
	}
	if len(text) > e.maxChars {
		text = text[:e.maxChars]
	}

	messages := []types.Message{
		{Role: types.RoleSystem, Content: extractionSystemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf("File name: %s\n\nDocument text:\n%s", doc.FileName, text)},
	}
	var payload extractionPayload
	if err := e.model.Invoke(ctx, messages, "freight_extraction", extractionSchema(), &payload); err != nil {
		return nil, types.UpstreamFailure("extraction model", err)
	}

	record := payload.record()
	confidence := ExtractionConfidence(payload.Confidence, record)

	return &types.ExtractionResult{
		DocumentID: doc.DocumentID,
		FileName:   doc.FileName,
		Extraction: record,
		Confidence: confidence,
	}, nil
}

// ExtractionConfidence balances the model's self-assessed confidence against
// how much of the record it actually filled in: a mostly-null record should
// not score as trustworthy as a complete one.
func ExtractionConfidence(selfAssessed float64, record types.ExtractionRecord) float64 {
	selfAssessed = clamp(selfAssessed, 0, 1)
	completeness := float64(record.FilledCount()) / float64(types.NumExtractionFields)
	return round4(0.65*selfAssessed + 0.35*completeness)
}

// extractionPayload is the loosely-typed model response. rate and weight may
// arrive either as numbers or as strings like "$1,250.00".
type extractionPayload struct {
	LoadNumber       *string `json:"load_number"`
	ReferenceNumber  *string `json:"reference_number"`
	ShipperName      *string `json:"shipper_name"`
	ConsigneeName    *string `json:"consignee_name"`
	PickupDatetime   *string `json:"pickup_datetime"`
	DeliveryDatetime *string `json:"delivery_datetime"`
	EquipmentType    *string `json:"equipment_type"`
	Rate             any     `json:"rate"`
	Currency         *string `json:"currency"`
	Weight           any     `json:"weight"`
	CarrierName      *string `json:"carrier_name"`
	Confidence       float64 `json:"confidence"`
}

func (p extractionPayload) record() types.ExtractionRecord {
	return types.ExtractionRecord{
		LoadNumber:       p.LoadNumber,
		ReferenceNumber:  p.ReferenceNumber,
		ShipperName:      p.ShipperName,
		ConsigneeName:    p.ConsigneeName,
		PickupDatetime:   p.PickupDatetime,
		DeliveryDatetime: p.DeliveryDatetime,
		EquipmentType:    p.EquipmentType,
		Rate:             coerceNumber(p.Rate),
		Currency:         p.Currency,
		Weight:           coerceNumber(p.Weight),
		CarrierName:      p.CarrierName,
	}
}

var nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

// coerceNumber accepts a number or a numeric-looking string. Strings are
// stripped of everything but digits, '.' and '-' before parsing; unparseable
// values become null.
func coerceNumber(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case string:
		cleaned := nonNumericRe.ReplaceAllString(n, "")
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

const extractionSystemPrompt = "Extract the freight record fields from the document. " +
	"Use null for any field the document does not state. " +
	"Keep pickup and delivery datetimes exactly as written unless they are unambiguously convertible to ISO 8601. " +
	"Report a confidence between 0 and 1 for the extraction as a whole."

func extractionSchema() *jsonschema.Definition {
	nullableString := jsonschema.Definition{Type: jsonschema.String}
	nullableNumber := jsonschema.Definition{Type: jsonschema.Number}
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"load_number":       nullableString,
			"reference_number":  nullableString,
			"shipper_name":      nullableString,
			"consignee_name":    nullableString,
			"pickup_datetime":   nullableString,
			"delivery_datetime": nullableString,
			"equipment_type":    nullableString,
			"rate":              nullableNumber,
			"currency":          nullableString,
			"weight":            nullableNumber,
			"carrier_name":      nullableString,
			"confidence": {
				Type:        jsonschema.Number,
				Description: "Self-assessed confidence in [0,1].",
			},
		},
		Required:             []string{"confidence"},
		AdditionalProperties: false,
	}
}
