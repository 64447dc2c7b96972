package types

// GuardrailStatus is the outcome of the answer guardrail.
type GuardrailStatus string

const (
	GuardrailOK       GuardrailStatus = "ok"
	GuardrailCaution  GuardrailStatus = "caution"
	GuardrailNotFound GuardrailStatus = "not_found"
)

// Document is a registry entry for one uploaded document. It is created
// exactly once, after every chunk of the document has been indexed, and is
// immutable from then on.
type Document struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
	Namespace  string `json:"namespace"`
	FileName   string `json:"file_name"`
	UploadedAt int64  `json:"uploaded_at"`
	ChunkCount int    `json:"chunk_count"`
}

// Chunk is a citeable unit of document text. ChunkID embeds the page number
// and the per-page ordinal; ChunkNumber is the document-global position used
// to reconstruct the original text order.
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	TenantID    string `json:"tenant_id"`
	PageNumber  int    `json:"page_number"`
	ChunkNumber int    `json:"chunk_number"`
	Text        string `json:"text"`
}

// Page is one page of extracted document text, as produced by a parser.
type Page struct {
	Number int
	Text   string
}

// SourceSnippet is a single retrieval result. Snippets are ephemeral; they
// exist only for the duration of one ask or extract request.
type SourceSnippet struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// AskResult is the calibrated answer to one question.
type AskResult struct {
	PrimaryDocumentID string          `json:"primary_document_id"`
	DocumentIDs       []string        `json:"document_ids"`
	Answer            string          `json:"answer"`
	Confidence        float64         `json:"confidence"`
	Guardrail         GuardrailStatus `json:"guardrail"`
	RewrittenQuery    string          `json:"rewritten_query"`
	Sources           []SourceSnippet `json:"sources"`
}

// ExtractionRecord holds the structured fields pulled from a freight
// document. Every field is nullable; datetime fields keep the document's
// wording verbatim unless it is unambiguously ISO-convertible.
type ExtractionRecord struct {
	LoadNumber       *string  `json:"load_number"`
	ReferenceNumber  *string  `json:"reference_number"`
	ShipperName      *string  `json:"shipper_name"`
	ConsigneeName    *string  `json:"consignee_name"`
	PickupDatetime   *string  `json:"pickup_datetime"`
	DeliveryDatetime *string  `json:"delivery_datetime"`
	EquipmentType    *string  `json:"equipment_type"`
	Rate             *float64 `json:"rate"`
	Currency         *string  `json:"currency"`
	Weight           *float64 `json:"weight"`
	CarrierName      *string  `json:"carrier_name"`
}

// NumExtractionFields is the number of extractable fields in an
// ExtractionRecord, the denominator of the completeness ratio.
const NumExtractionFields = 11

// FilledCount returns how many fields are non-null.
func (r ExtractionRecord) FilledCount() int {
	n := 0
	for _, set := range []bool{
		r.LoadNumber != nil,
		r.ReferenceNumber != nil,
		r.ShipperName != nil,
		r.ConsigneeName != nil,
		r.PickupDatetime != nil,
		r.DeliveryDatetime != nil,
		r.EquipmentType != nil,
		r.Rate != nil,
		r.Currency != nil,
		r.Weight != nil,
		r.CarrierName != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// ExtractionResult is the structured record for one document plus its
// completeness-weighted confidence.
type ExtractionResult struct {
	DocumentID string           `json:"document_id"`
	FileName   string           `json:"file_name"`
	Extraction ExtractionRecord `json:"extraction"`
	Confidence float64          `json:"confidence"`
}

// Message represents a single message in a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
