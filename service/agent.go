package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/tieubaoca/docqa-be/config"
	"github.com/tieubaoca/docqa-be/types"
)

// SentinelAnswer replaces the model's answer when the guardrail abstains.
const SentinelAnswer = "Not found in document."

const cautionNotice = "\n\nNote: this answer has low confidence. Verify it against the cited pages."

const groundedConfidenceCap = 0.35

var DefaultRetrievalConfig = config.RetrievalConfig{
	Alpha:          0.5,
	TopK:           6,
	MaxIterations:  8,
	PoolCap:        16,
	EmbedBatchSize: defaultEmbedBatchSize,
}

var DefaultGuardrailConfig = config.GuardrailConfig{
	MinTopScore:       0.85,
	LowConfidence:     0.4,
	CautionConfidence: 0.6,
}

// AskScope is the resolved, namespace-consistent set of documents one ask
// request runs against.
type AskScope struct {
	DocumentIDs []string
	Namespace   string
}

// queryIndex is the slice of HybridIndex the agent needs.
type queryIndex interface {
	Query(ctx context.Context, text, namespace string, topK int, documentID string, documentIDs []string) ([]types.SourceSnippet, error)
}

// RetrievalAgent answers a question through a fixed pipeline:
// rewrite -> iterative retrieve -> answer -> guardrail. The model controls
// how many retrieval calls happen (bounded by MaxIterations); every call's
// results merge into the evidence pool and the final answer must come from
// pooled evidence only.
type RetrievalAgent struct {
	index     queryIndex
	model     StructuredModel
	topK      int
	maxIters  int
	poolCap   int
	guardrail config.GuardrailConfig
}

func NewRetrievalAgent(index *HybridIndex, model StructuredModel, retrieval config.RetrievalConfig, guardrail config.GuardrailConfig) *RetrievalAgent {
	if retrieval.TopK <= 0 {
		retrieval.TopK = DefaultRetrievalConfig.TopK
	}
	if retrieval.MaxIterations <= 0 {
		retrieval.MaxIterations = DefaultRetrievalConfig.MaxIterations
	}
	if retrieval.PoolCap <= 0 {
		retrieval.PoolCap = DefaultRetrievalConfig.PoolCap
	}
	if guardrail.MinTopScore == 0 {
		guardrail.MinTopScore = DefaultGuardrailConfig.MinTopScore
	}
	if guardrail.LowConfidence == 0 {
		guardrail.LowConfidence = DefaultGuardrailConfig.LowConfidence
	}
	if guardrail.CautionConfidence == 0 {
		guardrail.CautionConfidence = DefaultGuardrailConfig.CautionConfidence
	}
	return &RetrievalAgent{
		index:     index,
		model:     model,
		topK:      retrieval.TopK,
		maxIters:  retrieval.MaxIterations,
		poolCap:   retrieval.PoolCap,
		guardrail: guardrail,
	}
}

// agentAnswer is the structured answer the controller must emit.
type agentAnswer struct {
	Answer        string   `json:"answer"`
	Grounded      bool     `json:"grounded"`
	NotFound      bool     `json:"not_found"`
	CitedChunkIDs []string `json:"cited_chunk_ids"`
}

// agentDecision is one controller turn: either another retrieval call or the
// final answer.
type agentDecision struct {
	Action string       `json:"action"` // "search" or "answer"
	Query  string       `json:"query"`
	Answer *agentAnswer `json:"answer"`
}

// Ask runs the full pipeline for one question. All upstream failures except
// the rewrite propagate as errors.
func (a *RetrievalAgent) Ask(ctx context.Context, question string, scope AskScope) (*types.AskResult, error) {
	rewritten := a.rewrite(ctx, question)

	pool := newEvidencePool(a.poolCap)
	transcript := []types.Message{
		{Role: types.RoleSystem, Content: agentSystemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf("Question: %s\nSuggested retrieval query: %s", question, rewritten)},
	}

	var answer *agentAnswer
	retrievals := 0
	for iter := 0; iter < a.maxIters; iter++ {
		var decision agentDecision
		if err := a.model.Invoke(ctx, transcript, "retrieval_decision", decisionSchema(), &decision); err != nil {
			return nil, types.UpstreamFailure("agent decision", err)
		}

		query := strings.TrimSpace(decision.Query)
		if decision.Action == "search" && query != "" {
			var err error
			pool, err = a.retrieve(ctx, scope, query, pool, &transcript)
			if err != nil {
				return nil, err
			}
			retrievals++
			continue
		}

		// the controller must retrieve at least once before answering
		if retrievals == 0 {
			var err error
			pool, err = a.retrieve(ctx, scope, rewritten, pool, &transcript)
			if err != nil {
				return nil, err
			}
			retrievals++
			continue
		}

		if decision.Answer != nil {
			answer = decision.Answer
			break
		}
	}

	if answer == nil {
		// iteration budget spent; force a final structured answer
		transcript = append(transcript, types.Message{
			Role:    types.RoleUser,
			Content: "Answer now using only the evidence above.",
		})
		var forced agentAnswer
		if err := a.model.Invoke(ctx, transcript, "final_answer", answerSchema(), &forced); err != nil {
			return nil, types.UpstreamFailure("agent answer", err)
		}
		answer = &forced
	}

	finalAnswer, confidence, status := a.applyGuardrail(*answer, pool)

	result := &types.AskResult{
		DocumentIDs:    scope.DocumentIDs,
		Answer:         finalAnswer,
		Confidence:     confidence,
		Guardrail:      status,
		RewrittenQuery: rewritten,
		Sources:        pool.ranked(),
	}
	if len(scope.DocumentIDs) > 0 {
		result.PrimaryDocumentID = scope.DocumentIDs[0]
	}
	return result, nil
}

// retrieve issues one scoped query, merges the results into the pool and
// appends the evidence to the transcript. Calls are strictly sequential, so
// the keep-max-score merge never races.
func (a *RetrievalAgent) retrieve(ctx context.Context, scope AskScope, query string, pool evidencePool, transcript *[]types.Message) (evidencePool, error) {
	documentID := ""
	var documentIDs []string
	if len(scope.DocumentIDs) == 1 {
		documentID = scope.DocumentIDs[0]
	} else {
		documentIDs = scope.DocumentIDs
	}

	results, err := a.index.Query(ctx, query, scope.Namespace, a.topK, documentID, documentIDs)
	if err != nil {
		return pool, err
	}
	pool = pool.merge(results)

	*transcript = append(*transcript,
		types.Message{Role: types.RoleAssistant, Content: fmt.Sprintf(`{"action":"search","query":%q}`, query)},
		types.Message{Role: types.RoleUser, Content: renderEvidence(query, results)},
	)
	return pool, nil
}

// rewrite asks the model for a retrieval-optimized version of the question.
// This step never aborts the pipeline: on any failure it falls back to the
// original question.
func (a *RetrievalAgent) rewrite(ctx context.Context, question string) string {
	messages := []types.Message{
		{Role: types.RoleSystem, Content: rewriteSystemPrompt},
		{Role: types.RoleUser, Content: question},
	}
	var out struct {
		RewrittenQuery string `json:"rewritten_query"`
	}
	if err := a.model.Invoke(ctx, messages, "query_rewrite", rewriteSchema(), &out); err != nil {
		log.Printf("query rewrite failed, using original question: %v", err)
		return question
	}
	if strings.TrimSpace(out.RewrittenQuery) == "" {
		return question
	}
	return out.RewrittenQuery
}

// applyGuardrail runs the three ordered gates. The first gate that fires
// decides the outcome; later gates are skipped.
func (a *RetrievalAgent) applyGuardrail(answer agentAnswer, pool evidencePool) (string, float64, types.GuardrailStatus) {
	// gate 1: retrieval floor
	top, second := pool.topTwo()
	if pool.len() == 0 || top < a.guardrail.MinTopScore {
		return SentinelAnswer, 0, types.GuardrailNotFound
	}

	confidence := a.confidence(top, second, answer.CitedChunkIDs, pool)

	// gate 2: grounding
	if answer.NotFound || !answer.Grounded {
		if confidence > groundedConfidenceCap {
			confidence = groundedConfidenceCap
		}
		return SentinelAnswer, confidence, types.GuardrailNotFound
	}

	// gate 3: confidence policy
	if confidence < a.guardrail.LowConfidence {
		return SentinelAnswer, confidence, types.GuardrailNotFound
	}
	if confidence < a.guardrail.CautionConfidence {
		return answer.Answer + cautionNotice, confidence, types.GuardrailCaution
	}
	return answer.Answer, confidence, types.GuardrailOK
}

// confidence combines three signals: retrieval strength, agreement between
// the two best snippets and how many claimed citations actually exist in the
// pool.
func (a *RetrievalAgent) confidence(top, second float64, cited []string, pool evidencePool) float64 {
	retrievalSignal := clamp(top/2.5, 0, 1)

	agreementSignal := 0.0
	if top > 0 {
		agreementSignal = clamp(second/top, 0, 1)
	}

	citationSignal := 0.0
	if len(cited) > 0 {
		found := 0
		for _, id := range cited {
			if pool.contains(id) {
				found++
			}
		}
		citationSignal = float64(found) / float64(len(cited))
	}

	return round4(0.6*retrievalSignal + 0.25*agreementSignal + 0.15*citationSignal)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func renderEvidence(query string, results []types.SourceSnippet) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", query)
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] (score %.4f) %s\n", r.ID, r.Score, r.Text)
	}
	return b.String()
}

const rewriteSystemPrompt = "Rewrite the user's question into a short retrieval query for a document search engine. " +
	"Preserve every entity, date, number and identifier verbatim. Do not answer the question."

const agentSystemPrompt = "You answer questions about uploaded documents. " +
	"Use the search action to look up evidence; you may search several times with different sub-queries for multi-part questions. " +
	"When you have enough evidence, use the answer action. " +
	"Answer only from retrieved evidence, cite the chunk ids you used, and set not_found when the documents do not contain the answer."

func rewriteSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"rewritten_query": {
				Type:        jsonschema.String,
				Description: "Retrieval-optimized query preserving entities, dates and identifiers verbatim.",
			},
		},
		Required:             []string{"rewritten_query"},
		AdditionalProperties: false,
	}
}

func answerSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"answer":   {Type: jsonschema.String},
			"grounded": {Type: jsonschema.Boolean, Description: "True only if the answer is fully supported by retrieved evidence."},
			"not_found": {
				Type:        jsonschema.Boolean,
				Description: "True when the documents do not contain the answer.",
			},
			"cited_chunk_ids": {
				Type:  jsonschema.Array,
				Items: &jsonschema.Definition{Type: jsonschema.String},
			},
		},
		Required:             []string{"answer", "grounded", "not_found", "cited_chunk_ids"},
		AdditionalProperties: false,
	}
}

func decisionSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"action": {
				Type: jsonschema.String,
				Enum: []string{"search", "answer"},
			},
			"query": {
				Type:        jsonschema.String,
				Description: "Sub-query to retrieve evidence for. Required when action is search.",
			},
			"answer": *answerSchema(),
		},
		Required:             []string{"action"},
		AdditionalProperties: false,
	}
}
