package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tieubaoca/docqa-be/types"
	"github.com/tieubaoca/docqa-be/utils"
)

// chunkIndex is the slice of HybridIndex the document service needs.
type chunkIndex interface {
	Upsert(ctx context.Context, chunks []types.Chunk, namespace string) error
}

// documentRegistry is the registry surface the document service needs.
type documentRegistry interface {
	Save(ctx context.Context, doc types.Document) error
	Get(ctx context.Context, documentID string) (*types.Document, error)
	List(ctx context.Context) ([]types.Document, error)
	LatestID(ctx context.Context) (string, error)
}

type askAgent interface {
	Ask(ctx context.Context, question string, scope AskScope) (*types.AskResult, error)
}

type extractionRunner interface {
	Extract(ctx context.Context, docs []types.Document) ([]types.ExtractionResult, error)
}

// DocumentService ties the pipeline together behind the caller-facing
// operations: upload, ask, extract, list. It holds no mutable state;
// concurrent requests are independent.
type DocumentService struct {
	chunker   *Chunker
	index     chunkIndex
	registry  documentRegistry
	agent     askAgent
	extractor extractionRunner

	namespacePrefix string
	defaultTenant   string
	now             func() time.Time
}

func NewDocumentService(
	chunker *Chunker,
	index chunkIndex,
	registry documentRegistry,
	agent askAgent,
	extractor extractionRunner,
	namespacePrefix string,
	defaultTenant string,
) *DocumentService {
	if defaultTenant == "" {
		defaultTenant = "default"
	}
	return &DocumentService{
		chunker:         chunker,
		index:           index,
		registry:        registry,
		agent:           agent,
		extractor:       extractor,
		namespacePrefix: namespacePrefix,
		defaultTenant:   defaultTenant,
		now:             time.Now,
	}
}

func (s *DocumentService) namespaceFor(tenantID string) string {
	return s.namespacePrefix + ":" + tenantID
}

// Upload parses, chunks and indexes one document, then registers it. The
// registry entry is written only after every chunk is indexed, so a document
// is never partially visible.
func (s *DocumentService) Upload(ctx context.Context, content []byte, fileName, tenantID string) (*types.Document, error) {
	if tenantID == "" {
		tenantID = s.defaultTenant
	}

	parser := ParserFor(fileName)
	if parser == nil {
		return nil, types.InvalidInput("unsupported file type: %s", fileName)
	}
	pages, err := parser.Parse(content, fileName)
	if err != nil {
		return nil, types.InvalidInput("failed to parse %s: %v", fileName, err)
	}

	// the stored name is sanitized; the extension survives so the type stays
	// recognizable in listings
	fileName = utils.SanitizeFileName(fileName)

	documentID := uuid.NewString()
	chunks := s.chunker.ChunkPages(documentID, tenantID, pages)
	if len(chunks) == 0 {
		return nil, types.UnprocessableContent("document %s produced no chunks", fileName)
	}

	namespace := s.namespaceFor(tenantID)
	if err := s.index.Upsert(ctx, chunks, namespace); err != nil {
		return nil, err
	}

	doc := types.Document{
		DocumentID: documentID,
		TenantID:   tenantID,
		Namespace:  namespace,
		FileName:   fileName,
		UploadedAt: s.now().Unix(),
		ChunkCount: len(chunks),
	}
	if err := s.registry.Save(ctx, doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Ask answers a question against the scoped documents. Scope consistency is
// verified before any retrieval happens: documents spanning more than one
// namespace reject the request outright.
func (s *DocumentService) Ask(ctx context.Context, question string, documentIDs []string) (*types.AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.InvalidInput("question is empty")
	}

	docs, err := s.resolveScope(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	namespace := docs[0].Namespace
	ids := make([]string, len(docs))
	for i, doc := range docs {
		if doc.Namespace != namespace {
			return nil, types.InconsistentScope("documents span namespaces %s and %s", namespace, doc.Namespace)
		}
		ids[i] = doc.DocumentID
	}

	return s.agent.Ask(ctx, question, AskScope{DocumentIDs: ids, Namespace: namespace})
}

// Extract produces a structured record for each scoped document.
func (s *DocumentService) Extract(ctx context.Context, documentIDs []string) ([]types.ExtractionResult, error) {
	docs, err := s.resolveScope(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, docs)
}

// ListDocuments returns every registered document, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context) ([]types.Document, error) {
	return s.registry.List(ctx)
}

// resolveScope turns the caller's document ids into registry entries. With
// no ids it falls back to the most recent upload; an empty registry is a
// NotFound for the request.
func (s *DocumentService) resolveScope(ctx context.Context, documentIDs []string) ([]types.Document, error) {
	if len(documentIDs) == 0 {
		latest, err := s.registry.LatestID(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, types.NotFound("no documents uploaded yet")
		}
		documentIDs = []string{latest}
	}

	docs := make([]types.Document, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := s.registry.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, types.NotFound("document %s", id)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}
