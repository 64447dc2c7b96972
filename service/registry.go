package service

import (
	"context"
	"sort"

	"github.com/tieubaoca/docqa-be/database"
	"github.com/tieubaoca/docqa-be/types"
	"github.com/tieubaoca/docqa-be/utils"
)

// RegistryKeyPrefix is the synthetic id prefix for registry records.
const RegistryKeyPrefix = "docmeta#"

// RegistryNamespaceSuffix names the namespace holding registry entries,
// separate from every tenant's chunk namespace so document metadata never
// pollutes similarity search results.
const RegistryNamespaceSuffix = ":registry"

// Registry is the durable map from document id to upload metadata. Entries
// live in the same vector store as the chunks, in their own namespace, with
// the filename embedded so the storage medium accepts them. The store is
// eventually consistent: a Save may not be immediately visible to Get or
// List, and callers must not assume read-after-write.
type Registry struct {
	store     database.VectorStore
	dense     DenseEmbedder
	namespace string
}

func NewRegistry(store database.VectorStore, dense DenseEmbedder, namespacePrefix string) *Registry {
	return &Registry{
		store:     store,
		dense:     dense,
		namespace: namespacePrefix + RegistryNamespaceSuffix,
	}
}

// Save writes one registry entry. Entries are append/overwrite-only; there is
// no delete path.
func (r *Registry) Save(ctx context.Context, doc types.Document) error {
	// embed the bare name; the extension is noise for similarity
	vectors, err := r.dense.EmbedDense(ctx, []string{utils.GetFileNameWithoutExt(doc.FileName)})
	if err != nil {
		return types.UpstreamFailure("registry embedding", err)
	}

	record := database.Record{
		ID:    RegistryKeyPrefix + doc.DocumentID,
		Dense: vectors[0],
		Metadata: map[string]any{
			"document_id": doc.DocumentID,
			"tenant_id":   doc.TenantID,
			"namespace":   doc.Namespace,
			"file_name":   doc.FileName,
			"uploaded_at": doc.UploadedAt,
			"chunk_count": doc.ChunkCount,
		},
	}
	if err := r.store.Upsert(ctx, r.namespace, []database.Record{record}); err != nil {
		return types.UpstreamFailure("registry upsert", err)
	}
	return nil
}

// Get returns the entry for a document id, or nil when the id is unknown (or
// the entry is not yet visible).
func (r *Registry) Get(ctx context.Context, documentID string) (*types.Document, error) {
	records, err := r.store.FetchByIDs(ctx, r.namespace, []string{RegistryKeyPrefix + documentID})
	if err != nil {
		return nil, types.UpstreamFailure("registry fetch", err)
	}
	rec, ok := records[RegistryKeyPrefix+documentID]
	if !ok {
		return nil, nil
	}
	doc := documentFromMetadata(rec.Metadata)
	return &doc, nil
}

// List returns every registry entry, newest first, paging through the
// underlying store until exhausted.
func (r *Registry) List(ctx context.Context) ([]types.Document, error) {
	var ids []string
	token := ""
	for {
		page, next, err := r.store.ListIDs(ctx, r.namespace, RegistryKeyPrefix, listPageSize, token)
		if err != nil {
			return nil, types.UpstreamFailure("registry list", err)
		}
		ids = append(ids, page...)
		if next == "" {
			break
		}
		token = next
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := r.store.FetchByIDs(ctx, r.namespace, ids)
	if err != nil {
		return nil, types.UpstreamFailure("registry fetch", err)
	}

	docs := make([]types.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, documentFromMetadata(rec.Metadata))
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt != docs[j].UploadedAt {
			return docs[i].UploadedAt > docs[j].UploadedAt
		}
		return docs[i].DocumentID > docs[j].DocumentID
	})
	return docs, nil
}

// LatestID returns the most recently uploaded document id, or "" when the
// registry is empty.
func (r *Registry) LatestID(ctx context.Context) (string, error) {
	docs, err := r.List(ctx)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].DocumentID, nil
}

func documentFromMetadata(m map[string]any) types.Document {
	doc := types.Document{}
	if m == nil {
		return doc
	}
	doc.DocumentID, _ = m["document_id"].(string)
	doc.TenantID, _ = m["tenant_id"].(string)
	doc.Namespace, _ = m["namespace"].(string)
	doc.FileName, _ = m["file_name"].(string)
	switch v := m["uploaded_at"].(type) {
	case float64:
		doc.UploadedAt = int64(v)
	case int64:
		doc.UploadedAt = v
	case int:
		doc.UploadedAt = int64(v)
	}
	switch v := m["chunk_count"].(type) {
	case float64:
		doc.ChunkCount = int(v)
	case int:
		doc.ChunkCount = v
	}
	return doc
}
