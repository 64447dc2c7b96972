package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/docqa-be/types"
)

type serviceFixture struct {
	service   *DocumentService
	index     *fakeChunkIndex
	registry  *fakeRegistry
	asker     *fakeAsker
	extractor *fakeExtractor
}

func newServiceFixture() *serviceFixture {
	index := &fakeChunkIndex{}
	registry := newFakeRegistry()
	asker := &fakeAsker{}
	extractor := &fakeExtractor{}
	service := NewDocumentService(NewChunker(DefaultChunkingConfig), index, registry, asker, extractor, "docqa", "acme")
	service.now = func() time.Time { return time.Unix(1700000000, 0) }
	return &serviceFixture{service: service, index: index, registry: registry, asker: asker, extractor: extractor}
}

func (f *serviceFixture) seedDocument(t *testing.T, id, namespace string) {
	t.Helper()
	require.NoError(t, f.registry.Save(context.Background(), types.Document{
		DocumentID: id,
		TenantID:   "acme",
		Namespace:  namespace,
		FileName:   id + ".pdf",
		UploadedAt: 1700000000,
		ChunkCount: 3,
	}))
}

func TestUploadPlainText(t *testing.T) {
	f := newServiceFixture()

	content := []byte("page one text here\fpage two text here")
	doc, err := f.service.Upload(context.Background(), content, "bol.txt", "")
	require.NoError(t, err)

	assert.NotEmpty(t, doc.DocumentID)
	assert.Equal(t, "acme", doc.TenantID)
	assert.Equal(t, "docqa:acme", doc.Namespace)
	assert.Equal(t, "bol.txt", doc.FileName)
	assert.Equal(t, int64(1700000000), doc.UploadedAt)
	assert.Equal(t, 2, doc.ChunkCount)

	// chunks were indexed into the tenant namespace before registration
	require.Equal(t, 1, f.index.calls)
	assert.Equal(t, "docqa:acme", f.index.namespaces[0])
	chunks := f.index.chunks[0]
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 2, chunks[1].PageNumber)

	// and the document is resolvable afterwards
	saved, err := f.registry.Get(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, *doc, *saved)
}

func TestUploadSanitizesFileName(t *testing.T) {
	f := newServiceFixture()

	doc, err := f.service.Upload(context.Background(), []byte("some text"), "rate sheet (v2).txt", "")
	require.NoError(t, err)

	// the stored name is safe for listings, the extension survives
	assert.Equal(t, "rate_sheet__v2_.txt", doc.FileName)
}

func TestUploadExplicitTenant(t *testing.T) {
	f := newServiceFixture()

	doc, err := f.service.Upload(context.Background(), []byte("some content"), "note.md", "globex")
	require.NoError(t, err)
	assert.Equal(t, "globex", doc.TenantID)
	assert.Equal(t, "docqa:globex", doc.Namespace)
}

func TestUploadUnsupportedFileType(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Upload(context.Background(), []byte("data"), "photo.png", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
	assert.Zero(t, f.index.calls)
}

func TestUploadEmptyContent(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Upload(context.Background(), []byte("   \n\n  "), "empty.txt", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnprocessableContent))
	assert.Zero(t, f.index.calls)
	latest, _ := f.registry.LatestID(context.Background())
	assert.Empty(t, latest)
}

func TestAskEmptyQuestion(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")

	_, err := f.service.Ask(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
	assert.Zero(t, f.asker.calls)
}

func TestAskDefaultsToLatestDocument(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")
	f.seedDocument(t, "doc-2", "docqa:acme")

	_, err := f.service.Ask(context.Background(), "What is the rate?", nil)
	require.NoError(t, err)

	require.Equal(t, 1, f.asker.calls)
	assert.Equal(t, AskScope{DocumentIDs: []string{"doc-2"}, Namespace: "docqa:acme"}, f.asker.scopes[0])
}

func TestAskEmptyRegistry(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Ask(context.Background(), "What is the rate?", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestAskUnknownDocument(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")

	_, err := f.service.Ask(context.Background(), "What is the rate?", []string{"doc-1", "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Zero(t, f.asker.calls)
}

func TestAskInconsistentScopeRejectedBeforeRetrieval(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")
	f.seedDocument(t, "doc-2", "docqa:globex")

	_, err := f.service.Ask(context.Background(), "What is the rate?", []string{"doc-1", "doc-2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInconsistentScope))
	assert.Zero(t, f.asker.calls)
}

func TestAskMultiDocumentScope(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")
	f.seedDocument(t, "doc-2", "docqa:acme")

	_, err := f.service.Ask(context.Background(), "Compare the rates.", []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	assert.Equal(t, AskScope{DocumentIDs: []string{"doc-1", "doc-2"}, Namespace: "docqa:acme"}, f.asker.scopes[0])
}

func TestExtractResolvesScope(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")
	f.seedDocument(t, "doc-2", "docqa:acme")

	results, err := f.service.Extract(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-2", results[0].DocumentID)

	results, err = f.service.Extract(context.Background(), []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	assert.Equal(t, "doc-2", results[1].DocumentID)
}

func TestExtractEmptyRegistry(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.Extract(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Zero(t, f.extractor.calls)
}

func TestListDocuments(t *testing.T) {
	f := newServiceFixture()
	f.seedDocument(t, "doc-1", "docqa:acme")
	f.seedDocument(t, "doc-2", "docqa:acme")

	docs, err := f.service.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-2", docs[0].DocumentID)
}
