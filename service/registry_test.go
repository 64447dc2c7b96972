package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/docqa-be/types"
)

func newTestRegistry(store *fakeVectorStore) *Registry {
	return NewRegistry(store, &fakeDense{vector: []float32{1, 2}}, "docqa")
}

func registryDoc(id string, uploadedAt int64) types.Document {
	return types.Document{
		DocumentID: id,
		TenantID:   "acme",
		Namespace:  "docqa:acme",
		FileName:   id + ".pdf",
		UploadedAt: uploadedAt,
		ChunkCount: 4,
	}
}

func TestRegistrySaveAndGetRoundtrip(t *testing.T) {
	store := newFakeVectorStore()
	registry := newTestRegistry(store)
	ctx := context.Background()

	doc := registryDoc("doc-1", 1700000100)
	require.NoError(t, registry.Save(ctx, doc))

	// registry entries live in their own namespace, keyed by prefix
	rec, ok := store.namespaces["docqa:registry"]["docmeta#doc-1"]
	require.True(t, ok)
	assert.NotEmpty(t, rec.Dense)

	got, err := registry.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc, *got)
}

func TestRegistrySaveEmbedsBareName(t *testing.T) {
	store := newFakeVectorStore()
	dense := &fakeDense{vector: []float32{1, 2}}
	registry := NewRegistry(store, dense, "docqa")

	require.NoError(t, registry.Save(context.Background(), registryDoc("doc-1", 1700000100)))

	// the extension is stripped before embedding the name
	require.Len(t, dense.inputs, 1)
	assert.Equal(t, []string{"doc-1"}, dense.inputs[0])
}

func TestRegistryGetUnknownIsNilNil(t *testing.T) {
	registry := newTestRegistry(newFakeVectorStore())

	got, err := registry.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRegistryListNewestFirst(t *testing.T) {
	store := newFakeVectorStore()
	store.pageLimit = 2 // force pagination through the id listing
	registry := newTestRegistry(store)
	ctx := context.Background()

	for i, id := range []string{"doc-c", "doc-a", "doc-e", "doc-b", "doc-d"} {
		require.NoError(t, registry.Save(ctx, registryDoc(id, int64(1700000000+i*60))))
	}

	docs, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 5)

	// newest first, regardless of id order
	assert.Equal(t, "doc-d", docs[0].DocumentID)
	assert.Equal(t, "doc-b", docs[1].DocumentID)
	assert.Equal(t, "doc-e", docs[2].DocumentID)
	assert.Equal(t, "doc-a", docs[3].DocumentID)
	assert.Equal(t, "doc-c", docs[4].DocumentID)
}

func TestRegistryListTieBreaksOnID(t *testing.T) {
	store := newFakeVectorStore()
	registry := newTestRegistry(store)
	ctx := context.Background()

	require.NoError(t, registry.Save(ctx, registryDoc("doc-a", 1700000000)))
	require.NoError(t, registry.Save(ctx, registryDoc("doc-b", 1700000000)))

	docs, err := registry.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-b", docs[0].DocumentID)
	assert.Equal(t, "doc-a", docs[1].DocumentID)
}

func TestRegistryListEmpty(t *testing.T) {
	registry := newTestRegistry(newFakeVectorStore())

	docs, err := registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRegistryLatestID(t *testing.T) {
	store := newFakeVectorStore()
	registry := newTestRegistry(store)
	ctx := context.Background()

	latest, err := registry.LatestID(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("doc-%d", i)
		require.NoError(t, registry.Save(ctx, registryDoc(id, int64(1700000000+i*60))))
	}

	latest, err = registry.LatestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-2", latest)
}

func TestRegistrySaveOverwritesExistingEntry(t *testing.T) {
	store := newFakeVectorStore()
	registry := newTestRegistry(store)
	ctx := context.Background()

	doc := registryDoc("doc-1", 1700000000)
	require.NoError(t, registry.Save(ctx, doc))
	doc.ChunkCount = 9
	require.NoError(t, registry.Save(ctx, doc))

	got, err := registry.Get(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 9, got.ChunkCount)

	docs, err := registry.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
