package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/tieubaoca/docqa-be/database"
	"github.com/tieubaoca/docqa-be/types"
)

// fakeVectorStore is an in-memory, immediately-consistent VectorStore.
type fakeVectorStore struct {
	namespaces map[string]map[string]database.Record

	queryMatches []database.Match // canned similarity results
	pageLimit    int              // cap ListIDs pages below the requested limit

	upsertCalls int
	queryCalls  int

	lastQueryNamespace string
	lastQueryDense     []float32
	lastQuerySparse    *database.SparseVector
	lastQueryTopK      int
	lastQueryFilter    map[string]any
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{namespaces: make(map[string]map[string]database.Record)}
}

func (s *fakeVectorStore) Upsert(ctx context.Context, namespace string, records []database.Record) error {
	s.upsertCalls++
	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]database.Record)
		s.namespaces[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	return nil
}

func (s *fakeVectorStore) Query(ctx context.Context, namespace string, dense []float32, sparse *database.SparseVector, topK int, filter map[string]any) ([]database.Match, error) {
	s.queryCalls++
	s.lastQueryNamespace = namespace
	s.lastQueryDense = dense
	s.lastQuerySparse = sparse
	s.lastQueryTopK = topK
	s.lastQueryFilter = filter

	matches := s.queryMatches
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *fakeVectorStore) FetchByIDs(ctx context.Context, namespace string, ids []string) (map[string]database.Record, error) {
	out := make(map[string]database.Record)
	ns := s.namespaces[namespace]
	for _, id := range ids {
		if rec, ok := ns[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (s *fakeVectorStore) ListIDs(ctx context.Context, namespace string, prefix string, limit int, token string) ([]string, string, error) {
	var all []string
	for id := range s.namespaces[namespace] {
		if prefix == "" || (len(id) >= len(prefix) && id[:len(prefix)] == prefix) {
			all = append(all, id)
		}
	}
	sort.Strings(all)

	if s.pageLimit > 0 && s.pageLimit < limit {
		limit = s.pageLimit
	}
	offset := 0
	if token != "" {
		offset, _ = strconv.Atoi(token)
	}
	if offset >= len(all) {
		return nil, "", nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	}
	return all[offset:end], next, nil
}

// fakeDense returns the same vector for every text.
type fakeDense struct {
	vector []float32
	calls  []int      // batch sizes, in order
	inputs [][]string // texts per call, in order
}

func (e *fakeDense) EmbedDense(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, len(texts))
	e.inputs = append(e.inputs, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), e.vector...)
	}
	return out, nil
}

// fakeSparse returns the same sparse vector for every text.
type fakeSparse struct {
	vector  database.SparseVector
	intents []string
}

func (e *fakeSparse) EmbedSparse(ctx context.Context, texts []string, intent string) ([]*database.SparseVector, error) {
	e.intents = append(e.intents, intent)
	out := make([]*database.SparseVector, len(texts))
	for i := range texts {
		out[i] = &database.SparseVector{
			Indices: append([]uint32(nil), e.vector.Indices...),
			Values:  append([]float32(nil), e.vector.Values...),
		}
	}
	return out, nil
}

// fakeModel replays scripted JSON responses in order. failFor forces an error
// for specific schema names.
type fakeModel struct {
	responses []string
	failFor   map[string]error

	schemaNames  []string
	lastMessages []types.Message
}

func (m *fakeModel) Invoke(ctx context.Context, messages []types.Message, schemaName string, schema *jsonschema.Definition, out any) error {
	m.schemaNames = append(m.schemaNames, schemaName)
	m.lastMessages = messages
	if err, ok := m.failFor[schemaName]; ok {
		return err
	}
	if len(m.responses) == 0 {
		return errors.New("no scripted response left")
	}
	response := m.responses[0]
	m.responses = m.responses[1:]
	return json.Unmarshal([]byte(response), out)
}

// fakeQueryIndex serves canned snippets per query text.
type fakeQueryIndex struct {
	results        map[string][]types.SourceSnippet
	defaultResults []types.SourceSnippet

	calls           int
	queries         []string
	lastNamespace   string
	lastDocumentID  string
	lastDocumentIDs []string
}

func (f *fakeQueryIndex) Query(ctx context.Context, text, namespace string, topK int, documentID string, documentIDs []string) ([]types.SourceSnippet, error) {
	f.calls++
	f.queries = append(f.queries, text)
	f.lastNamespace = namespace
	f.lastDocumentID = documentID
	f.lastDocumentIDs = documentIDs
	if r, ok := f.results[text]; ok {
		return r, nil
	}
	return f.defaultResults, nil
}

// fakeFetchIndex serves canned chunk snippets per document id.
type fakeFetchIndex struct {
	byDocument map[string][]types.SourceSnippet
}

func (f *fakeFetchIndex) FetchAll(ctx context.Context, documentID, namespace string) ([]types.SourceSnippet, error) {
	return f.byDocument[documentID], nil
}

// fakeRegistry is an immediately-consistent documentRegistry.
type fakeRegistry struct {
	docs  map[string]types.Document
	order []string // insertion order, latest last
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{docs: make(map[string]types.Document)}
}

func (r *fakeRegistry) Save(ctx context.Context, doc types.Document) error {
	if _, ok := r.docs[doc.DocumentID]; !ok {
		r.order = append(r.order, doc.DocumentID)
	}
	r.docs[doc.DocumentID] = doc
	return nil
}

func (r *fakeRegistry) Get(ctx context.Context, documentID string) (*types.Document, error) {
	doc, ok := r.docs[documentID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (r *fakeRegistry) List(ctx context.Context) ([]types.Document, error) {
	out := make([]types.Document, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.docs[r.order[i]])
	}
	return out, nil
}

func (r *fakeRegistry) LatestID(ctx context.Context) (string, error) {
	if len(r.order) == 0 {
		return "", nil
	}
	return r.order[len(r.order)-1], nil
}

// fakeAsker records calls without running a pipeline.
type fakeAsker struct {
	calls  int
	scopes []AskScope
	result *types.AskResult
}

func (a *fakeAsker) Ask(ctx context.Context, question string, scope AskScope) (*types.AskResult, error) {
	a.calls++
	a.scopes = append(a.scopes, scope)
	if a.result != nil {
		return a.result, nil
	}
	return &types.AskResult{Answer: "ok", Guardrail: types.GuardrailOK}, nil
}

// fakeExtractor records the documents handed to it.
type fakeExtractor struct {
	calls int
	docs  [][]types.Document
}

func (e *fakeExtractor) Extract(ctx context.Context, docs []types.Document) ([]types.ExtractionResult, error) {
	e.calls++
	e.docs = append(e.docs, docs)
	out := make([]types.ExtractionResult, len(docs))
	for i, d := range docs {
		out[i] = types.ExtractionResult{DocumentID: d.DocumentID, FileName: d.FileName}
	}
	return out, nil
}

// fakeChunkIndex records upserted chunks.
type fakeChunkIndex struct {
	calls      int
	namespaces []string
	chunks     [][]types.Chunk
}

func (f *fakeChunkIndex) Upsert(ctx context.Context, chunks []types.Chunk, namespace string) error {
	f.calls++
	f.namespaces = append(f.namespaces, namespace)
	f.chunks = append(f.chunks, chunks)
	return nil
}
