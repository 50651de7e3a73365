package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NEMYSESx/sift/internal/objectstore"
	"github.com/NEMYSESx/sift/internal/preprocess"
	"github.com/NEMYSESx/sift/internal/vectorstore"
)

type fakeRetriever struct {
	indexedText       string
	indexedCollection string
	indexErr          error
	indexCount        int

	retrieveQuery      string
	retrieveCollection string
	retrieveK          int
	retrieveErr        error
	records            []vectorstore.RetrievedRecord
}

func (f *fakeRetriever) Index(_ context.Context, text, collection string) (vectorstore.IndexResult, error) {
	f.indexedText = text
	f.indexedCollection = collection
	if f.indexErr != nil {
		return vectorstore.IndexResult{}, f.indexErr
	}
	return vectorstore.IndexResult{Count: f.indexCount, Collection: collection}, nil
}

func (f *fakeRetriever) Retrieve(_ context.Context, query, collection string, k int) ([]vectorstore.RetrievedRecord, error) {
	f.retrieveQuery = query
	f.retrieveCollection = collection
	f.retrieveK = k
	return f.records, f.retrieveErr
}

type fakeGenerator struct {
	prompt   string
	response string
	calls    int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) string {
	f.calls++
	f.prompt = prompt
	return f.response
}

func newTestService(t *testing.T, retriever Retriever, generator Generator) (*Service, *objectstore.MemoryStore) {
	t.Helper()
	store := objectstore.NewMemoryStore()
	svc := NewService(store, retriever, generator,
		func(records []vectorstore.RetrievedRecord, info preprocess.SystemInfo) string {
			parts := make([]string, 0, len(records))
			for _, r := range records {
				parts = append(parts, r.Chunk)
			}
			return strings.Join(parts, "|")
		},
		zap.NewNop(),
		Options{
			Bucket:           "logs",
			CollectionPrefix: "logs",
			TopK:             5,
			ExtractConfig:    preprocess.DefaultExtractConfig(),
		})
	return svc, store
}

func TestAnalyzeInlineText(t *testing.T) {
	retriever := &fakeRetriever{
		indexCount: 3,
		records: []vectorstore.RetrievedRecord{
			{ID: int64(0), Score: 0.9, Chunk: "npm ERR! missing script: build"},
		},
	}
	generator := &fakeGenerator{response: "the build script is missing"}
	svc, _ := newTestService(t, retriever, generator)

	res, err := svc.Analyze(context.Background(), Request{
		LogText:    "line one\nERROR: npm ERR! missing script: build\nline three",
		IncidentID: "inc-7",
	})
	require.NoError(t, err)

	assert.Equal(t, "inc-7", res.IncidentID)
	assert.Equal(t, "logs_inc-7", res.Collection)
	assert.Equal(t, "logs_inc-7", retriever.indexedCollection)
	assert.Equal(t, "logs_inc-7", retriever.retrieveCollection)
	assert.Equal(t, 5, retriever.retrieveK)
	assert.Equal(t, retrievalQuery, retriever.retrieveQuery)

	assert.Contains(t, retriever.indexedText, "ERROR")
	assert.Equal(t, 3, res.IndexedCount)
	assert.Empty(t, res.IndexError)
	assert.Len(t, res.RetrievedTopK, 1)
	assert.Empty(t, res.RetrievalError)
	assert.Equal(t, "the build script is missing", res.LLMAnalysis)
	assert.Equal(t, "npm ERR! missing script: build", generator.prompt)

	assert.Equal(t, 3, res.Metadata.TotalLines)
	assert.Equal(t, 1, res.Metadata.ErrorLineCount)
	assert.Empty(t, res.StoredKey)
}

func TestAnalyzeGeneratesIncidentID(t *testing.T) {
	retriever := &fakeRetriever{}
	svc, _ := newTestService(t, retriever, &fakeGenerator{})

	res, err := svc.Analyze(context.Background(), Request{LogText: "ERROR: boom"})
	require.NoError(t, err)

	require.NotEmpty(t, res.IncidentID)
	assert.Equal(t, "logs_"+res.IncidentID, res.Collection)
}

func TestAnalyzeStoresInlineText(t *testing.T) {
	retriever := &fakeRetriever{}
	svc, store := newTestService(t, retriever, &fakeGenerator{})

	res, err := svc.Analyze(context.Background(), Request{
		LogText:    "ERROR: disk full",
		IncidentID: "inc-9",
		Store:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "inc-9.log", res.StoredKey)

	data, err := store.Get(context.Background(), "inc-9.log", "logs")
	require.NoError(t, err)
	assert.Equal(t, "ERROR: disk full", string(data))
}

func TestAnalyzeFromStoredKey(t *testing.T) {
	retriever := &fakeRetriever{}
	svc, store := newTestService(t, retriever, &fakeGenerator{})

	require.NoError(t, store.Put(context.Background(), []byte("ERROR: stored failure"), "old.log", "logs"))

	res, err := svc.Analyze(context.Background(), Request{LogKey: "old.log", IncidentID: "inc-1"})
	require.NoError(t, err)
	assert.Equal(t, "old.log", res.StoredKey)
	assert.Contains(t, retriever.indexedText, "stored failure")
	assert.Equal(t, 1, res.Metadata.ErrorLineCount)
}

func TestAnalyzeMissingKey(t *testing.T) {
	svc, _ := newTestService(t, &fakeRetriever{}, &fakeGenerator{})

	_, err := svc.Analyze(context.Background(), Request{LogKey: "nope.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch stored log")
}

func TestAnalyzeNoInput(t *testing.T) {
	svc, _ := newTestService(t, &fakeRetriever{}, &fakeGenerator{})

	_, err := svc.Analyze(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestAnalyzeIndexErrorIsDegraded(t *testing.T) {
	retriever := &fakeRetriever{
		indexErr: fmt.Errorf("qdrant down"),
		records:  []vectorstore.RetrievedRecord{{ID: int64(1), Score: 0.5, Chunk: "still here"}},
	}
	generator := &fakeGenerator{response: "partial diagnosis"}
	svc, _ := newTestService(t, retriever, generator)

	res, err := svc.Analyze(context.Background(), Request{LogText: "ERROR: x", IncidentID: "inc-2"})
	require.NoError(t, err)

	assert.Equal(t, "qdrant down", res.IndexError)
	assert.Zero(t, res.IndexedCount)
	// Retrieval still ran and fed the model.
	assert.Equal(t, "partial diagnosis", res.LLMAnalysis)
}

func TestAnalyzeRetrievalErrorSkipsLLM(t *testing.T) {
	retriever := &fakeRetriever{retrieveErr: fmt.Errorf("both tiers down")}
	generator := &fakeGenerator{response: "should not appear"}
	svc, _ := newTestService(t, retriever, generator)

	res, err := svc.Analyze(context.Background(), Request{LogText: "ERROR: x", IncidentID: "inc-3"})
	require.NoError(t, err)

	assert.Equal(t, "both tiers down", res.RetrievalError)
	assert.NotNil(t, res.RetrievedTopK)
	assert.Empty(t, res.RetrievedTopK)
	assert.Empty(t, res.LLMAnalysis)
	assert.Zero(t, generator.calls)
}

func TestAnalyzeEmptyRetrievalSkipsLLM(t *testing.T) {
	retriever := &fakeRetriever{records: nil}
	generator := &fakeGenerator{response: "should not appear"}
	svc, _ := newTestService(t, retriever, generator)

	res, err := svc.Analyze(context.Background(), Request{LogText: "ERROR: x", IncidentID: "inc-4"})
	require.NoError(t, err)
	assert.Empty(t, res.LLMAnalysis)
	assert.Zero(t, generator.calls)
}

func TestAnalyzePreviewTruncation(t *testing.T) {
	retriever := &fakeRetriever{}
	svc, _ := newTestService(t, retriever, &fakeGenerator{})

	long := "ERROR: " + strings.Repeat("x", 5000)
	res, err := svc.Analyze(context.Background(), Request{LogText: long, IncidentID: "inc-5"})
	require.NoError(t, err)

	assert.Len(t, res.ReducedPreview, previewChars)
	assert.Equal(t, len(retriever.indexedText), res.ReducedLength)
	assert.Greater(t, res.ReducedLength, previewChars)
}

func TestDecodeBytesInvalidUTF8(t *testing.T) {
	out := decodeBytes([]byte{'E', 'R', 'R', 0xff, 0xfe})
	assert.True(t, strings.HasPrefix(out, "ERR"))
	assert.Contains(t, out, "�")
}
