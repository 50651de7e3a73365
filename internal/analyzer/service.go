// Package analyzer runs the per-request pipeline: resolve the raw log,
// reduce it to evidence, index and retrieve chunks, and ask the model for a
// diagnosis. Every step past input resolution degrades gracefully — a dead
// vector backend or LLM dents the response, not the process.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NEMYSESx/sift/internal/objectstore"
	"github.com/NEMYSESx/sift/internal/preprocess"
	"github.com/NEMYSESx/sift/internal/vectorstore"
)

// retrievalQuery is the fixed question asked of the indexed evidence.
const retrievalQuery = "Summarize the failure and suggest fixes"

const previewChars = 2000

// Retriever indexes evidence text and answers top-k queries against it.
type Retriever interface {
	Index(ctx context.Context, text, collection string) (vectorstore.IndexResult, error)
	Retrieve(ctx context.Context, query, collection string, k int) ([]vectorstore.RetrievedRecord, error)
}

// Generator produces the diagnosis text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) string
}

// PromptBuilder renders retrieved records and system facts into the prompt.
type PromptBuilder func([]vectorstore.RetrievedRecord, preprocess.SystemInfo) string

type Service struct {
	store      objectstore.Store
	retriever  Retriever
	generator  Generator
	prompt     PromptBuilder
	logger     *zap.Logger
	bucket     string
	prefix     string
	topK       int
	extractCfg preprocess.ExtractConfig
}

type Options struct {
	Bucket           string
	CollectionPrefix string
	TopK             int
	ExtractConfig    preprocess.ExtractConfig
}

func NewService(store objectstore.Store, retriever Retriever, generator Generator,
	prompt PromptBuilder, logger *zap.Logger, opts Options) *Service {
	return &Service{
		store:      store,
		retriever:  retriever,
		generator:  generator,
		prompt:     prompt,
		logger:     logger,
		bucket:     opts.Bucket,
		prefix:     opts.CollectionPrefix,
		topK:       opts.TopK,
		extractCfg: opts.ExtractConfig,
	}
}

// Request identifies the log to analyze: inline text, or a key previously
// stored in the logs bucket. Store asks for inline text to be persisted.
type Request struct {
	LogText    string `json:"log_text"`
	LogKey     string `json:"log_key"`
	IncidentID string `json:"incident_id"`
	Store      bool   `json:"store"`
}

// Result is the full analysis response.
type Result struct {
	IncidentID     string                        `json:"incident_id"`
	StoredKey      string                        `json:"stored_key,omitempty"`
	Collection     string                        `json:"collection"`
	ReducedPreview string                        `json:"reduced_preview"`
	ReducedLength  int                           `json:"reduced_length"`
	Metadata       preprocess.Metadata           `json:"metadata"`
	SystemInfo     preprocess.SystemInfo         `json:"system_info"`
	IndexedCount   int                           `json:"indexed_count"`
	IndexError     string                        `json:"index_error,omitempty"`
	RetrievedTopK  []vectorstore.RetrievedRecord `json:"retrieved_top_k"`
	RetrievalError string                        `json:"retrieval_error,omitempty"`
	LLMAnalysis    string                        `json:"llm_analysis,omitempty"`
}

// ErrNoInput is returned when the request names neither log text nor a key.
var ErrNoInput = fmt.Errorf("provide log_text or log_key")

// Analyze runs the pipeline. It returns an error only when the input cannot
// be resolved; backend failures along the way are reported inside Result.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	incidentID := req.IncidentID
	if incidentID == "" {
		incidentID = uuid.New().String()
	}
	// One collection per incident: concurrent analyses never share one.
	result := &Result{
		IncidentID:    incidentID,
		Collection:    fmt.Sprintf("%s_%s", s.prefix, incidentID),
		RetrievedTopK: []vectorstore.RetrievedRecord{},
	}

	rawText, storedKey, err := s.resolveInput(ctx, req, incidentID)
	if err != nil {
		return nil, err
	}
	result.StoredKey = storedKey

	reduced := preprocess.ExtractRelevant(rawText, s.extractCfg)
	result.ReducedLength = len(reduced)
	result.ReducedPreview = preview(reduced)
	result.Metadata = preprocess.Summarize(rawText)
	result.SystemInfo = preprocess.ExtractSystemInfo(rawText)

	indexResult, err := s.retriever.Index(ctx, reduced, result.Collection)
	if err != nil {
		s.logger.Error("indexing failed", zap.String("incident_id", incidentID), zap.Error(err))
		result.IndexError = err.Error()
	}
	result.IndexedCount = indexResult.Count

	retrieved, err := s.retriever.Retrieve(ctx, retrievalQuery, result.Collection, s.topK)
	if err != nil {
		s.logger.Error("retrieval failed", zap.String("incident_id", incidentID), zap.Error(err))
		result.RetrievalError = err.Error()
	} else {
		result.RetrievedTopK = retrieved
	}

	if len(result.RetrievedTopK) > 0 {
		prompt := s.prompt(result.RetrievedTopK, result.SystemInfo)
		result.LLMAnalysis = s.generator.Generate(ctx, prompt)
	}

	return result, nil
}

func (s *Service) resolveInput(ctx context.Context, req Request, incidentID string) (text, storedKey string, err error) {
	switch {
	case req.LogText != "":
		if req.Store {
			key := incidentID + ".log"
			if err := s.store.Put(ctx, []byte(req.LogText), key, s.bucket); err != nil {
				// Storage is a convenience here; analysis proceeds.
				s.logger.Error("failed to store log text", zap.String("key", key), zap.Error(err))
			} else {
				storedKey = key
			}
		}
		return req.LogText, storedKey, nil

	case req.LogKey != "":
		data, err := s.store.Get(ctx, req.LogKey, s.bucket)
		if err != nil {
			return "", "", fmt.Errorf("failed to fetch stored log: %w", err)
		}
		return decodeBytes(data), req.LogKey, nil

	default:
		return "", "", ErrNoInput
	}
}

// decodeBytes interprets stored bytes as UTF-8, substituting the
// replacement rune for anything invalid, so binary junk flows through the
// heuristics instead of breaking them.
func decodeBytes(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func preview(text string) string {
	if len(text) <= previewChars {
		return text
	}
	return text[:previewChars]
}
