package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// restClient talks to Qdrant's HTTP API. It backs the retrieval fallback
// tier and carries indexing when the gRPC client never came up.
type restClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newRESTClient(baseURL, apiKey string) *restClient {
	return &restClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type restPoint struct {
	ID      int            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (rc *restClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		buf = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, rc.baseURL+path, buf)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if rc.apiKey != "" {
		req.Header.Set("api-key", rc.apiKey)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// recreateCollection drops any previous collection of the same name and
// creates a fresh one sized for dim-dimensional cosine vectors.
func (rc *restClient) recreateCollection(ctx context.Context, collection string, dim int) error {
	// A 404 on delete just means there was nothing to drop.
	if _, err := rc.do(ctx, http.MethodDelete, "/collections/"+collection, nil); err != nil {
		if _, getErr := rc.do(ctx, http.MethodGet, "/collections/"+collection, nil); getErr == nil {
			return fmt.Errorf("failed to delete collection %s: %w", collection, err)
		}
	}

	createReq := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if _, err := rc.do(ctx, http.MethodPut, "/collections/"+collection, createReq); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	return nil
}

func (rc *restClient) upsertPoints(ctx context.Context, collection string, points []restPoint) error {
	upsertReq := map[string]any{"points": points}
	if _, err := rc.do(ctx, http.MethodPut, "/collections/"+collection+"/points", upsertReq); err != nil {
		return fmt.Errorf("failed to upsert points into %s: %w", collection, err)
	}
	return nil
}

// search posts the documented search body and normalizes whatever envelope
// the server answers with. Different Qdrant versions have reported hits
// under different top-level keys and in different per-hit layouts; all
// known ones collapse into RetrievedRecord. An envelope matching none of
// them yields an empty result, not an error.
func (rc *restClient) search(ctx context.Context, collection string, vector []float32, limit int) ([]RetrievedRecord, error) {
	searchReq := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}

	body, err := rc.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", searchReq)
	if err != nil {
		return nil, err
	}

	return normalizeSearchResponse(body), nil
}

// The hit list has been seen under "result", "hits" and "points".
type searchEnvelope struct {
	Result json.RawMessage `json:"result"`
	Hits   json.RawMessage `json:"hits"`
	Points json.RawMessage `json:"points"`
}

// hitDecoder decodes one raw hit, or reports that the hit is not of its
// shape so the next decoder gets a turn.
type hitDecoder func(raw json.RawMessage) (RetrievedRecord, bool)

// Ordered: the nested {point: {...}, score} layout is checked before the
// flat one because a nested hit also has a top-level score field and would
// otherwise half-match flat.
var hitDecoders = []hitDecoder{decodeNestedHit, decodeFlatHit}

func normalizeSearchResponse(body []byte) []RetrievedRecord {
	var envelope searchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return []RetrievedRecord{}
	}

	var rawHits []json.RawMessage
	for _, candidate := range []json.RawMessage{envelope.Result, envelope.Hits, envelope.Points} {
		if len(candidate) == 0 {
			continue
		}
		if err := json.Unmarshal(candidate, &rawHits); err == nil && rawHits != nil {
			break
		}
		rawHits = nil
	}

	records := make([]RetrievedRecord, 0, len(rawHits))
	for _, raw := range rawHits {
		for _, decode := range hitDecoders {
			if record, ok := decode(raw); ok {
				records = append(records, record)
				break
			}
		}
	}
	return records
}

// decodeNestedHit handles {"point": {"id": ..., "payload": {...}}, "score": ...}.
func decodeNestedHit(raw json.RawMessage) (RetrievedRecord, bool) {
	var hit struct {
		Point *struct {
			ID      json.RawMessage `json:"id"`
			Payload map[string]any  `json:"payload"`
		} `json:"point"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &hit); err != nil || hit.Point == nil {
		return RetrievedRecord{}, false
	}

	return RetrievedRecord{
		ID:    decodeID(hit.Point.ID),
		Score: hit.Score,
		Chunk: payloadChunk(hit.Point.Payload),
	}, true
}

// decodeFlatHit handles {"id": ..., "score": ..., "payload": {...}}.
func decodeFlatHit(raw json.RawMessage) (RetrievedRecord, bool) {
	var hit struct {
		ID      json.RawMessage `json:"id"`
		Score   float64         `json:"score"`
		Payload map[string]any  `json:"payload"`
	}
	if err := json.Unmarshal(raw, &hit); err != nil || len(hit.ID) == 0 {
		return RetrievedRecord{}, false
	}

	return RetrievedRecord{
		ID:    decodeID(hit.ID),
		Score: hit.Score,
		Chunk: payloadChunk(hit.Payload),
	}, true
}

// decodeID keeps integer point ids as int64 and UUID ids as string, so the
// two retrieval tiers report identical ids for the same point.
func decodeID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return int64(f)
	}
	return v
}

func payloadChunk(payload map[string]any) string {
	if chunk, ok := payload["chunk"].(string); ok {
		return chunk
	}
	return ""
}
