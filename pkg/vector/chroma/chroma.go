// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dialhaven/recall/pkg/tenant"
	"github.com/dialhaven/recall/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection for memory embeddings.
	DefaultCollectionName = "recall"
)

// Driver implements vector.Driver using Chroma's REST API. Tenant and
// caller scope travel as document metadata and are enforced through
// Chroma's where filters.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewDriver creates a new Chroma vector driver.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	collectionID, err := d.getOrCreateCollection(context.Background())
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q: %w", collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", collectionID),
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s", d.baseURL, d.collectionName)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
		return collection.ID, nil
	}

	// Collection doesn't exist, create it
	createURL := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections", d.baseURL)
	createBody := map[string]string{"name": d.collectionName}
	jsonBody, err := json.Marshal(createBody)
	if err != nil {
		return "", fmt.Errorf("marshaling create request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create collection: status %d: %s", resp.StatusCode, string(body))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}

	return collection.ID, nil
}

// Index stores documents with their embeddings and scope metadata.
func (d *Driver) Index(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	metadatas := make([]map[string]any, len(docs))

	for i, doc := range docs {
		if doc.TenantID == "" {
			return fmt.Errorf("indexing document %s: %w", doc.ID, vector.ErrMissingTenant)
		}

		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		metadatas[i] = map[string]any{
			"tenant_id": string(doc.TenantID),
			"caller_id": string(doc.CallerID),
		}
	}

	reqBody := chromaAddRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
	}

	if err := d.post(ctx, "upsert", reqBody, nil); err != nil {
		return fmt.Errorf("upserting documents: %w", err)
	}

	d.logger.Debug("indexed documents in chroma",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the most similar documents within the query's tenant and
// caller scope.
func (d *Driver) Query(ctx context.Context, q vector.Query) ([]vector.Result, error) {
	if q.TenantID == "" {
		return nil, fmt.Errorf("vector query: %w", vector.ErrMissingTenant)
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{q.Embedding},
		NResults:        topK,
		Where:           scopeFilter(q.TenantID, q.CallerID),
		Include:         []string{"metadatas", "distances"},
	}

	var queryResp chromaQueryResponse
	if err := d.post(ctx, "query", reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	var results []vector.Result

	// Only one query embedding is sent, so only the first group matters.
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	distances := queryResp.Distances[0]

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	for i, id := range ids {
		result := vector.Result{
			Document: vector.Document{ID: id},
		}

		if i < len(metadatas) && metadatas[i] != nil {
			if t, ok := metadatas[i]["tenant_id"].(string); ok {
				result.TenantID = tenant.ID(t)
			}
			if c, ok := metadatas[i]["caller_id"].(string); ok {
				result.CallerID = tenant.CallerID(c)
			}
		}

		// Lower distance = higher similarity
		if i < len(distances) {
			result.Score = 1.0 / (1.0 + distances[i])
		}

		results = append(results, result)
	}

	d.logger.Debug("queried chroma",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.post(ctx, "delete", chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	d.logger.Debug("deleted documents from chroma",
		zap.Int("count", len(ids)),
	)

	return nil
}

// PurgeTenant removes every document belonging to a tenant.
func (d *Driver) PurgeTenant(ctx context.Context, tenantID tenant.ID) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("purge: %w", vector.ErrMissingTenant)
	}

	where := map[string]any{"tenant_id": string(tenantID)}

	// Count first so the caller learns how many documents went away;
	// Chroma's delete endpoint does not report it.
	var getResp chromaGetResponse
	if err := d.post(ctx, "get", chromaGetRequest{Where: where}, &getResp); err != nil {
		return 0, fmt.Errorf("listing tenant documents: %w", err)
	}

	if len(getResp.IDs) == 0 {
		return 0, nil
	}

	if err := d.post(ctx, "delete", chromaDeleteRequest{Where: where}, nil); err != nil {
		return 0, fmt.Errorf("deleting tenant documents: %w", err)
	}

	d.logger.Info("purged tenant from chroma",
		zap.String("tenant_id", string(tenantID)),
		zap.Int("count", len(getResp.IDs)),
	)

	return int64(len(getResp.IDs)), nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// scopeFilter builds the where clause restricting results to a tenant.
// Caller-scoped queries also see tenant-wide documents (empty caller).
func scopeFilter(tenantID tenant.ID, callerID tenant.CallerID) map[string]any {
	return map[string]any{
		"$and": []map[string]any{
			{"tenant_id": string(tenantID)},
			{"$or": []map[string]any{
				{"caller_id": ""},
				{"caller_id": string(callerID)},
			}},
		},
	}
}

// post issues a collection-scoped POST and optionally decodes the response.
func (d *Driver) post(ctx context.Context, action string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s/%s", d.baseURL, d.collectionID, action)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

var _ vector.Driver = (*Driver)(nil)
