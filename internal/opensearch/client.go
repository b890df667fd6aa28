// Package opensearch wraps the OpenSearch calls the executor issues in
// response to a planned batch.Batch: bulk document operations and index
// lifecycle management (create/delete/update-settings/rename/swap).
//
// Adapted from the teacher indexer's internal/opensearch/client.go: same
// client construction and bulk-request shape, generalized from a
// research-document-specific mapping to an arbitrary-document index and
// extended with the lifecycle calls the fuller batch taxonomy needs
// (UpdateSettings, RenameIndex, SwapAliases) that the teacher's one-shot
// reindex tool never required.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/sudarshan/search-indexer/internal/cache"
	"github.com/sudarshan/search-indexer/internal/config"
)

// Client wraps OpenSearch operations.
type Client struct {
	client *opensearch.Client
	cfg    *config.Config

	// settingsCache remembers the last settings document applied to each
	// index, so a batch that fuses an unchanged Settings task with a
	// document operation doesn't pay for a redundant PUT. Misses simply
	// fall through to the network call, so a cold or lost cache only
	// costs performance, never correctness.
	settingsCache *cache.Cache[map[string]interface{}]
}

// Document is a generic document to be indexed or updated: ID is the
// external (mongo/task-store) identifier, Source is the arbitrary JSON
// body.
type Document struct {
	ID     string                 `json:"-"`
	Source map[string]interface{} `json:"-"`
}

// NewClient creates a new OpenSearch client and verifies connectivity.
func NewClient(cfg *config.Config) (*Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.OpenSearchVerifyCerts,
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.OpenSearchHosts,
		Username:  cfg.OpenSearchUser,
		Password:  cfg.OpenSearchPassword,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("opensearch info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch error: %s", res.String())
	}

	settingsCache, err := cache.New[map[string]interface{}](cfg.SettingsCacheDir)
	if err != nil {
		return nil, fmt.Errorf("opensearch: settings cache: %w", err)
	}
	_ = settingsCache.Load()

	return &Client{client: client, cfg: cfg, settingsCache: settingsCache}, nil
}

// BulkIndex indexes or replaces multiple documents in a single bulk call.
// It implements the document side of DocumentAddition/DocumentUpdate
// batches and the document-side of the fused settings variants. Returns
// the set of ids that failed, if any.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []Document) (failed []string, err error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": index,
				"_id":    doc.ID,
			},
		}
		actionBytes, _ := json.Marshal(action)
		buf.Write(actionBytes)
		buf.WriteByte('\n')

		docBytes, _ := json.Marshal(doc.Source)
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	return c.runBulkWithRetry(ctx, buf.String())
}

// BulkDelete removes multiple documents by id in a single bulk call. It
// implements the DocumentDeletion side of a batch.
func (c *Client) BulkDelete(ctx context.Context, index string, ids []string) (failed []string, err error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	for _, id := range ids {
		action := map[string]interface{}{
			"delete": map[string]interface{}{
				"_index": index,
				"_id":    id,
			},
		}
		actionBytes, _ := json.Marshal(action)
		buf.Write(actionBytes)
		buf.WriteByte('\n')
	}

	return c.runBulkWithRetry(ctx, buf.String())
}

// ClearDocuments removes every document from index without deleting the
// index itself. It implements DocumentClear.
func (c *Client) ClearDocuments(ctx context.Context, index string) error {
	req := opensearchapi.DeleteByQueryRequest{
		Index: []string{index},
		Body:  strings.NewReader(`{"query":{"match_all":{}}}`),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("clear documents error: %s", res.String())
	}
	return nil
}

// runBulkWithRetry issues a bulk request, retrying transient failures with
// exponential backoff the way the teacher's embedding client retried HTTP
// calls. This is where that retry shape was relocated to once the
// embedding client itself was dropped (nothing in this domain calls an
// embedding service).
func (c *Client) runBulkWithRetry(ctx context.Context, body string) (failed []string, err error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		failed, lastErr = c.runBulk(ctx, body)
		if lastErr == nil {
			return failed, nil
		}
		if attempt < c.cfg.MaxRetries-1 {
			backoff := time.Duration(1<<attempt) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("bulk request failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) runBulk(ctx context.Context, body string) ([]string, error) {
	req := opensearchapi.BulkRequest{
		Body:    strings.NewReader(body),
		Refresh: "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("bulk error: %s", res.String())
	}

	var bulkRes struct {
		Items []struct {
			Index struct {
				ID     string `json:"_id"`
				Status int    `json:"status"`
			} `json:"index"`
			Delete struct {
				ID     string `json:"_id"`
				Status int    `json:"status"`
			} `json:"delete"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	var failed []string
	for _, item := range bulkRes.Items {
		id, status := item.Index.ID, item.Index.Status
		if id == "" {
			id, status = item.Delete.ID, item.Delete.Status
		}
		if status < 200 || status >= 300 {
			failed = append(failed, id)
		}
	}
	return failed, nil
}

// CreateIndex creates index with the given mapping document. It
// implements IndexCreation.
func (c *Client) CreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	res, err := c.client.Indices.Exists([]string{index})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	createReq := opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}
	res, err = createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index error: %s", res.String())
	}
	return nil
}

// UpdateSettings applies a settings document to an existing index in
// place. It implements IndexUpdate, and the settings half of Settings,
// ClearAndSettings, SettingsAndDocumentAddition, and
// SettingsAndDocumentUpdate. A no-op settings update (identical to the
// last one cached for index) is skipped.
func (c *Client) UpdateSettings(ctx context.Context, index string, settings map[string]interface{}) error {
	if cached, ok := c.settingsCache.Get(index); ok && reflect.DeepEqual(cached, settings) {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{"index": settings})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	req := opensearchapi.IndicesPutSettingsRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("update settings error: %s", res.String())
	}

	c.settingsCache.Set(index, settings)
	if err := c.settingsCache.Save(); err != nil {
		return fmt.Errorf("persist settings cache: %w", err)
	}
	return nil
}

// RenameIndex gives an index a new name. OpenSearch has no native rename,
// so this reindexes into the new name and deletes the old index —
// it implements IndexRename.
func (c *Client) RenameIndex(ctx context.Context, oldName, newName string) error {
	body, err := json.Marshal(map[string]interface{}{
		"source": map[string]string{"index": oldName},
		"dest":   map[string]string{"index": newName},
	})
	if err != nil {
		return fmt.Errorf("marshal reindex body: %w", err)
	}

	req := opensearchapi.ReindexRequest{
		Body: bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("reindex error: %s", res.String())
	}

	if err := c.DeleteIndex(ctx, oldName); err != nil {
		return err
	}
	if cached, ok := c.settingsCache.Get(oldName); ok {
		c.settingsCache.Set(newName, cached)
	}
	c.settingsCache.Delete(oldName)
	return c.settingsCache.Save()
}

// SwapAliases atomically repoints alias from oldIndex to newIndex. It
// implements IndexSwap.
func (c *Client) SwapAliases(ctx context.Context, alias, oldIndex, newIndex string) error {
	body, err := json.Marshal(map[string]interface{}{
		"actions": []map[string]interface{}{
			{"remove": map[string]string{"index": oldIndex, "alias": alias}},
			{"add": map[string]string{"index": newIndex, "alias": alias}},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal alias actions: %w", err)
	}

	req := opensearchapi.IndicesUpdateAliasesRequest{
		Body: bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("swap aliases: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("swap aliases error: %s", res.String())
	}
	return nil
}

// DeleteIndex deletes index entirely. It implements IndexDeletion.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	res, err := c.client.Indices.Delete([]string{index})
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete index error: %s", res.String())
	}
	c.settingsCache.Delete(index)
	return c.settingsCache.Save()
}

// Close closes the client (no-op for opensearch-go but kept for interface
// consistency with the other backend clients).
func (c *Client) Close() error {
	return nil
}

// SettingsCacheStats reports the size of the persisted settings cache, for
// startup diagnostics.
func (c *Client) SettingsCacheStats() (exists bool, entries int, sizeBytes int64, err error) {
	entries, sizeBytes, err = c.settingsCache.Stats()
	if err != nil {
		return false, 0, 0, err
	}
	return c.settingsCache.Exists(), entries, sizeBytes, nil
}
