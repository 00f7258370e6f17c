package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/httpclient"
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/util"
)

// Build assembles node service backends from the configured upstreams.
// Services without a base URL are left nil so the registry substitutes its
// inert defaults. The outbound HTTP client always uses hc so get_api and
// post_api nodes inherit its auth presets and retry behavior.
func Build(cfg Config, hc *httpclient.Client) nodes.Deps {
	deps := nodes.Deps{HTTP: &APIClient{client: hc}}
	if cfg.Model.enabled() {
		deps.Model = &ModelClient{client: hc, cfg: cfg.Model}
	}
	if cfg.Embeddings.enabled() {
		deps.Embedding = &EmbeddingClient{client: hc, cfg: cfg.Embeddings}
	}
	if cfg.Guru.enabled() {
		deps.Guru = &GuruClient{client: hc, cfg: cfg.Guru}
	}
	if cfg.Vector.enabled() {
		deps.Vector = &VectorClient{client: hc, cfg: cfg.Vector}
	}
	return deps
}

func endpoint(cfg ServiceConfig, path string) string {
	return strings.TrimRight(cfg.BaseURL, "/") + path
}

func authHeaders(cfg ServiceConfig) map[string]string {
	if cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + cfg.APIKey}
}

// post sends a JSON request and fails on non-2xx statuses.
func post(ctx context.Context, hc *httpclient.Client, service string, cfg ServiceConfig, path string, body map[string]any) (map[string]any, error) {
	resp, err := hc.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     endpoint(cfg, path),
		Headers: authHeaders(cfg),
		Body:    body,
	})
	if err != nil {
		return nil, errors.ExternalServiceError(service, err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, errors.ExternalServiceError(service, fmt.Errorf("unexpected status %d", resp.Status))
	}
	return resp.Body, nil
}

// ModelClient calls a completion service for job nodes.
type ModelClient struct {
	client *httpclient.Client
	cfg    ServiceConfig
}

func (c *ModelClient) Complete(ctx context.Context, req nodes.CompletionRequest) (nodes.CompletionResponse, error) {
	model := util.Coalesce(req.Model, c.cfg.Model)
	body := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}

	raw, err := post(ctx, c.client, "model", c.cfg, "/v1/completions", body)
	if err != nil {
		return nodes.CompletionResponse{}, err
	}
	text, _ := raw["text"].(string)
	return nodes.CompletionResponse{Text: text, Raw: raw}, nil
}

// EmbeddingClient upserts documents into a vector store for embed nodes.
type EmbeddingClient struct {
	client *httpclient.Client
	cfg    ServiceConfig
}

func (c *EmbeddingClient) Embed(ctx context.Context, req nodes.EmbedRequest) (int, error) {
	items := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, map[string]any{
			"id":       item.ID,
			"text":     item.Text,
			"metadata": item.Metadata,
		})
	}
	model := util.Coalesce(req.Model, c.cfg.Model)

	raw, err := post(ctx, c.client, "embeddings", c.cfg, "/v1/embeddings", map[string]any{
		"store_id":  req.StoreID,
		"namespace": req.Namespace,
		"model":     model,
		"upsert":    req.Upsert,
		"items":     items,
	})
	if err != nil {
		return 0, err
	}
	if count, ok := raw["count"].(float64); ok {
		return int(count), nil
	}
	return len(req.Items), nil
}

// GuruClient searches a knowledge space for guru nodes.
type GuruClient struct {
	client *httpclient.Client
	cfg    ServiceConfig
}

func (c *GuruClient) Search(ctx context.Context, space, query string, topK int, filters map[string]any) ([]map[string]any, error) {
	raw, err := post(ctx, c.client, "guru", c.cfg, "/v1/search", map[string]any{
		"space":   space,
		"query":   query,
		"top_k":   topK,
		"filters": filters,
	})
	if err != nil {
		return nil, err
	}

	list, _ := raw["results"].([]any)
	results := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			results = append(results, m)
		}
	}
	return results, nil
}

// VectorClient queries a vector store for vector_query nodes.
type VectorClient struct {
	client *httpclient.Client
	cfg    ServiceConfig
}

func (c *VectorClient) Query(ctx context.Context, req nodes.VectorQueryRequest) ([]nodes.VectorMatch, error) {
	raw, err := post(ctx, c.client, "vector", c.cfg, "/v1/query", map[string]any{
		"store_id":  req.StoreID,
		"namespace": req.Namespace,
		"query":     req.Query,
		"top_k":     req.TopK,
		"filters":   req.Filters,
	})
	if err != nil {
		return nil, err
	}

	list, _ := raw["matches"].([]any)
	matches := make([]nodes.VectorMatch, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		match := nodes.VectorMatch{}
		match.ID, _ = m["id"].(string)
		match.Score, _ = m["score"].(float64)
		match.Payload, _ = m["payload"].(map[string]any)
		matches = append(matches, match)
	}
	return matches, nil
}

// APIClient adapts the shared outbound HTTP client to get_api/post_api
// nodes. Unlike the service clients above it reports non-2xx statuses as
// results, not errors: the graph decides how to handle upstream failures.
type APIClient struct {
	client *httpclient.Client
}

func (c *APIClient) Do(ctx context.Context, req nodes.APIRequest) (nodes.APIResponse, error) {
	out := httpclient.Request{
		Method:      req.Method,
		URL:         req.URL,
		Headers:     req.Headers,
		Query:       req.Query,
		ContentType: req.ContentType,
		AuthPreset:  req.AuthPreset,
	}
	if len(req.Body) > 0 {
		out.Body = req.Body
	}
	resp, err := c.client.Do(ctx, out)
	if err != nil {
		return nodes.APIResponse{}, err
	}
	return nodes.APIResponse{Status: resp.Status, Body: resp.Body}, nil
}
