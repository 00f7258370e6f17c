package nodes

import "context"

// The client interfaces below are the seams to everything the core treats as
// opaque: model inference, embedding stores, and third-party APIs. Real
// implementations live with the transport/integration layer; the stubs here
// return indicative values so planning, tests, and dry runs work without
// live backends.

// CompletionRequest is a templated prompt sent to a model.
type CompletionRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature *float64
	MaxTokens   *int
	Stop        []string
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Text string
	Raw  map[string]any
}

// ModelClient performs model inference for job nodes.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// EmbedItem is one document to embed and upsert.
type EmbedItem struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// EmbedRequest embeds items into a vector store.
type EmbedRequest struct {
	StoreID   string
	Namespace string
	Model     string
	Upsert    bool
	Items     []EmbedItem
}

// EmbeddingClient embeds and upserts documents for embed nodes.
type EmbeddingClient interface {
	Embed(ctx context.Context, req EmbedRequest) (count int, err error)
}

// GuruClient queries a knowledge space for guru nodes.
type GuruClient interface {
	Search(ctx context.Context, space, query string, topK int, filters map[string]any) ([]map[string]any, error)
}

// APIRequest is an outbound HTTP call for get_api/post_api nodes.
type APIRequest struct {
	Method      string
	URL         string
	Headers     map[string]string
	Query       map[string]string
	Body        map[string]any
	ContentType string
	AuthPreset  string
}

// APIResponse is the reduced response handed back to the graph.
type APIResponse struct {
	Status int
	Body   map[string]any
}

// HTTPClient performs outbound API calls.
type HTTPClient interface {
	Do(ctx context.Context, req APIRequest) (APIResponse, error)
}

// VectorMatch is one scored result from a vector store query.
type VectorMatch struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// VectorQueryRequest queries a vector store.
type VectorQueryRequest struct {
	StoreID   string
	Namespace string
	Query     string
	TopK      int
	Filters   map[string]any
}

// VectorClient queries vector stores for vector_query nodes.
type VectorClient interface {
	Query(ctx context.Context, req VectorQueryRequest) ([]VectorMatch, error)
}

// --- inert defaults ---

type stubModelClient struct{}

func (stubModelClient) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{Text: ""}, nil
}

type stubEmbeddingClient struct{}

func (stubEmbeddingClient) Embed(_ context.Context, req EmbedRequest) (int, error) {
	return len(req.Items), nil
}

type stubGuruClient struct{}

func (stubGuruClient) Search(_ context.Context, _, _ string, _ int, _ map[string]any) ([]map[string]any, error) {
	return []map[string]any{}, nil
}

type stubHTTPClient struct{}

func (stubHTTPClient) Do(_ context.Context, _ APIRequest) (APIResponse, error) {
	return APIResponse{Status: 200, Body: map[string]any{}}, nil
}

type stubVectorClient struct{}

func (stubVectorClient) Query(_ context.Context, _ VectorQueryRequest) ([]VectorMatch, error) {
	return []VectorMatch{}, nil
}
