package nodes

import (
	"context"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

const defaultTopK = 5

// guruService queries a knowledge space with a templated query.
type guruService struct {
	deps Deps
}

func (s *guruService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("guru", structuredOutput); err != nil {
		return err
	}
	var m MetaGuru
	if err := decodeStrict("guru", meta, &m); err != nil {
		return err
	}
	return checkTemplate(m.QueryTemplate, "metadata.query_template")
}

func (s *guruService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"items": "array"}
}

func (s *guruService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaGuru
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("guru", err.Error())
	}

	env := expr.NewEnv(inputs)
	query, _ := expr.Render(ctx, m.QueryTemplate, env, s.deps.ExprTimeout)

	topK := defaultTopK
	if m.TopK != nil {
		topK = *m.TopK
	}
	results, err := s.deps.Guru.Search(ctx, m.Space, query, topK, m.Filters)
	if err != nil {
		return nil, errors.ExternalServiceError("guru", err)
	}

	items := make([]any, len(results))
	for i, r := range results {
		items[i] = r
	}
	return map[string]any{"items": items}, nil
}

// getAPIService performs an outbound GET request.
type getAPIService struct {
	deps Deps
}

func (s *getAPIService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("get_api", structuredOutput); err != nil {
		return err
	}
	var m MetaGetAPI
	if err := decodeStrict("get_api", meta, &m); err != nil {
		return err
	}
	for key, tmpl := range m.QueryMap {
		if err := checkTemplate(tmpl, "metadata.query_map."+key); err != nil {
			return err
		}
	}
	return nil
}

func (s *getAPIService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"status": "number", "body": "object"}
}

func (s *getAPIService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaGetAPI
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("get_api", err.Error())
	}

	env := expr.NewEnv(inputs)
	query := make(map[string]string, len(m.QueryMap))
	for key, tmpl := range m.QueryMap {
		rendered, _ := expr.Render(ctx, tmpl, env, s.deps.ExprTimeout)
		query[key] = rendered
	}

	resp, err := s.deps.HTTP.Do(ctx, APIRequest{
		Method:     "GET",
		URL:        m.URL,
		Headers:    m.Headers,
		Query:      query,
		AuthPreset: m.AuthPreset,
	})
	if err != nil {
		return nil, errors.ExternalServiceError("http", err)
	}
	return map[string]any{"status": resp.Status, "body": resp.Body}, nil
}

// postAPIService performs an outbound POST request with an expression-mapped
// body.
type postAPIService struct {
	deps Deps
}

func (s *postAPIService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("post_api", structuredOutput); err != nil {
		return err
	}
	var m MetaPostAPI
	if err := decodeStrict("post_api", meta, &m); err != nil {
		return err
	}
	for key, value := range m.BodyMap {
		if tmpl, ok := value.(string); ok {
			if err := checkTemplate(tmpl, "metadata.body_map."+key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *postAPIService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"status": "number", "body": "object"}
}

func (s *postAPIService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaPostAPI
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("post_api", err.Error())
	}

	env := expr.NewEnv(inputs)
	body := make(map[string]any, len(m.BodyMap))
	for key, value := range m.BodyMap {
		tmpl, ok := value.(string)
		if !ok {
			body[key] = value
			continue
		}
		body[key] = renderBodyValue(ctx, tmpl, env, s.deps)
	}

	contentType := m.ContentType
	if contentType == "" {
		contentType = ContentJSON
	}
	resp, err := s.deps.HTTP.Do(ctx, APIRequest{
		Method:      "POST",
		URL:         m.URL,
		Headers:     m.Headers,
		Body:        body,
		ContentType: contentType,
		AuthPreset:  m.AuthPreset,
	})
	if err != nil {
		return nil, errors.ExternalServiceError("http", err)
	}
	return map[string]any{"status": resp.Status, "body": resp.Body}, nil
}

// renderBodyValue resolves a body_map string. A value that is exactly one
// placeholder keeps the resolved value's type; anything else renders to a
// string.
func renderBodyValue(ctx context.Context, tmpl string, env *expr.Env, deps Deps) any {
	if inner, ok := expr.SinglePlaceholder(tmpl); ok {
		value, err := expr.Evaluate(ctx, inner, env, deps.ExprTimeout)
		if err == nil {
			return value
		}
		return tmpl
	}
	rendered, _ := expr.Render(ctx, tmpl, env, deps.ExprTimeout)
	return rendered
}

// vectorQueryService runs a similarity search against a vector store.
type vectorQueryService struct {
	deps Deps
}

func (s *vectorQueryService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("vector_query", structuredOutput); err != nil {
		return err
	}
	var m MetaVectorQuery
	if err := decodeStrict("vector_query", meta, &m); err != nil {
		return err
	}
	return checkTemplate(m.QueryTemplate, "metadata.query_template")
}

func (s *vectorQueryService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{
		"results": workflow.Shape{
			"type": "array",
			"items": workflow.Shape{
				"id":      "string",
				"score":   "number",
				"payload": "object",
			},
		},
	}
}

func (s *vectorQueryService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaVectorQuery
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("vector_query", err.Error())
	}

	env := expr.NewEnv(inputs)
	query, _ := expr.Render(ctx, m.QueryTemplate, env, s.deps.ExprTimeout)

	topK := defaultTopK
	if m.TopK != nil {
		topK = *m.TopK
	}
	matches, err := s.deps.Vector.Query(ctx, VectorQueryRequest{
		StoreID:   m.VectorStoreID,
		Namespace: m.Namespace,
		Query:     query,
		TopK:      topK,
		Filters:   m.Filters,
	})
	if err != nil {
		return nil, errors.ExternalServiceError("vector store", err)
	}

	results := make([]any, len(matches))
	for i, match := range matches {
		results[i] = map[string]any{
			"id":      match.ID,
			"score":   match.Score,
			"payload": match.Payload,
		}
	}
	return map[string]any{"results": results}, nil
}
