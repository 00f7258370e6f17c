package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// jobService sends a templated prompt to a model.
type jobService struct {
	deps Deps
}

func (s *jobService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("job", structuredOutput); err != nil {
		return err
	}
	var m MetaJob
	if err := decodeStrict("job", meta, &m); err != nil {
		return err
	}
	if err := checkTemplate(m.Prompt, "metadata.prompt"); err != nil {
		return err
	}
	if m.System != "" {
		return checkTemplate(m.System, "metadata.system")
	}
	return nil
}

func (s *jobService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	if len(structuredOutput) > 0 {
		return workflow.ShapeFromSchema(structuredOutput)
	}
	return workflow.Shape{"text": "string"}
}

func (s *jobService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaJob
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("job", err.Error())
	}

	env := expr.NewEnv(inputs)
	prompt, _ := expr.Render(ctx, m.Prompt, env, s.deps.ExprTimeout)
	system, _ := expr.Render(ctx, m.System, env, s.deps.ExprTimeout)

	resp, err := s.deps.Model.Complete(ctx, CompletionRequest{
		Model:       m.ModelName,
		Prompt:      prompt,
		System:      system,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		Stop:        m.Stop,
	})
	if err != nil {
		return nil, errors.ExternalServiceError("model", err)
	}
	return map[string]any{"text": resp.Text}, nil
}

// embedService embeds a text selection and upserts it into a vector store.
type embedService struct {
	deps Deps
}

func (s *embedService) Validate(meta map[string]any, structuredOutput map[string]any) error {
	if err := checkStructuredOutput("embed", structuredOutput); err != nil {
		return err
	}
	var m MetaEmbed
	if err := decodeStrict("embed", meta, &m); err != nil {
		return err
	}
	if err := checkExpression(m.InputSelector, "metadata.input_selector"); err != nil {
		return err
	}
	if m.IDSelector != "" {
		return checkExpression(m.IDSelector, "metadata.id_selector")
	}
	return nil
}

func (s *embedService) Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape {
	return workflow.Shape{"embedded": "boolean", "count": "number"}
}

func (s *embedService) Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error) {
	var m MetaEmbed
	if err := decodeLoose(meta, &m); err != nil {
		return nil, errors.NodeConfig("embed", err.Error())
	}

	env := expr.NewEnv(inputs)
	selected, err := expr.EvaluateAt(ctx, m.InputSelector, env, "metadata.input_selector", s.deps.ExprTimeout)
	if err != nil {
		return nil, errors.ExpressionEval(m.InputSelector, err)
	}

	items, err := embedItems(ctx, selected, m, env, s.deps.ExprTimeout)
	if err != nil {
		return nil, err
	}

	count, err := s.deps.Embedding.Embed(ctx, EmbedRequest{
		StoreID:   m.VectorStoreID,
		Namespace: m.Namespace,
		Model:     m.ModelName,
		Upsert:    m.Upsert == nil || *m.Upsert,
		Items:     items,
	})
	if err != nil {
		return nil, errors.ExternalServiceError("embedding", err)
	}
	return map[string]any{"embedded": true, "count": count}, nil
}

// embedItems normalizes the selected value into embeddable items: a string
// becomes one item, an array becomes one item per element.
func embedItems(ctx context.Context, selected any, m MetaEmbed, env *expr.Env, timeout time.Duration) ([]EmbedItem, error) {
	toItem := func(value any, index int) (EmbedItem, error) {
		item := EmbedItem{Text: fmt.Sprintf("%v", value)}
		if m.IDSelector != "" {
			itemEnv := env.WithItem(value, index)
			id, err := expr.EvaluateAt(ctx, m.IDSelector, itemEnv, "metadata.id_selector", timeout)
			if err != nil {
				return EmbedItem{}, errors.ExpressionEval(m.IDSelector, err)
			}
			item.ID = fmt.Sprintf("%v", id)
		}
		return item, nil
	}

	switch v := selected.(type) {
	case nil:
		return nil, nil
	case []any:
		items := make([]EmbedItem, 0, len(v))
		for i, elem := range v {
			item, err := toItem(elem, i)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	default:
		item, err := toItem(v, 0)
		if err != nil {
			return nil, err
		}
		return []EmbedItem{item}, nil
	}
}
