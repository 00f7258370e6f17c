package nodes

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/validation"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// MergeStrategy selects how a merge node combines parent outputs.
type MergeStrategy string

const (
	// MergeUnion shallow-merges all parent outputs; the later parent in topo
	// order wins on key collision.
	MergeUnion MergeStrategy = "union"
	// MergeConcat concatenates array-valued keys and unions object-valued keys.
	MergeConcat MergeStrategy = "concat"
	// MergePreferLeft takes the first non-null value per key in parent
	// declaration order.
	MergePreferLeft MergeStrategy = "prefer_left"
)

// SplitMode selects how a split node partitions a collection.
type SplitMode string

const (
	// SplitGroupBy partitions by a computed key.
	SplitGroupBy SplitMode = "group_by"
	// SplitChunk partitions into fixed-size chunks.
	SplitChunk SplitMode = "chunk"
)

// Content types accepted by post_api and return nodes.
const (
	ContentJSON = "application/json"
	ContentForm = "application/x-www-form-urlencoded"
	ContentText = "text/plain"
)

// MetaCommon holds the fields every node type accepts.
type MetaCommon struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	TimeoutMS   *int     `json:"timeout_ms,omitempty" validate:"omitempty,gt=0"`
	Retry       *int     `json:"retry,omitempty" validate:"omitempty,gte=0"`
	OnError     string   `json:"on_error,omitempty" validate:"omitempty,oneof=fail skip continue"`
	Tags        []string `json:"tags,omitempty"`
}

// Policy returns the node's on_error policy, defaulting to fail.
func (m MetaCommon) Policy() workflow.OnErrorPolicy {
	switch m.OnError {
	case string(workflow.OnErrorSkip):
		return workflow.OnErrorSkip
	case string(workflow.OnErrorContinue):
		return workflow.OnErrorContinue
	default:
		return workflow.OnErrorFail
	}
}

// MetaJob configures a job node: a templated prompt sent to a model.
type MetaJob struct {
	MetaCommon
	Prompt      string   `json:"prompt" validate:"required,min=1"`
	ModelName   string   `json:"model_name" validate:"required,min=1"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Stop        []string `json:"stop,omitempty"`
	System      string   `json:"system,omitempty"`
}

// MetaEmbed configures an embed node: a text selection embedded and upserted
// into a vector store.
type MetaEmbed struct {
	MetaCommon
	VectorStoreID string            `json:"vector_store_id" validate:"required,min=1"`
	Namespace     string            `json:"namespace,omitempty"`
	ModelName     string            `json:"model_name,omitempty"`
	InputSelector string            `json:"input_selector" validate:"required,min=1"`
	IDSelector    string            `json:"id_selector,omitempty"`
	MetadataMap   map[string]string `json:"metadata_map,omitempty"`
	Upsert        *bool             `json:"upsert,omitempty"`
}

// MetaGuru configures a guru node.
type MetaGuru struct {
	MetaCommon
	Space         string         `json:"space" validate:"required,min=1"`
	QueryTemplate string         `json:"query_template" validate:"required,min=1"`
	TopK          *int           `json:"top_k,omitempty" validate:"omitempty,gt=0"`
	Filters       map[string]any `json:"filters,omitempty"`
}

// MetaGetAPI configures a get_api node.
type MetaGetAPI struct {
	MetaCommon
	URL        string            `json:"url" validate:"required,url"`
	Headers    map[string]string `json:"headers,omitempty"`
	QueryMap   map[string]string `json:"query_map,omitempty"`
	AuthPreset string            `json:"auth_preset,omitempty"`
}

// MetaPostAPI configures a post_api node.
type MetaPostAPI struct {
	MetaCommon
	URL         string            `json:"url" validate:"required,url"`
	Headers     map[string]string `json:"headers,omitempty"`
	BodyMap     map[string]any    `json:"body_map,omitempty"`
	ContentType string            `json:"content_type,omitempty" validate:"omitempty,oneof=application/json application/x-www-form-urlencoded text/plain"`
	AuthPreset  string            `json:"auth_preset,omitempty"`
}

// MetaVectorQuery configures a vector_query node.
type MetaVectorQuery struct {
	MetaCommon
	VectorStoreID string         `json:"vector_store_id" validate:"required,min=1"`
	Namespace     string         `json:"namespace,omitempty"`
	QueryTemplate string         `json:"query_template" validate:"required,min=1"`
	TopK          *int           `json:"top_k,omitempty" validate:"omitempty,gt=0"`
	Filters       map[string]any `json:"filters,omitempty"`
}

// MetaFilter configures a filter node.
type MetaFilter struct {
	MetaCommon
	ItemsSelector string `json:"items_selector,omitempty"`
	Where         string `json:"where" validate:"required,min=1"`
}

// MetaMap configures a map node: output key -> expression over the input.
type MetaMap struct {
	MetaCommon
	Mapping map[string]any `json:"mapping" validate:"required,min=1"`
}

// MetaIfElse configures an if_else node.
type MetaIfElse struct {
	MetaCommon
	Predicate string `json:"predicate" validate:"required,min=1"`
}

// MetaForEach configures a for_each node. Concurrency is accepted as a hint
// and stored; item execution is sequential.
type MetaForEach struct {
	MetaCommon
	ItemsSelector string `json:"items_selector" validate:"required,min=1"`
	Concurrency   *int   `json:"concurrency,omitempty" validate:"omitempty,gt=0"`
	Flatten       *bool  `json:"flatten,omitempty"`
}

// FlattenResults reports whether per-item results are concatenated into one
// array. Defaults to true.
func (m MetaForEach) FlattenResults() bool {
	return m.Flatten == nil || *m.Flatten
}

// MetaMerge configures a merge node.
type MetaMerge struct {
	MetaCommon
	Strategy        string `json:"strategy,omitempty" validate:"omitempty,oneof=union concat prefer_left"`
	ExpectedParents *int   `json:"expected_parents,omitempty" validate:"omitempty,gt=0"`
}

// MergeStrategy returns the configured strategy, defaulting to union.
func (m MetaMerge) MergeStrategy() MergeStrategy {
	if m.Strategy == "" {
		return MergeUnion
	}
	return MergeStrategy(m.Strategy)
}

// MetaSplit configures a split node.
type MetaSplit struct {
	MetaCommon
	By        string `json:"by" validate:"required,min=1"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=group_by chunk"`
	ChunkSize *int   `json:"chunk_size,omitempty" validate:"omitempty,gt=0"`
}

// SplitMode returns the configured mode, defaulting to group_by.
func (m MetaSplit) SplitMode() SplitMode {
	if m.Mode == "" {
		return SplitGroupBy
	}
	return SplitMode(m.Mode)
}

// MetaAdvanced configures an advanced node: a free-form expression.
type MetaAdvanced struct {
	MetaCommon
	Expression string `json:"expression" validate:"required,min=1"`
}

// MetaReturn configures a return node.
type MetaReturn struct {
	MetaCommon
	PayloadSelector string `json:"payload_selector" validate:"required,min=1"`
	ContentType     string `json:"content_type,omitempty" validate:"omitempty,oneof=application/json application/x-www-form-urlencoded text/plain"`
	StatusCode      *int   `json:"status_code,omitempty" validate:"omitempty,gte=100,lte=599"`
}

// MetaWorkflowCall configures a workflow node: a synchronous sub-workflow
// invocation.
type MetaWorkflowCall struct {
	MetaCommon
	WorkflowID        int64             `json:"workflow_id" validate:"required,gt=0"`
	InputMapping      map[string]string `json:"input_mapping,omitempty"`
	PropagateIdentity *bool             `json:"propagate_identity,omitempty"`
	Wait              string            `json:"wait,omitempty" validate:"omitempty,oneof=sync"`
}

// decodeStrict decodes metadata into out, rejecting unknown top-level keys
// and applying struct tag validation. Used by Validate: the metadata
// contract is closed per node type.
func decodeStrict(nodeType string, meta map[string]any, out any) error {
	if unknown := unknownKeys(meta, out); len(unknown) > 0 {
		return errors.UnknownField(nodeType, unknown)
	}
	if err := decodeLoose(meta, out); err != nil {
		return errors.NodeConfig(nodeType, err.Error())
	}
	if err := validation.Validate(out); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return errors.NodeConfig(nodeType, appErr.Message)
		}
		return errors.NodeConfig(nodeType, err.Error())
	}
	return nil
}

// decodeLoose decodes metadata into out without contract enforcement. Used
// at execution time, after validation has already passed.
func decodeLoose(meta map[string]any, out any) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("metadata is not serializable: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("metadata does not match the %T contract: %w", out, err)
	}
	return nil
}

// unknownKeys returns meta keys not present as json tags on out (including
// embedded structs), sorted for stable error messages.
func unknownKeys(meta map[string]any, out any) []string {
	allowed := make(map[string]struct{})
	collectJSONKeys(reflect.TypeOf(out).Elem(), allowed)

	var unknown []string
	for key := range meta {
		if _, ok := allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func collectJSONKeys(t reflect.Type, into map[string]struct{}) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectJSONKeys(field.Type, into)
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name != "" {
			into[name] = struct{}{}
		}
	}
}

// ParseCommon extracts the common metadata fields, tolerating whatever else
// is present. Never fails: malformed metadata yields the zero value, which
// carries the default fail policy.
func ParseCommon(meta map[string]any) MetaCommon {
	var common MetaCommon
	raw, err := json.Marshal(meta)
	if err != nil {
		return common
	}
	// Unknown fields are expected here; decode field by field.
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return common
	}
	pick := func(key string, dst any) {
		if v, ok := loose[key]; ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	pick("name", &common.Name)
	pick("description", &common.Description)
	pick("timeout_ms", &common.TimeoutMS)
	pick("retry", &common.Retry)
	pick("on_error", &common.OnError)
	pick("tags", &common.Tags)
	return common
}

// ParseIfElse decodes if_else metadata for the engine.
func ParseIfElse(meta map[string]any) (MetaIfElse, error) {
	var m MetaIfElse
	err := decodeLoose(meta, &m)
	return m, err
}

// ParseForEach decodes for_each metadata for the engine.
func ParseForEach(meta map[string]any) (MetaForEach, error) {
	var m MetaForEach
	err := decodeLoose(meta, &m)
	return m, err
}

// ParseMerge decodes merge metadata for the engine.
func ParseMerge(meta map[string]any) (MetaMerge, error) {
	var m MetaMerge
	err := decodeLoose(meta, &m)
	return m, err
}

// ParseReturn decodes return metadata for the engine.
func ParseReturn(meta map[string]any) (MetaReturn, error) {
	var m MetaReturn
	err := decodeLoose(meta, &m)
	return m, err
}

// ParseWorkflowCall decodes workflow metadata for the engine.
func ParseWorkflowCall(meta map[string]any) (MetaWorkflowCall, error) {
	var m MetaWorkflowCall
	err := decodeLoose(meta, &m)
	return m, err
}
