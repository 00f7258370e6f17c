package workflow

// NodeType identifies the behavior of a node. The set is closed: the node
// service registry must provide an implementation for every variant.
type NodeType string

const (
	TypeJob         NodeType = "job"
	TypeEmbed       NodeType = "embed"
	TypeGuru        NodeType = "guru"
	TypeGetAPI      NodeType = "get_api"
	TypePostAPI     NodeType = "post_api"
	TypeVectorQuery NodeType = "vector_query"
	TypeFilter      NodeType = "filter"
	TypeMap         NodeType = "map"
	TypeIfElse      NodeType = "if_else"
	TypeForEach     NodeType = "for_each"
	TypeMerge       NodeType = "merge"
	TypeSplit       NodeType = "split"
	TypeAdvanced    NodeType = "advanced"
	TypeReturn      NodeType = "return"
	TypeWorkflow    NodeType = "workflow"
)

// AllNodeTypes lists every NodeType variant. Used to assert registry
// exhaustiveness at startup.
var AllNodeTypes = []NodeType{
	TypeJob, TypeEmbed, TypeGuru, TypeGetAPI, TypePostAPI, TypeVectorQuery,
	TypeFilter, TypeMap, TypeIfElse, TypeForEach, TypeMerge, TypeSplit,
	TypeAdvanced, TypeReturn, TypeWorkflow,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range AllNodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Node is one vertex of a workflow graph. Metadata is type-specific
// configuration; only the node's registered service understands it.
// StructuredOutput is an optional declared output shape in JSON-schema form.
type Node struct {
	ID               int64          `json:"id"`
	WorkflowID       int64          `json:"workflow_id"`
	Type             NodeType       `json:"node_type"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	StructuredOutput map[string]any `json:"structured_output,omitempty"`
}

// Edge is a directed connection from a parent node to a child node.
// BranchLabel is nil except on edges leaving an if_else node, where it must
// be "true" or "false".
type Edge struct {
	ID          int64   `json:"id"`
	ParentID    int64   `json:"parent_id"`
	ChildID     int64   `json:"child_id"`
	BranchLabel *string `json:"branch_label,omitempty"`
}

// Trigger describes how a workflow is started from the outside. A workflow
// with neither a cron schedule nor API invocation is valid but inert, which
// the validator surfaces as a warning.
type Trigger struct {
	CronSchedule string `json:"cron_schedule,omitempty"`
	IsAPI        bool   `json:"is_api"`
}

// Configured reports whether any external trigger is set.
func (t Trigger) Configured() bool {
	return t.CronSchedule != "" || t.IsAPI
}

// Workflow is the persisted parent of nodes and edges.
type Workflow struct {
	ID           int64          `json:"id"`
	UUID         string         `json:"uuid"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	InputParams  map[string]any `json:"input_params,omitempty"`
	IsAPI        bool           `json:"is_api"`
	CronSchedule string         `json:"cron_schedule,omitempty"`
	TeamID       int64          `json:"team_id"`
}

// Trigger returns the workflow's trigger configuration.
func (w Workflow) Trigger() Trigger {
	return Trigger{CronSchedule: w.CronSchedule, IsAPI: w.IsAPI}
}

// OnErrorPolicy controls how the executor reacts when a node's execution
// fails.
type OnErrorPolicy string

const (
	// OnErrorFail marks the run failed and stops scheduling. The default.
	OnErrorFail OnErrorPolicy = "fail"
	// OnErrorSkip records the failure and skips descendants that depend on
	// this node's output.
	OnErrorSkip OnErrorPolicy = "skip"
	// OnErrorContinue substitutes an empty output and proceeds.
	OnErrorContinue OnErrorPolicy = "continue"
)
