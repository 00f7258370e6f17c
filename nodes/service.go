package nodes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/expr"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// Service is the behavior contract for one node type.
type Service interface {
	// Validate checks type-specific metadata and the declared output shape.
	// Returns an *errors.AppError describing the first problem found.
	Validate(meta map[string]any, structuredOutput map[string]any) error

	// Plan returns an indicative output shape for planning, used when the
	// node declares no structured_output. Nothing is executed.
	Plan(meta map[string]any, inputShape workflow.Shape, structuredOutput map[string]any) workflow.Shape

	// Execute runs the node against its resolved real input and returns its
	// output. Control-flow types (if_else, for_each, merge, workflow) are
	// driven by the engine instead; their Execute returns an advisory stub.
	Execute(ctx context.Context, inputs map[string]any, meta map[string]any) (map[string]any, error)
}

// Deps carries the external collaborators leaf services call into. All of
// them default to inert stubs so the core never requires live backends.
type Deps struct {
	Model     ModelClient
	Embedding EmbeddingClient
	Guru      GuruClient
	HTTP      HTTPClient
	Vector    VectorClient

	// ExprTimeout bounds each expression evaluation during execute.
	ExprTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Model == nil {
		d.Model = stubModelClient{}
	}
	if d.Embedding == nil {
		d.Embedding = stubEmbeddingClient{}
	}
	if d.Guru == nil {
		d.Guru = stubGuruClient{}
	}
	if d.HTTP == nil {
		d.HTTP = stubHTTPClient{}
	}
	if d.Vector == nil {
		d.Vector = stubVectorClient{}
	}
	if d.ExprTimeout <= 0 {
		d.ExprTimeout = expr.DefaultTimeout
	}
	return d
}

// Registry maps node types to their services. The map is fixed after New:
// adding a sixteenth type means adding a case here, which the exhaustiveness
// test enforces against workflow.AllNodeTypes.
type Registry struct {
	mu       sync.RWMutex
	services map[workflow.NodeType]Service
}

// NewRegistry builds a registry with every node type registered.
func NewRegistry(deps Deps) *Registry {
	deps = deps.withDefaults()

	r := &Registry{services: make(map[workflow.NodeType]Service, len(workflow.AllNodeTypes))}
	r.services[workflow.TypeJob] = &jobService{deps: deps}
	r.services[workflow.TypeEmbed] = &embedService{deps: deps}
	r.services[workflow.TypeGuru] = &guruService{deps: deps}
	r.services[workflow.TypeGetAPI] = &getAPIService{deps: deps}
	r.services[workflow.TypePostAPI] = &postAPIService{deps: deps}
	r.services[workflow.TypeVectorQuery] = &vectorQueryService{deps: deps}
	r.services[workflow.TypeFilter] = &filterService{deps: deps}
	r.services[workflow.TypeMap] = &mapService{deps: deps}
	r.services[workflow.TypeIfElse] = &ifElseService{deps: deps}
	r.services[workflow.TypeForEach] = &forEachService{deps: deps}
	r.services[workflow.TypeMerge] = &mergeService{deps: deps}
	r.services[workflow.TypeSplit] = &splitService{deps: deps}
	r.services[workflow.TypeAdvanced] = &advancedService{deps: deps}
	r.services[workflow.TypeReturn] = &returnService{deps: deps}
	r.services[workflow.TypeWorkflow] = &workflowCallService{deps: deps}
	return r
}

// Get returns the service for a node type. A missing registration is a
// process configuration fault and is returned as such.
func (r *Registry) Get(t workflow.NodeType) (Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[t]
	if !ok {
		return nil, errors.UnknownNodeType(string(t))
	}
	return svc, nil
}

// Types returns the sorted list of registered node types.
func (r *Registry) Types() []workflow.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]workflow.NodeType, 0, len(r.services))
	for t := range r.services {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
