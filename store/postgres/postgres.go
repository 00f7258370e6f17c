// Package postgres implements the workflow store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/josephdodge8141/aspen-backend/database"
	apperrors "github.com/josephdodge8141/aspen-backend/errors"
	"github.com/josephdodge8141/aspen-backend/store"
	"github.com/josephdodge8141/aspen-backend/workflow"
)

// Store persists workflows in PostgreSQL. The schema enforces the graph
// constraints (cascade delete, no self-edges, unique parent/child pairs);
// violations surface as CONFLICT errors.
type Store struct {
	db *database.DB
}

var _ store.Store = (*Store)(nil)

// New creates a store over an established pool.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// CreateWorkflow saves a workflow and its graph in one transaction.
func (s *Store) CreateWorkflow(ctx context.Context, wf workflow.Workflow, nodes []workflow.Node, edges []workflow.Edge) (workflow.Workflow, error) {
	if wf.UUID == "" {
		wf.UUID = uuid.NewString()
	}
	inputParams, err := json.Marshal(wf.InputParams)
	if err != nil {
		return workflow.Workflow{}, apperrors.InvalidInput("input_params", err.Error())
	}

	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO workflows (uuid, name, description, input_params, is_api, cron_schedule, team_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			wf.UUID, wf.Name, wf.Description, inputParams, wf.IsAPI, wf.CronSchedule, wf.TeamID)
		if err := row.Scan(&wf.ID); err != nil {
			return err
		}

		for _, n := range nodes {
			metadata, err := json.Marshal(n.Metadata)
			if err != nil {
				return err
			}
			structured, err := json.Marshal(n.StructuredOutput)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO nodes (id, workflow_id, node_type, metadata, structured_output)
				VALUES ($1, $2, $3, $4, $5)`,
				n.ID, wf.ID, string(n.Type), metadata, structured); err != nil {
				return err
			}
		}

		for _, e := range edges {
			if _, err := tx.Exec(ctx, `
				INSERT INTO edges (workflow_id, parent_id, child_id, branch_label)
				VALUES ($1, $2, $3, $4)`,
				wf.ID, e.ParentID, e.ChildID, e.BranchLabel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return workflow.Workflow{}, mapError(err)
	}
	return wf, nil
}

// GetWorkflow returns one workflow by id.
func (s *Store) GetWorkflow(ctx context.Context, id int64) (workflow.Workflow, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT id, uuid, name, description, input_params, is_api, cron_schedule, team_id
		FROM workflows WHERE id = $1`, id)

	wf, err := scanWorkflow(row)
	if err != nil {
		if database.IsNotFound(err) {
			return workflow.Workflow{}, apperrors.NotFound("workflow", fmt.Sprint(id))
		}
		return workflow.Workflow{}, mapError(err)
	}
	return wf, nil
}

// ListWorkflows returns all workflows ordered by id.
func (s *Store) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, uuid, name, description, input_params, is_api, cron_schedule, team_id
		FROM workflows ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []workflow.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, mapError(err)
		}
		result = append(result, wf)
	}
	return result, mapError(rows.Err())
}

// GetGraph returns the workflow's nodes and edges, nodes ordered by id.
func (s *Store) GetGraph(ctx context.Context, workflowID int64) ([]workflow.Node, []workflow.Edge, error) {
	if _, err := s.GetWorkflow(ctx, workflowID); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, workflow_id, node_type, metadata, structured_output
		FROM nodes WHERE workflow_id = $1 ORDER BY id`, workflowID)
	if err != nil {
		return nil, nil, mapError(err)
	}
	defer rows.Close()

	var nodes []workflow.Node
	for rows.Next() {
		var n workflow.Node
		var nodeType string
		var metadata, structured []byte
		if err := rows.Scan(&n.ID, &n.WorkflowID, &nodeType, &metadata, &structured); err != nil {
			return nil, nil, mapError(err)
		}
		n.Type = workflow.NodeType(nodeType)
		if err := unmarshalObject(metadata, &n.Metadata); err != nil {
			return nil, nil, err
		}
		if err := unmarshalObject(structured, &n.StructuredOutput); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mapError(err)
	}

	edgeRows, err := s.db.Pool.Query(ctx, `
		SELECT id, parent_id, child_id, branch_label
		FROM edges WHERE workflow_id = $1 ORDER BY id`, workflowID)
	if err != nil {
		return nil, nil, mapError(err)
	}
	defer edgeRows.Close()

	var edges []workflow.Edge
	for edgeRows.Next() {
		var e workflow.Edge
		if err := edgeRows.Scan(&e.ID, &e.ParentID, &e.ChildID, &e.BranchLabel); err != nil {
			return nil, nil, mapError(err)
		}
		edges = append(edges, e)
	}
	return nodes, edges, mapError(edgeRows.Err())
}

// DeleteWorkflow removes a workflow; the schema cascades to its graph.
func (s *Store) DeleteWorkflow(ctx context.Context, id int64) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("workflow", fmt.Sprint(id))
	}
	return nil
}

func scanWorkflow(row pgx.Row) (workflow.Workflow, error) {
	var wf workflow.Workflow
	var inputParams []byte
	err := row.Scan(&wf.ID, &wf.UUID, &wf.Name, &wf.Description, &inputParams,
		&wf.IsAPI, &wf.CronSchedule, &wf.TeamID)
	if err != nil {
		return workflow.Workflow{}, err
	}
	if err := unmarshalObject(inputParams, &wf.InputParams); err != nil {
		return workflow.Workflow{}, err
	}
	return wf, nil
}

func unmarshalObject(raw []byte, out *map[string]any) error {
	if len(raw) == 0 || string(raw) == "null" {
		*out = nil
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.DatabaseError(err)
	}
	return nil
}

// mapError converts driver errors into AppErrors: constraint violations are
// CONFLICT, everything else a generic database failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if database.IsUniqueViolation(err) {
		return apperrors.Conflict("duplicate workflow graph entry")
	}
	if database.IsForeignKeyViolation(err) || database.IsCheckViolation(err) {
		return apperrors.Conflict(err.Error())
	}
	return apperrors.DatabaseError(err)
}
