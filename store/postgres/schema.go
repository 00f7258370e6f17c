package postgres

import "github.com/josephdodge8141/aspen-backend/database/migration"

// Migrations holds the schema history for the workflow store, applied in
// order by the migration runner.
var Migrations = []migration.Migration{
	{
		ID:          "0001_workflows",
		Description: "workflows table",
		Up: `
			CREATE TABLE IF NOT EXISTS workflows (
				id            BIGSERIAL PRIMARY KEY,
				uuid          UUID NOT NULL UNIQUE,
				name          TEXT NOT NULL,
				description   TEXT NOT NULL DEFAULT '',
				input_params  JSONB,
				is_api        BOOLEAN NOT NULL DEFAULT FALSE,
				cron_schedule TEXT NOT NULL DEFAULT '',
				team_id       BIGINT NOT NULL DEFAULT 0,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
	},
	{
		ID:          "0002_nodes",
		Description: "nodes table, composite key per workflow",
		Up: `
			CREATE TABLE IF NOT EXISTS nodes (
				id                BIGINT NOT NULL,
				workflow_id       BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				node_type         TEXT NOT NULL,
				metadata          JSONB,
				structured_output JSONB,
				PRIMARY KEY (workflow_id, id)
			)`,
	},
	{
		ID:          "0003_edges",
		Description: "edges table with graph constraints",
		Up: `
			CREATE TABLE IF NOT EXISTS edges (
				id           BIGSERIAL PRIMARY KEY,
				workflow_id  BIGINT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				parent_id    BIGINT NOT NULL,
				child_id     BIGINT NOT NULL,
				branch_label TEXT,
				CONSTRAINT edges_no_self_loop CHECK (parent_id <> child_id),
				CONSTRAINT edges_unique_pair UNIQUE (workflow_id, parent_id, child_id),
				FOREIGN KEY (workflow_id, parent_id) REFERENCES nodes(workflow_id, id) ON DELETE CASCADE,
				FOREIGN KEY (workflow_id, child_id) REFERENCES nodes(workflow_id, id) ON DELETE CASCADE
			)`,
	},
}
