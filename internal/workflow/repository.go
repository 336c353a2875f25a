package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type Repository interface {
	GetActiveWorkflows(ctx context.Context) ([]Workflow, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActiveWorkflows(ctx context.Context) ([]Workflow, error) {
	query := `
		SELECT id, name, trigger, active, actions, created_at, updated_at
		FROM workflows
		WHERE active = true
		ORDER BY created_at ASC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []Workflow
	for rows.Next() {
		wf, err := ScanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return workflows, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// ScanWorkflow reads the column list id, name, trigger, active, actions, created_at, updated_at.
func ScanWorkflow(row scanner) (*Workflow, error) {
	var (
		wf      Workflow
		actions []byte
	)
	if err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.Trigger,
		&wf.Active,
		&actions,
		&wf.CreatedAt,
		&wf.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &wf.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode actions of workflow %s: %w", wf.ID, err)
		}
	}
	wf.SortActions()
	return &wf, nil
}
