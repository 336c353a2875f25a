package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"bookflow/internal/workflow"
	pkgerrors "bookflow/pkg/errors"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var workflowColumns = []string{"id", "name", "trigger", "active", "actions", "created_at", "updated_at"}

type Repository interface {
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error
	ListWorkflows(ctx context.Context, q ListWorkflowsQuery) ([]workflow.Workflow, int, error)
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	actions, err := encodeActions(wf.Actions)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert("workflows").
		Columns(workflowColumns...).
		Values(wf.ID, wf.Name, string(wf.Trigger), wf.Active, actions, wf.CreatedAt, wf.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("workflow with name '%s' already exists", wf.Name))
		}
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	query, args, err := psql.Select(workflowColumns...).
		From("workflows").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	wf, err := workflow.ScanWorkflow(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// ListWorkflows returns one page of workflows and the total number matching the filters.
func (r *PostgresRepository) ListWorkflows(ctx context.Context, q ListWorkflowsQuery) ([]workflow.Workflow, int, error) {
	filter := listFilter(q)

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("workflows").Where(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	query, args, err := psql.Select(workflowColumns...).
		From("workflows").
		Where(filter).
		OrderBy("created_at DESC", "name ASC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]workflow.Workflow, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("context cancelled: %w", err)
		}
		wf, err := workflow.ScanWorkflow(rows)
		if err != nil {
			return nil, 0, err
		}
		workflows = append(workflows, *wf)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return workflows, total, nil
}

func listFilter(q ListWorkflowsQuery) sq.And {
	filter := sq.And{}
	if q.Trigger != "" {
		filter = append(filter, sq.Eq{"trigger": q.Trigger})
	}
	if q.Active != nil {
		filter = append(filter, sq.Eq{"active": *q.Active})
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		filter = append(filter, sq.ILike{"name": "%" + escapeLike(s) + "%"})
	}
	return filter
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *PostgresRepository) UpdateWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()

	actions, err := encodeActions(wf.Actions)
	if err != nil {
		return err
	}

	query, args, err := psql.Update("workflows").
		Set("name", wf.Name).
		Set("trigger", string(wf.Trigger)).
		Set("active", wf.Active).
		Set("actions", actions).
		Set("updated_at", wf.UpdatedAt).
		Where(sq.Eq{"id": wf.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("workflow with name '%s' already exists", wf.Name))
		}
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return expectOneRow(res, wf.ID)
}

func (r *PostgresRepository) DeleteWorkflow(ctx context.Context, id string) error {
	query, args, err := psql.Delete("workflows").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return nil
}

func encodeActions(actions []workflow.Action) ([]byte, error) {
	if actions == nil {
		actions = []workflow.Action{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return data, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint")
}
