package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"bookflow/internal/workflow"
)

type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *WorkflowVersion) error
	GetVersions(ctx context.Context, workflowID string) ([]WorkflowVersion, error)
	GetVersion(ctx context.Context, workflowID string, version int) (*WorkflowVersion, error)
	GetNextVersion(ctx context.Context, workflowID string) (int, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, q AuditQuery) ([]AuditLog, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

var versionColumns = []string{"id", "workflow_id", "workflow_data", "version", "changed_by", "change_reason", "created_at"}

func (r *postgresVersioningRepository) CreateVersion(ctx context.Context, version *WorkflowVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("workflow_versions").
		Columns(versionColumns...).
		Values(version.ID, version.WorkflowID, version.WorkflowData, version.Version,
			version.ChangedBy, version.ChangeReason, version.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create workflow version: %w", err)
	}
	return nil
}

func (r *postgresVersioningRepository) GetVersions(ctx context.Context, workflowID string) ([]WorkflowVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("workflow_versions").
		Where(sq.Eq{"workflow_id": workflowID}).
		OrderBy("version DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]WorkflowVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return versions, nil
}

func (r *postgresVersioningRepository) GetVersion(ctx context.Context, workflowID string, version int) (*WorkflowVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("workflow_versions").
		Where(sq.Eq{"workflow_id": workflowID, "version": version}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	v, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func scanVersion(row interface{ Scan(...interface{}) error }) (*WorkflowVersion, error) {
	var (
		v    WorkflowVersion
		data []byte
	)
	if err := row.Scan(&v.ID, &v.WorkflowID, &data, &v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan version: %w", err)
	}
	v.WorkflowData = string(data)
	return &v, nil
}

func (r *postgresVersioningRepository) GetNextVersion(ctx context.Context, workflowID string) (int, error) {
	query, args, err := psql.Select("COALESCE(MAX(version), 0) + 1").
		From("workflow_versions").
		Where(sq.Eq{"workflow_id": workflowID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select: %w", err)
	}

	var version int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get next version: %w", err)
	}
	return version, nil
}

var auditColumns = []string{"id", "workflow_id", "entity_type", "action", "old_value", "new_value", "changed_by", "change_reason", "ip_address", "timestamp"}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	oldValue, err := marshalOptional(log.OldValue)
	if err != nil {
		return fmt.Errorf("failed to marshal old value: %w", err)
	}
	newValue, err := marshalOptional(log.NewValue)
	if err != nil {
		return fmt.Errorf("failed to marshal new value: %w", err)
	}

	query, args, err := psql.Insert("workflow_audit_logs").
		Columns(auditColumns...).
		Values(log.ID, log.WorkflowID, log.EntityType, log.Action, oldValue, newValue,
			log.ChangedBy, nullableString(log.ChangeReason), nullableString(log.IPAddress), log.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetAuditLogs returns the newest entries first, narrowed by whichever filters are set.
func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, q AuditQuery) ([]AuditLog, error) {
	builder := psql.Select(auditColumns...).
		From("workflow_audit_logs").
		OrderBy("timestamp DESC").
		Limit(uint64(q.Limit))
	if q.WorkflowID != "" {
		builder = builder.Where(sq.Eq{"workflow_id": q.WorkflowID})
	}
	if q.EntityType != "" {
		builder = builder.Where(sq.Eq{"entity_type": q.EntityType})
	}
	if q.Action != "" {
		builder = builder.Where(sq.Eq{"action": q.Action})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]AuditLog, 0)
	for rows.Next() {
		var (
			log                     AuditLog
			oldValue, newValue      []byte
			changeReason, ipAddress sql.NullString
		)
		if err := rows.Scan(
			&log.ID, &log.WorkflowID, &log.EntityType, &log.Action,
			&oldValue, &newValue, &log.ChangedBy, &changeReason, &ipAddress, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.ChangeReason = changeReason.String
		log.IPAddress = ipAddress.String

		if len(oldValue) > 0 {
			if err := json.Unmarshal(oldValue, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}
		if len(newValue) > 0 {
			if err := json.Unmarshal(newValue, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return logs, nil
}

func marshalOptional(v map[string]interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func workflowToJSON(wf *workflow.Workflow) (string, error) {
	data, err := json.Marshal(wf)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
