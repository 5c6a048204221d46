// Package status_repo provides the PostgreSQL workflow status catalog.
package status_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docstitch/internal/core/apperror"
	"docstitch/internal/domain/trade"
	"docstitch/internal/infrastructure/storage/postgres"
)

const tableName = "workflow_statuses"

// StatusRepo implements trade.StatusCatalog over the workflow_statuses table.
// The catalog is small and read-mostly; no caching is done here so status
// edits take effect on the next request.
type StatusRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ trade.StatusCatalog = (*StatusRepo)(nil)

// NewStatusRepo creates the status catalog.
func NewStatusRepo(txm *postgres.TxManager) *StatusRepo {
	return &StatusRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[trade.WorkflowStatus](),
	}
}

// Builder returns a new squirrel builder.
func (r *StatusRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *StatusRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(tableName)
}

// ActiveGeneratingStatuses lists the active statuses of a kind that may
// trigger generation, for operator selection.
func (r *StatusRepo) ActiveGeneratingStatuses(ctx context.Context, kind trade.Kind) ([]trade.WorkflowStatus, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"doc_kind":  kind,
			"active":    true,
			"generates": true,
		}).
		OrderBy("id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var statuses []trade.WorkflowStatus
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &statuses, sql, args...); err != nil {
		return nil, fmt.Errorf("list generating statuses: %w", err)
	}

	return statuses, nil
}

// Get fetches one status by id.
func (r *StatusRepo) Get(ctx context.Context, statusID int) (*trade.WorkflowStatus, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": statusID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	status := &trade.WorkflowStatus{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, status, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableName, statusID)
		}
		return nil, fmt.Errorf("get status %d: %w", statusID, err)
	}

	return status, nil
}

// TargetKindFor resolves the downstream kind a status generates, or nil when
// the status only closes.
func (r *StatusRepo) TargetKindFor(ctx context.Context, statusID int) (*trade.Kind, error) {
	status, err := r.Get(ctx, statusID)
	if err != nil {
		return nil, err
	}
	if !status.CanGenerate() {
		return nil, nil
	}
	return status.TargetKind, nil
}

// DefaultStatusFor returns the initial status for newly created documents of
// the kind.
func (r *StatusRepo) DefaultStatusFor(ctx context.Context, kind trade.Kind) (*trade.WorkflowStatus, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"doc_kind":   kind,
			"active":     true,
			"is_default": true,
		}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	status := &trade.WorkflowStatus{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, status, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableName, string(kind))
		}
		return nil, fmt.Errorf("default status for %s: %w", kind, err)
	}

	return status, nil
}
