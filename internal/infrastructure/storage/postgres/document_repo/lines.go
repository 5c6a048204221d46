package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docstitch/internal/core/apperror"
	"docstitch/internal/domain/trade"
	"docstitch/internal/infrastructure/storage/postgres"
)

// LineRepo implements trade.LineRepository over per-kind line tables.
type LineRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ trade.LineRepository = (*LineRepo)(nil)

// NewLineRepo creates the line repository.
func NewLineRepo(txm *postgres.TxManager) *LineRepo {
	return &LineRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[trade.DocumentLine](),
	}
}

// Builder returns a new squirrel builder.
func (r *LineRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// GetLines returns a document's lines ordered by position.
func (r *LineRepo) GetLines(ctx context.Context, kind trade.Kind, documentCode string) ([]trade.DocumentLine, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(kind.LinesTable()).
		Where(squirrel.Eq{"document_code": documentCode}).
		OrderBy("position ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []trade.DocumentLine
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines %s %s: %w", kind.LinesTable(), documentCode, err)
	}

	return lines, nil
}

// SaveLine updates one line in place. Used by the breakdown engine for
// served-quantity increments.
func (r *LineRepo) SaveLine(ctx context.Context, kind trade.Kind, line *trade.DocumentLine) error {
	data := postgres.StructToMap(line)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in line")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" {
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(kind.LinesTable()).
		SetMap(filteredData).
		Where(squirrel.Eq{"id": line.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind.LinesTable(), err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(kind.LinesTable(), line.ID.String())
	}

	return nil
}

// ReplaceLines rewrites the whole line set of a document: delete then insert
// in one statement each. Callers are expected to run this inside a
// transaction; outside one a crash between the two statements loses lines.
func (r *LineRepo) ReplaceLines(ctx context.Context, kind trade.Kind, documentCode string, lines []trade.DocumentLine) error {
	querier := r.txm.GetQuerier(ctx)

	delQ := r.Builder().
		Delete(kind.LinesTable()).
		Where(squirrel.Eq{"document_code": documentCode})

	sql, args, err := delQ.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines %s %s: %w", kind.LinesTable(), documentCode, err)
	}

	if len(lines) == 0 {
		return nil
	}

	insQ := r.Builder().
		Insert(kind.LinesTable()).
		Columns(r.selectCols...)

	for i := range lines {
		data := postgres.StructToMap(&lines[i])
		row := make([]any, len(r.selectCols))
		for j, col := range r.selectCols {
			row[j] = data[col]
		}
		insQ = insQ.Values(row...)
	}

	sql, args, err = insQ.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines %s %s: %w", kind.LinesTable(), documentCode, err)
	}

	return nil
}
