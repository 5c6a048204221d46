// Package document_repo provides PostgreSQL repositories for commercial
// documents and their lines. Each document kind maps to its own pair of
// tables, resolved through trade.Kind, so one repository serves all eight
// kind variants.
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

// DocumentRepo implements trade.DocumentRepository over per-kind tables.
type DocumentRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ trade.DocumentRepository = (*DocumentRepo)(nil)

// NewDocumentRepo creates the document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[trade.Document](),
	}
}

// Builder returns a new squirrel builder.
func (r *DocumentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DocumentRepo) baseSelect(kind trade.Kind) squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(kind.Table())
}

// LoadByCode fetches one document by its business code. The kind is not a
// stored column, so it is stamped onto the result after scanning.
func (r *DocumentRepo) LoadByCode(ctx context.Context, kind trade.Kind, code string) (*trade.Document, error) {
	q := r.baseSelect(kind).
		Where(squirrel.Eq{"code": code})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &trade.Document{}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(kind.Table(), code)
		}
		return nil, fmt.Errorf("load %s %s: %w", kind.Table(), code, err)
	}

	doc.Kind = kind
	return doc, nil
}

// FindCompatible lists editable documents of the sample's kind that would
// pass the working-set compatibility check, oldest first. The sample itself
// is not excluded; callers filter out already-selected codes.
func (r *DocumentRepo) FindCompatible(ctx context.Context, sample *trade.Document) ([]*trade.Document, error) {
	q := r.baseSelect(sample.Kind).
		Where(squirrel.Eq{
			"warehouse_id":       sample.WarehouseID,
			"currency_code":      sample.CurrencyCode,
			"company_id":         sample.CompanyID,
			"series":             sample.Series,
			"subject_code":       sample.SubjectCode,
			"editable":           true,
			"generation_enabled": true,
		}).
		Where(squirrel.Eq{"discount1": sample.Discount1}).
		Where(squirrel.Eq{"discount2": sample.Discount2}).
		OrderBy("issued_at ASC", "code ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docs []*trade.Document
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("find compatible %s: %w", sample.Kind.Table(), err)
	}

	for _, doc := range docs {
		doc.Kind = sample.Kind
	}
	return docs, nil
}

// Create inserts a new document.
func (r *DocumentRepo) Create(ctx context.Context, doc *trade.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(doc.Kind.Table()).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", doc.Kind.Table(), err)
	}

	return nil
}

// Save updates an existing document with optimistic locking on its version.
// The in-memory version is bumped only after the update succeeds, so a
// retried save still compares against the stored value.
func (r *DocumentRepo) Save(ctx context.Context, doc *trade.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "code" || col == "created_at" {
			continue
		}
		if col == "version" || col == "updated_at" {
			continue // managed by the repo
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(doc.Kind.Table()).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"code": doc.Code}).
		Where(squirrel.Eq{"version": doc.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", doc.Kind.Table(), err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(doc.Kind.Table(), doc.Code)
	}

	doc.Version++
	return nil
}
