package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"medcore/internal/core/apperror"
	"medcore/internal/core/tenant"
	"medcore/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// immutableColumns are never written by UpdateVersioned.
var immutableColumns = map[string]struct{}{
	"id":         {},
	"tenant_id":  {},
	"company_id": {},
	"version":    {},
	"created_at": {},
	"created_by": {},
}

// Table provides the common CRUD statements for one table whose rows scan into T.
// Column names come from the "db" tags of T.
type Table[T any] struct {
	tm           *TxManager
	name         string
	entity       string
	layout       *columnLayout
	cols         []string
	defaultOrder string
}

// NewTable describes table name holding rows of T. entity names the row in errors.
func NewTable[T any](tm *TxManager, name, entity, defaultOrder string) *Table[T] {
	layout := layoutOf[T]()
	return &Table[T]{
		tm:           tm,
		name:         name,
		entity:       entity,
		layout:       layout,
		cols:         layout.names(nil),
		defaultOrder: defaultOrder,
	}
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Columns returns the mapped columns in declaration order.
func (t *Table[T]) Columns() []string { return t.cols }

// Querier returns the active transaction or the pool.
func (t *Table[T]) Querier(ctx context.Context) Querier {
	return t.tm.GetQuerier(ctx)
}

// Select starts a SELECT of every mapped column.
func (t *Table[T]) Select() squirrel.SelectBuilder {
	return Builder().Select(t.cols...).From(t.name)
}

// ByID selects the row with key visible to tc.
func (t *Table[T]) ByID(tc tenant.Context, key any) squirrel.SelectBuilder {
	return t.Select().Where(ScopeFilter(tc, "")).Where(squirrel.Eq{"id": key})
}

// Insert writes v using its db tags.
func (t *Table[T]) Insert(ctx context.Context, v *T) error {
	data := t.layout.assignments(v, nil)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %T", v)
	}

	sql, args, err := Builder().Insert(t.name).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return t.mapError(err, "insert")
	}
	return nil
}

// InsertAll writes items with one multi-row INSERT.
func (t *Table[T]) InsertAll(ctx context.Context, items []*T) error {
	if len(items) == 0 {
		return nil
	}

	q := Builder().Insert(t.name).Columns(t.cols...)
	for _, v := range items {
		q = q.Values(t.layout.row(v, nil)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return t.mapError(err, "insert")
	}
	return nil
}

// UpdateVersioned writes the mutable columns of v where the stored version
// still equals version and the row belongs to owner. No matching row means
// someone else won the race.
func (t *Table[T]) UpdateVersioned(ctx context.Context, v *T, owner tenant.Scope, key any, version int) error {
	sql, args, err := t.updateVersionedSQL(v, owner, key, version)
	if err != nil {
		return err
	}

	tag, err := t.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return t.mapError(err, "update")
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(t.entity, key)
	}
	return nil
}

func (t *Table[T]) updateVersionedSQL(v *T, owner tenant.Scope, key any, version int) (string, []any, error) {
	data := t.layout.assignments(v, immutableColumns)

	sql, args, err := Builder().
		Update(t.name).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{
			"id":         key,
			"tenant_id":  owner.TenantID,
			"company_id": owner.CompanyID,
			"version":    version,
		}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return sql, args, nil
}

// Get scans the single row of q. key is only used for the NOT_FOUND error.
func (t *Table[T]) Get(ctx context.Context, q squirrel.SelectBuilder, key any) (*T, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := new(T)
	if err := pgxscan.Get(ctx, t.Querier(ctx), out, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(t.entity, key)
		}
		return nil, fmt.Errorf("get %s: %w", t.entity, err)
	}
	return out, nil
}

// All scans every row of q.
func (t *Table[T]) All(ctx context.Context, q squirrel.SelectBuilder) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*T
	if err := pgxscan.Select(ctx, t.Querier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.entity, err)
	}
	return out, nil
}

// Page counts q, then returns the requested window ordered by filter.OrderBy.
func (t *Table[T]) Page(ctx context.Context, q squirrel.SelectBuilder, filter domain.ListFilter) (domain.ListResult[*T], error) {
	filter = filter.Normalize()
	result := domain.ListResult[*T]{Limit: filter.Limit, Offset: filter.Offset}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := t.Querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", t.entity, err)
	}

	orderBy, err := t.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "id").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	items, err := t.All(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items
	if result.Items == nil {
		result.Items = []*T{}
	}
	return result, nil
}

func (t *Table[T]) parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return t.defaultOrder, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else {
		field = strings.TrimPrefix(orderBy, "+")
	}

	for _, col := range t.cols {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
}

func (t *Table[T]) mapError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewConflict(t.entity+" already exists").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewValidation(t.entity+" references a missing row").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, t.name, err)
}

// IsUniqueViolation reports whether err is a unique constraint violation on constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}
