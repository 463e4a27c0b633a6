package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/stats"
)

// Schema описывает таблицу ресурса и допустимые для неё операции.
// Все имена колонок — фиксированные константы, значения
// клиента в SQL подставляются только через $-параметры.
type Schema struct {
	Table string
	// Columns — колонки SELECT (совпадают с db-тегами модели)
	Columns []string
	// Required — колонки, обязательные при создании и не допускающие NULL
	Required []string
	// Writable — колонки, которые можно задавать при создании и обновлении
	Writable []string
	// Sortable — whitelist полей сортировки
	Sortable []string
	// DefaultSort — поле сортировки по умолчанию (created_at, если пусто)
	DefaultSort string
	// Searchable — текстовые поля поиска по ключевому слову
	Searchable []string
	// Exact — поля точного совпадения
	Exact []string
	// Keys — колонки для FindOne/UpdateBy/DeleteBy/Values
	Keys []string
	// DateColumn — строковая дата YYYY-MM-DD для фильтра по диапазону
	DateColumn string
	// Counters — целочисленные счётчики для Increment
	Counters []string
	Stats    StatsProjection
}

// StatsProjection — колонки, из которых строятся stats.Point.
type StatsProjection struct {
	CategoryColumn string
	// BucketColumn — строковая дата для помесячного ряда (created_at, если пусто)
	BucketColumn string
	Numbers      []string
	Flags        []string
}

// Query — параметры постраничного списка.
type Query struct {
	Filter    Filter
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Page — страница результатов.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Records — обобщённый репозиторий таблицы записей.
// T — модель с db-тегами, совпадающими с Schema.Columns.
type Records[T any] struct {
	db          DBTX
	schema      *Schema
	maxPageSize int
}

// NewRecords создаёт репозиторий для схемы.
func NewRecords[T any](db DBTX, schema *Schema, maxPageSize int) *Records[T] {
	return &Records[T]{db: db, schema: schema, maxPageSize: maxPageSize}
}

// WithTx возвращает копию репозитория, работающую в транзакции.
func (r *Records[T]) WithTx(tx DBTX) *Records[T] {
	return &Records[T]{db: tx, schema: r.schema, maxPageSize: r.maxPageSize}
}

func (r *Records[T]) columns() string {
	return strings.Join(r.schema.Columns, ", ")
}

// checkFields проверяет, что колонки входят в Writable и обязательные
// колонки не сбрасываются в NULL. Возвращает отсортированный список колонок.
func (r *Records[T]) checkFields(fields model.Fields) ([]string, error) {
	cols := make([]string, 0, len(fields))
	for col, v := range fields {
		if !slices.Contains(r.schema.Writable, col) {
			return nil, fmt.Errorf("%w: поле %q недоступно для записи в %s", ErrValidation, col, r.schema.Table)
		}
		if v == nil && slices.Contains(r.schema.Required, col) {
			return nil, fmt.Errorf("%w: поле %q не может быть пустым", ErrValidation, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

func (r *Records[T]) collectOne(rows pgx.Rows, op string) (*T, error) {
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, mapWriteError(op, r.schema.Table, err)
	}
	return item, nil
}

// Create вставляет запись и возвращает её со всеми системными полями.
func (r *Records[T]) Create(ctx context.Context, fields model.Fields) (*T, error) {
	for _, col := range r.schema.Required {
		if v, ok := fields[col]; !ok || v == nil {
			return nil, fmt.Errorf("%w: обязательное поле %q не задано", ErrValidation, col)
		}
	}
	cols, err := r.checkFields(fields)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = fields[col]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		r.schema.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), r.columns())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError("создания записи", r.schema.Table, err)
	}
	return r.collectOne(rows, "создания записи")
}

// GetByID возвращает запись по id или ErrNotFound.
func (r *Records[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	return r.findBy(ctx, "id", id)
}

// FindOne возвращает запись по значению ключевой колонки или ErrNotFound.
func (r *Records[T]) FindOne(ctx context.Context, column string, value any) (*T, error) {
	if !slices.Contains(r.schema.Keys, column) {
		return nil, fmt.Errorf("%w: поиск по полю %q недопустим", ErrValidation, column)
	}
	return r.findBy(ctx, column, value)
}

func (r *Records[T]) findBy(ctx context.Context, column string, value any) (*T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 LIMIT 1`, r.columns(), r.schema.Table, column)

	rows, err := r.db.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи (%s): %w", r.schema.Table, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи (%s): %w", r.schema.Table, err)
	}
	return item, nil
}

// Update изменяет только переданные колонки и обновляет updated_at.
// Пустой набор колонок не изменяет запись.
func (r *Records[T]) Update(ctx context.Context, id int64, fields model.Fields) (*T, error) {
	return r.updateWhere(ctx, "id", id, fields)
}

// UpdateBy — Update по ключевой колонке.
func (r *Records[T]) UpdateBy(ctx context.Context, column string, value any, fields model.Fields) (*T, error) {
	if !slices.Contains(r.schema.Keys, column) {
		return nil, fmt.Errorf("%w: обновление по полю %q недопустимо", ErrValidation, column)
	}
	return r.updateWhere(ctx, column, value, fields)
}

func (r *Records[T]) updateWhere(ctx context.Context, column string, value any, fields model.Fields) (*T, error) {
	if len(fields) == 0 {
		return r.findBy(ctx, column, value)
	}
	cols, err := r.checkFields(fields)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, fields[col])
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, value)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d RETURNING %s`,
		r.schema.Table, strings.Join(sets, ", "), column, len(args), r.columns())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError("обновления записи", r.schema.Table, err)
	}
	return r.collectOne(rows, "обновления записи")
}

// Delete удаляет запись и возвращает её последнее состояние.
// Повторное удаление возвращает ErrNotFound.
func (r *Records[T]) Delete(ctx context.Context, id int64) (*T, error) {
	return r.deleteWhere(ctx, "id", id)
}

// DeleteBy — Delete по ключевой колонке.
func (r *Records[T]) DeleteBy(ctx context.Context, column string, value any) (*T, error) {
	if !slices.Contains(r.schema.Keys, column) {
		return nil, fmt.Errorf("%w: удаление по полю %q недопустимо", ErrValidation, column)
	}
	return r.deleteWhere(ctx, column, value)
}

func (r *Records[T]) deleteWhere(ctx context.Context, column string, value any) (*T, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 RETURNING %s`, r.schema.Table, column, r.columns())

	rows, err := r.db.Query(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления записи (%s): %w", r.schema.Table, err)
	}
	return r.collectOne(rows, "удаления записи")
}

// List возвращает страницу записей по фильтру с сортировкой.
// Номер страницы и её размер вне допустимых границ — ErrValidation.
func (r *Records[T]) List(ctx context.Context, q Query) (*Page[T], error) {
	if q.Page < 1 {
		return nil, fmt.Errorf("%w: page должен быть >= 1", ErrValidation)
	}
	if q.PageSize < 1 || q.PageSize > r.maxPageSize {
		return nil, fmt.Errorf("%w: page_size должен быть от 1 до %d", ErrValidation, r.maxPageSize)
	}

	where, args, err := buildWhere(r.schema, q.Filter, 1)
	if err != nil {
		return nil, err
	}
	orderBy, err := buildOrderBy(r.schema, q.SortBy, q.SortOrder)
	if err != nil {
		return nil, err
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, r.schema.Table, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("ошибка подсчёта записей (%s): %w", r.schema.Table, err)
	}

	argNum := len(args) + 1
	dataQuery := fmt.Sprintf(`SELECT %s FROM %s %s %s LIMIT $%d OFFSET $%d`,
		r.columns(), r.schema.Table, where, orderBy, argNum, argNum+1)
	dataArgs := append(slices.Clone(args), q.PageSize, (q.Page-1)*q.PageSize)

	items, err := r.collect(ctx, dataQuery, dataArgs)
	if err != nil {
		return nil, err
	}

	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: TotalPages(total, q.PageSize),
	}, nil
}

// FindAll возвращает все записи по фильтру без пагинации.
func (r *Records[T]) FindAll(ctx context.Context, f Filter, sortBy, sortOrder string) ([]T, error) {
	where, args, err := buildWhere(r.schema, f, 1)
	if err != nil {
		return nil, err
	}
	orderBy, err := buildOrderBy(r.schema, sortBy, sortOrder)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s %s %s`, r.columns(), r.schema.Table, where, orderBy)
	return r.collect(ctx, query, args)
}

func (r *Records[T]) collect(ctx context.Context, query string, args []any) ([]T, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка (%s): %w", r.schema.Table, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования списка (%s): %w", r.schema.Table, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Increment атомарно увеличивает счётчик на единицу и возвращает новое значение.
func (r *Records[T]) Increment(ctx context.Context, id int64, column string) (int64, error) {
	if !slices.Contains(r.schema.Counters, column) {
		return 0, fmt.Errorf("%w: поле %q не является счётчиком", ErrValidation, column)
	}

	query := fmt.Sprintf(`UPDATE %s SET %s = %s + 1, updated_at = now() WHERE id = $1 RETURNING %s`,
		r.schema.Table, column, column, column)

	var value int64
	if err := r.db.QueryRow(ctx, query, id).Scan(&value); err != nil {
		return 0, mapWriteError("увеличения счётчика", r.schema.Table, err)
	}
	return value, nil
}

// Values возвращает значения ключевой колонки всех записей.
func (r *Records[T]) Values(ctx context.Context, column string) ([]string, error) {
	if !slices.Contains(r.schema.Keys, column) {
		return nil, fmt.Errorf("%w: выборка поля %q недопустима", ErrValidation, column)
	}
	query := fmt.Sprintf(`SELECT %s::text FROM %s`, column, r.schema.Table)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки %s (%s): %w", column, r.schema.Table, err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования %s (%s): %w", column, r.schema.Table, err)
	}
	return values, nil
}

// StatPoints возвращает проекцию записей для агрегации.
func (r *Records[T]) StatPoints(ctx context.Context, f Filter) ([]stats.Point, error) {
	where, args, err := buildWhere(r.schema, f, 1)
	if err != nil {
		return nil, err
	}

	p := r.schema.Stats
	selects := []string{"created_at"}
	if p.CategoryColumn != "" {
		selects = append(selects, p.CategoryColumn+"::text")
	}
	if p.BucketColumn != "" {
		selects = append(selects, p.BucketColumn+"::text")
	}
	for _, col := range p.Numbers {
		selects = append(selects, col+"::double precision")
	}
	selects = append(selects, p.Flags...)

	query := fmt.Sprintf(`SELECT %s FROM %s %s`, strings.Join(selects, ", "), r.schema.Table, where)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки статистики (%s): %w", r.schema.Table, err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.Point, error) {
		var (
			createdAt time.Time
			category  *string
			bucket    *string
		)
		numbers := make([]*float64, len(p.Numbers))
		flags := make([]bool, len(p.Flags))

		dest := []any{&createdAt}
		if p.CategoryColumn != "" {
			dest = append(dest, &category)
		}
		if p.BucketColumn != "" {
			dest = append(dest, &bucket)
		}
		for i := range numbers {
			dest = append(dest, &numbers[i])
		}
		for i := range flags {
			dest = append(dest, &flags[i])
		}
		if err := row.Scan(dest...); err != nil {
			return stats.Point{}, err
		}

		pt := stats.Point{
			CreatedAt: createdAt,
			Category:  category,
			Numbers:   make(map[string]float64, len(numbers)),
			Flags:     make(map[string]bool, len(flags)),
		}
		if bucket != nil {
			pt.Bucket = *bucket
		}
		for i, col := range p.Numbers {
			if numbers[i] != nil {
				pt.Numbers[col] = *numbers[i]
			}
		}
		for i, col := range p.Flags {
			pt.Flags[col] = flags[i]
		}
		return pt, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования статистики (%s): %w", r.schema.Table, err)
	}
	return points, nil
}
