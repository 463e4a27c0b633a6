package repository

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bigkaa/lifelog/internal/domain/model"
)

// Match — условие точного совпадения колонки.
// Value == nil означает IS NULL.
type Match struct {
	Column string
	Value  any
}

// Filter — условия отбора записей.
// Группы условий объединяются через AND; ключевое слово ищется
// как подстрока без учёта регистра в любом из текстовых полей схемы.
type Filter struct {
	Keyword  string
	Exact    []Match
	DateFrom string
	DateTo   string
}

// escapeLike экранирует спецсимволы LIKE, чтобы ключевое слово
// сравнивалось буквально.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildWhere строит WHERE-условие и аргументы по фильтру.
// startArg — номер первого $-параметра (для корректной нумерации).
func buildWhere(s *Schema, f Filter, startArg int) (whereClause string, args []any, err error) {
	var conditions []string
	argNum := startArg

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		if len(s.Searchable) == 0 {
			return "", nil, fmt.Errorf("%w: поиск по %s не поддерживается", ErrValidation, s.Table)
		}
		parts := make([]string, 0, len(s.Searchable))
		for _, col := range s.Searchable {
			parts = append(parts, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, col, argNum))
		}
		conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
		args = append(args, "%"+escapeLike(kw)+"%")
		argNum++
	}

	for _, m := range f.Exact {
		if !slices.Contains(s.Exact, m.Column) {
			return "", nil, fmt.Errorf("%w: фильтр по полю %q недопустим", ErrValidation, m.Column)
		}
		if m.Value == nil {
			conditions = append(conditions, m.Column+" IS NULL")
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", m.Column, argNum))
		args = append(args, m.Value)
		argNum++
	}

	// Даты хранятся как YYYY-MM-DD, поэтому побайтовое сравнение
	// совпадает с хронологическим.
	for _, bound := range []struct {
		value string
		op    string
	}{
		{f.DateFrom, ">="},
		{f.DateTo, "<="},
	} {
		if bound.value == "" {
			continue
		}
		if s.DateColumn == "" {
			return "", nil, fmt.Errorf("%w: фильтр по дате для %s не поддерживается", ErrValidation, s.Table)
		}
		if !model.ValidDate(bound.value) {
			return "", nil, fmt.Errorf("%w: некорректная граница даты %q", ErrValidation, bound.value)
		}
		conditions = append(conditions, fmt.Sprintf(`%s COLLATE "C" %s $%d`, s.DateColumn, bound.op, argNum))
		args = append(args, bound.value)
		argNum++
	}

	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	return whereClause, args, nil
}

// buildOrderBy строит ORDER BY по whitelist полей схемы.
// Неизвестное поле или направление — ошибка, а не подстановка по умолчанию.
func buildOrderBy(s *Schema, sortBy, sortOrder string) (string, error) {
	column := s.DefaultSort
	if column == "" {
		column = "created_at"
	}
	if sortBy != "" {
		if !slices.Contains(s.Sortable, sortBy) {
			return "", fmt.Errorf("%w: сортировка по полю %q недопустима", ErrValidation, sortBy)
		}
		column = sortBy
	}

	var direction string
	switch strings.ToLower(sortOrder) {
	case "", "desc":
		direction = "DESC"
	case "asc":
		direction = "ASC"
	default:
		return "", fmt.Errorf("%w: направление сортировки %q, допустимые: asc, desc", ErrValidation, sortOrder)
	}

	// id добавляется для стабильного порядка между страницами
	if column == "id" {
		return fmt.Sprintf("ORDER BY id %s", direction), nil
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", column, direction, direction), nil
}

// TotalPages возвращает ceil(total/pageSize).
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
