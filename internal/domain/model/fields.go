// Пакет model — доменные модели записей lifelog и входные данные
// операций создания и частичного обновления.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid — входные данные записи некорректны.
var ErrInvalid = errors.New("некорректные данные")

// Fields — набор значений колонок для INSERT/UPDATE.
// Значение nil записывается как NULL.
type Fields map[string]any

// Writable — входные данные, преобразуемые в набор колонок.
type Writable interface {
	Fields() (Fields, error)
}

// DateLayout — формат дат записей (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ValidDate сообщает, что s — реальная дата в формате YYYY-MM-DD.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// fieldSet накапливает колонки и первую ошибку валидации.
type fieldSet struct {
	fields Fields
	err    error
}

func newFieldSet() *fieldSet {
	return &fieldSet{fields: make(Fields)}
}

func (s *fieldSet) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *fieldSet) result() (Fields, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

// text добавляет строковую колонку с ограничением длины (0 — без ограничения).
func (s *fieldSet) text(column string, v *string, maxLen int) {
	if v == nil {
		s.fields[column] = nil
		return
	}
	if maxLen > 0 && len([]rune(*v)) > maxLen {
		s.fail(invalid("%s: длина превышает %d символов", column, maxLen))
		return
	}
	s.fields[column] = *v
}

// required добавляет обязательную непустую строковую колонку.
func (s *fieldSet) required(column string, v *string, maxLen int) {
	if v == nil || strings.TrimSpace(*v) == "" {
		s.fail(invalid("%s: обязательное поле", column))
		return
	}
	s.text(column, v, maxLen)
}

func (s *fieldSet) date(column string, v *string) {
	if v != nil && !ValidDate(*v) {
		s.fail(invalid("%s: ожидается дата в формате YYYY-MM-DD, получено %q", column, *v))
		return
	}
	s.text(column, v, 0)
}

func (s *fieldSet) rating(column string, v *float64) {
	if v != nil && (*v < 0 || *v > 10) {
		s.fail(invalid("%s: значение должно быть от 0 до 10", column))
		return
	}
	s.number(column, v)
}

func (s *fieldSet) nonNegative(column string, v *float64) {
	if v != nil && *v < 0 {
		s.fail(invalid("%s: значение не может быть отрицательным", column))
		return
	}
	s.number(column, v)
}

func (s *fieldSet) number(column string, v *float64) {
	if v == nil {
		s.fields[column] = nil
		return
	}
	s.fields[column] = *v
}

func (s *fieldSet) integer(column string, v *int64, minVal int64) {
	if v == nil {
		s.fields[column] = nil
		return
	}
	if *v < minVal {
		s.fail(invalid("%s: значение должно быть >= %d", column, minVal))
		return
	}
	s.fields[column] = *v
}

// flag добавляет булеву колонку NOT NULL: null для неё недопустим.
func (s *fieldSet) flag(column string, v *bool) {
	if v == nil {
		s.fail(invalid("%s: значение не может быть null", column))
		return
	}
	s.fields[column] = *v
}

// Помощники частичного обновления: колонка попадает в набор
// только если поле присутствовало во входных данных.

func optText(s *fieldSet, column string, o Optional[string], maxLen int) {
	if o.Set {
		s.text(column, o.Value, maxLen)
	}
}

func optRequired(s *fieldSet, column string, o Optional[string], maxLen int) {
	if o.Set {
		s.required(column, o.Value, maxLen)
	}
}

func optDate(s *fieldSet, column string, o Optional[string]) {
	if o.Set {
		s.date(column, o.Value)
	}
}

func optRating(s *fieldSet, column string, o Optional[float64]) {
	if o.Set {
		s.rating(column, o.Value)
	}
}

func optNonNegative(s *fieldSet, column string, o Optional[float64]) {
	if o.Set {
		s.nonNegative(column, o.Value)
	}
}

func optInteger(s *fieldSet, column string, o Optional[int64], minVal int64) {
	if o.Set {
		s.integer(column, o.Value, minVal)
	}
}

func optFlag(s *fieldSet, column string, o Optional[bool]) {
	if o.Set {
		s.flag(column, o.Value)
	}
}
