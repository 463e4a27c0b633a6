// Пакет handlers — HTTP-обработчики API lifelog.
// handler.go — общие помощники: JSON, параметры запроса, маппинг ошибок.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/lifelog/internal/api/errors"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/service"
)

// maxJSONBody — ограничение размера JSON-тела запроса.
const maxJSONBody = 1 << 20

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает JSON-тело запроса в dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("некорректный JSON в теле запроса: %w", err)
	}
	return nil
}

// pathInt читает целочисленный параметр пути.
func pathInt[T int | int64](r *http.Request, name string) (T, error) {
	var v T
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return 0, fmt.Errorf("некорректный параметр %s: %q", name, chi.URLParam(r, name))
	}
	return v, nil
}

// pathID читает положительный идентификатор записи из пути.
func pathID(r *http.Request) (int64, error) {
	id, err := pathInt[int64](r, "id")
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, fmt.Errorf("некорректный параметр id: %d", id)
	}
	return id, nil
}

// FilterParams — параметры точного совпадения, допустимые для ресурса.
// Имя параметра совпадает с колонкой.
type FilterParams struct {
	Strings []string
	Bools   []string
}

// listQuery собирает repository.Query из query-параметров запроса.
// Отсутствующие page и page_size заменяются на 1 и defaultPageSize;
// значения вне границ отклоняются репозиторием.
func listQuery(r *http.Request, defaultPageSize int, fp FilterParams) (repository.Query, error) {
	values := r.URL.Query()
	bind := func(name string, dest any) error {
		if err := runtime.BindQueryParameter("form", true, false, name, values, dest); err != nil {
			return fmt.Errorf("некорректный параметр %s: %w", name, err)
		}
		return nil
	}

	var (
		page, pageSize            *int
		sortBy, sortOrder, search *string
		dateFrom, dateTo          *string
	)
	for name, dest := range map[string]any{
		"page": &page, "page_size": &pageSize,
		"sort_by": &sortBy, "sort_order": &sortOrder, "search": &search,
		"date_from": &dateFrom, "date_to": &dateTo,
	} {
		if err := bind(name, dest); err != nil {
			return repository.Query{}, err
		}
	}

	q := repository.Query{
		Page:      1,
		PageSize:  defaultPageSize,
		SortBy:    trimmed(sortBy),
		SortOrder: trimmed(sortOrder),
		Filter: repository.Filter{
			Keyword:  trimmed(search),
			DateFrom: trimmed(dateFrom),
			DateTo:   trimmed(dateTo),
		},
	}
	if page != nil {
		q.Page = *page
	}
	if pageSize != nil {
		q.PageSize = *pageSize
	}

	for _, name := range fp.Strings {
		var v *string
		if err := bind(name, &v); err != nil {
			return repository.Query{}, err
		}
		if s := trimmed(v); s != "" {
			q.Filter.Exact = append(q.Filter.Exact, repository.Match{Column: name, Value: s})
		}
	}
	for _, name := range fp.Bools {
		var v *bool
		if err := bind(name, &v); err != nil {
			return repository.Query{}, err
		}
		if v != nil {
			q.Filter.Exact = append(q.Filter.Exact, repository.Match{Column: name, Value: *v})
		}
	}
	return q, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500 без деталей.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, op string) {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrMissingBlob):
		apierrors.Gone(w, err.Error())
	default:
		logger.Error("Ошибка обработки запроса",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
