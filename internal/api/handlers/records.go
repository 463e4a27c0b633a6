// records.go — обработчики записей еды и фильмов:
// список, создание, чтение, частичное обновление, удаление, статистика.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lifelog/internal/api/errors"
	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/stats"
)

// RecordAPI — сервис записей одного ресурса.
// Реализуется service.RecordService.
type RecordAPI[T any] interface {
	Create(ctx context.Context, in model.Writable) (*T, error)
	Get(ctx context.Context, id int64) (*T, error)
	Update(ctx context.Context, id int64, patch model.Writable) (*T, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q repository.Query) (*repository.Page[T], error)
	Stats(ctx context.Context) (stats.Summary, error)
}

// Фильтры списков еды и фильмов.
var (
	FoodFilters  = FilterParams{Strings: []string{"category"}}
	MovieFilters = FilterParams{Strings: []string{"genre"}, Bools: []string{"is_favorite"}}
)

// RecordHandler — обработчик ресурса с записями типа T.
// I — тело создания, P — тело частичного обновления.
type RecordHandler[T any, I, P model.Writable] struct {
	svc             RecordAPI[T]
	filters         FilterParams
	defaultPageSize int
	logger          *slog.Logger
}

// NewRecordHandler создаёт обработчик ресурса.
func NewRecordHandler[T any, I, P model.Writable](
	resource string,
	svc RecordAPI[T],
	filters FilterParams,
	defaultPageSize int,
	logger *slog.Logger,
) *RecordHandler[T, I, P] {
	return &RecordHandler[T, I, P]{
		svc:             svc,
		filters:         filters,
		defaultPageSize: defaultPageSize,
		logger:          logger.With(slog.String("component", resource+"_handler")),
	}
}

// Routes регистрирует маршруты ресурса.
func (h *RecordHandler[T, I, P]) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List — GET /: страница записей по фильтру.
func (h *RecordHandler[T, I, P]) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r, h.defaultPageSize, h.filters)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, h.logger, err, "list")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Create — POST /: создание записи.
func (h *RecordHandler[T, I, P]) Create(w http.ResponseWriter, r *http.Request) {
	var in I
	if err := decodeJSON(w, r, &in); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	item, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "create")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Get — GET /{id}.
func (h *RecordHandler[T, I, P]) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Update — PATCH /{id}: изменяются только переданные поля.
func (h *RecordHandler[T, I, P]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var patch P
	if err := decodeJSON(w, r, &patch); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	item, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.logger, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete — DELETE /{id}.
func (h *RecordHandler[T, I, P]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats — GET /stats.
func (h *RecordHandler[T, I, P]) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
