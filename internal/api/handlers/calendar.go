// calendar.go — обработчики заметок календаря.
// Заметка адресуется датой YYYY-MM-DD; PUT выполняет upsert-or-delete.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lifelog/internal/api/errors"
	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/service"
	"github.com/bigkaa/lifelog/internal/stats"
)

// NoteAPI — сервис заметок. Реализуется service.NoteService.
type NoteAPI interface {
	Write(ctx context.Context, date, content string) (*model.CalendarNote, service.WriteOutcome, error)
	Create(ctx context.Context, in model.NoteInput) (*model.CalendarNote, error)
	Get(ctx context.Context, date string) (*model.CalendarNote, error)
	Update(ctx context.Context, date string, patch model.NotePatch) (*model.CalendarNote, error)
	Delete(ctx context.Context, date string) error
	List(ctx context.Context, q repository.Query) (*repository.Page[model.CalendarNote], error)
	Month(ctx context.Context, year, month int) (*service.MonthNotes, error)
	Stats(ctx context.Context) (stats.Summary, error)
}

// CalendarFilters — фильтры списка заметок.
var CalendarFilters = FilterParams{Strings: []string{"mood"}, Bools: []string{"is_special"}}

// CalendarHandler — обработчик заметок календаря.
type CalendarHandler struct {
	svc             NoteAPI
	defaultPageSize int
	logger          *slog.Logger
}

// NewCalendarHandler создаёт обработчик заметок.
func NewCalendarHandler(svc NoteAPI, defaultPageSize int, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		svc:             svc,
		defaultPageSize: defaultPageSize,
		logger:          logger.With(slog.String("component", "calendar_handler")),
	}
}

// Routes регистрирует маршруты календаря.
func (h *CalendarHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/month/{year}/{month}", h.Month)
	r.Get("/{date}", h.Get)
	r.Put("/{date}", h.Write)
	r.Patch("/{date}", h.Update)
	r.Delete("/{date}", h.Delete)
}

// writeNoteRequest — тело PUT /{date}. content обязателен, "" удаляет заметку.
type writeNoteRequest struct {
	Content *string `json:"content"`
}

// writeNoteResponse — результат PUT /{date}.
type writeNoteResponse struct {
	Date    string               `json:"date"`
	Outcome service.WriteOutcome `json:"outcome"`
	Note    *model.CalendarNote  `json:"note"`
}

// List — GET /: страница заметок.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r, h.defaultPageSize, CalendarFilters)
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

// Create — POST /: новая заметка, 409 если дата занята.
func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	note, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "create")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// Get — GET /{date}.
func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Get(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeServiceError(w, h.logger, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Write — PUT /{date}: создание, обновление или удаление по содержимому.
// 201 для созданной заметки, 200 для остальных исходов.
func (h *CalendarHandler) Write(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	var req writeNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Content == nil {
		apierrors.ValidationError(w, "Поле content обязательно")
		return
	}
	note, outcome, err := h.svc.Write(r.Context(), date, *req.Content)
	if err != nil {
		writeServiceError(w, h.logger, err, "write")
		return
	}
	status := http.StatusOK
	if outcome == service.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, writeNoteResponse{Date: date, Outcome: outcome, Note: note})
}

// Update — PATCH /{date}: изменяются только переданные поля.
func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.NotePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	note, err := h.svc.Update(r.Context(), chi.URLParam(r, "date"), patch)
	if err != nil {
		writeServiceError(w, h.logger, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Delete — DELETE /{date}.
func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "date")); err != nil {
		writeServiceError(w, h.logger, err, "delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Month — GET /month/{year}/{month}: заметки месяца.
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt[int](r, "year")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	month, err := pathInt[int](r, "month")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	notes, err := h.svc.Month(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, h.logger, err, "month")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Stats — GET /stats.
func (h *CalendarHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
