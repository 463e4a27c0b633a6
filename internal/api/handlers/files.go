// files.go — обработчики файлов: загрузка, метаданные, скачивание, удаление.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lifelog/internal/api/errors"
	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/service"
	"github.com/bigkaa/lifelog/internal/stats"
)

// multipartOverhead — запас на заголовки и поля формы сверх размера файла.
const multipartOverhead = 1 << 20

// FileAPI — сервис файлов. Реализуется service.FileService.
type FileAPI interface {
	Upload(ctx context.Context, p service.UploadParams) (*service.FileView, error)
	Get(ctx context.Context, id int64) (*service.FileView, error)
	Update(ctx context.Context, id int64, patch model.FilePatch) (*service.FileView, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q repository.Query) (*repository.Page[service.FileView], error)
	RecordDownload(ctx context.Context, id int64) (*service.Download, error)
	Stats(ctx context.Context) (stats.Summary, error)
}

// FileFilters — фильтры списка файлов.
var FileFilters = FilterParams{Strings: []string{"file_type", "category"}, Bools: []string{"is_public"}}

// FilesHandler — обработчик файлов.
type FilesHandler struct {
	svc             FileAPI
	maxFileSize     int64
	defaultPageSize int
	logger          *slog.Logger
}

// NewFilesHandler создаёт обработчик файлов.
// maxFileSize ограничивает тело запроса загрузки.
func NewFilesHandler(svc FileAPI, maxFileSize int64, defaultPageSize int, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		svc:             svc,
		maxFileSize:     maxFileSize,
		defaultPageSize: defaultPageSize,
		logger:          logger.With(slog.String("component", "files_handler")),
	}
}

// Routes регистрирует маршруты файлов.
func (h *FilesHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/upload", h.Upload)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/download", h.Download)
}

// Upload обрабатывает POST /upload.
// Multipart form: file (обязательно), description, category, is_public (опционально).
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32 MB в памяти, остальное во временных файлах
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	meta := model.FileMeta{Category: r.FormValue("category")}
	if d := strings.TrimSpace(r.FormValue("description")); d != "" {
		meta.Description = &d
	}
	if v := strings.TrimSpace(r.FormValue("is_public")); v != "" {
		isPublic, err := strconv.ParseBool(v)
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректное значение is_public: %q", v))
			return
		}
		meta.IsPublic = isPublic
	}

	view, err := h.svc.Upload(r.Context(), service.UploadParams{
		Content:      file,
		OriginalName: header.Filename,
		Size:         header.Size,
		ContentType:  header.Header.Get("Content-Type"),
		Meta:         meta,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "upload")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// List — GET /: страница метаданных файлов.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r, h.defaultPageSize, FileFilters)
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

// Get — GET /{id}: метаданные файла.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	view, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Update — PATCH /{id}: описание, категория, публичность.
func (h *FilesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	var patch model.FilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	view, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.logger, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Delete — DELETE /{id}: метаданные и физический файл.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Download — GET /{id}/download: отдача файла с увеличением счётчика.
// http.ServeContent обрабатывает Range и If-Modified-Since.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	d, err := h.svc.RecordDownload(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "download")
		return
	}

	f := d.File
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		writeServiceError(w, h.logger, fmt.Errorf("%w: %w", service.ErrStorageIO, err), "download")
		return
	}

	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.OriginalName}))
	w.Header().Set("X-Download-Count", strconv.FormatInt(d.DownloadCount, 10))
	http.ServeContent(w, r, d.OriginalName, stat.ModTime(), f)
}

// Stats — GET /stats.
func (h *FilesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
