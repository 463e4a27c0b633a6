// files.go — загрузка, скачивание и удаление файлов.
//
// Загрузка: проверка → запись файла → запись метаданных. Если метаданные
// сохранить не удалось, записанный файл удаляется до возврата ошибки.
// Удаление: в одной транзакции удаляется строка, затем файл; ошибка
// удаления файла откатывает транзакцию.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/stats"
	"github.com/bigkaa/lifelog/internal/storage/blobstore"
)

// Prometheus-метрики файлов.
var (
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ll_upload_bytes_total",
		Help: "Общий объём загруженных файлов в байтах.",
	})
	uploadFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ll_upload_failures_total",
		Help: "Количество неудачных загрузок по этапу.",
	}, []string{"stage"})
	downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ll_downloads_total",
		Help: "Общее количество скачиваний файлов.",
	})
)

const fileResource = "files"

// maxCategoryLen — лимит длины категории, как у колонки file_records.category.
const maxCategoryLen = 100

// FileRepo — хранилище метаданных файлов. Реализуется repository.Records.
type FileRepo interface {
	Create(ctx context.Context, fields model.Fields) (*model.FileRecord, error)
	GetByID(ctx context.Context, id int64) (*model.FileRecord, error)
	Update(ctx context.Context, id int64, fields model.Fields) (*model.FileRecord, error)
	Delete(ctx context.Context, id int64) (*model.FileRecord, error)
	List(ctx context.Context, q repository.Query) (*repository.Page[model.FileRecord], error)
	Increment(ctx context.Context, id int64, column string) (int64, error)
	StatPoints(ctx context.Context, f repository.Filter) ([]stats.Point, error)
}

// FileTx выполняет fn с FileRepo, привязанным к транзакции.
// Ошибка fn откатывает транзакцию.
type FileTx interface {
	RunInTx(ctx context.Context, fn func(repo FileRepo) error) error
}

// Blobs — физическое хранилище файлов. Реализуется blobstore.Store.
type Blobs interface {
	Validate(originalName string, declaredSize int64) error
	Store(content io.Reader, originalName, category string) (*blobstore.Stored, error)
	Open(storagePath string) (*os.File, error)
	Remove(storagePath string) error
	Exists(storagePath string) bool
}

// PgFileTx — FileTx поверх repository.TxRunner.
type PgFileTx struct {
	runner  *repository.TxRunner
	records *repository.Records[model.FileRecord]
}

// NewPgFileTx создаёт FileTx для PostgreSQL.
func NewPgFileTx(runner *repository.TxRunner, records *repository.Records[model.FileRecord]) *PgFileTx {
	return &PgFileTx{runner: runner, records: records}
}

// RunInTx выполняет fn в транзакции PostgreSQL.
func (t *PgFileTx) RunInTx(ctx context.Context, fn func(repo FileRepo) error) error {
	return t.runner.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(t.records.WithTx(tx))
	})
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Content — поток данных файла
	Content io.Reader
	// OriginalName — имя файла от клиента
	OriginalName string
	// Size — заявленный размер (-1, если неизвестен)
	Size int64
	// ContentType — MIME-тип из запроса (может быть пустым)
	ContentType string
	Meta        model.FileMeta
}

// FileView — метаданные файла для клиента.
type FileView struct {
	model.FileRecord
	// DownloadReference — непрозрачный идентификатор для ссылки на скачивание
	DownloadReference string `json:"download_reference"`
	// Exists — физический файл присутствует в хранилище
	Exists bool `json:"exists"`
}

// Download — открытый файл для отдачи клиенту. Вызывающий код закрывает File.
type Download struct {
	File          *os.File
	OriginalName  string
	MimeType      string
	DownloadCount int64
}

// FileService — сервис файлов.
type FileService struct {
	repo   FileRepo
	tx     FileTx
	blobs  Blobs
	cache  *StatsCache
	now    func() time.Time
	logger *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(repo FileRepo, tx FileTx, blobs Blobs, cache *StatsCache, logger *slog.Logger) *FileService {
	return &FileService{
		repo:   repo,
		tx:     tx,
		blobs:  blobs,
		cache:  cache,
		now:    time.Now,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

func (s *FileService) view(f *model.FileRecord) *FileView {
	return &FileView{
		FileRecord:        *f,
		DownloadReference: strconv.FormatInt(f.ID, 10),
		Exists:            s.blobs.Exists(f.StoragePath),
	}
}

// mapBlobError переводит ошибки blobstore в ошибки сервисного слоя.
func mapBlobError(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrTooLarge):
		return fmt.Errorf("%w: %w", ErrFileTooLarge, err)
	case errors.Is(err, blobstore.ErrExtension), errors.Is(err, blobstore.ErrInvalidPath):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorageIO, err)
	}
}

// Upload сохраняет файл и его метаданные.
func (s *FileService) Upload(ctx context.Context, p UploadParams) (*FileView, error) {
	name := strings.TrimSpace(p.OriginalName)
	if name == "" {
		return nil, fmt.Errorf("%w: не указано имя файла", ErrValidation)
	}
	if err := s.blobs.Validate(name, p.Size); err != nil {
		uploadFailuresTotal.WithLabelValues("validate").Inc()
		return nil, mapBlobError(err)
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(p.Meta.Category)); n > maxCategoryLen {
		uploadFailuresTotal.WithLabelValues("validate").Inc()
		return nil, fmt.Errorf("%w: category длиннее %d символов", ErrValidation, maxCategoryLen)
	}

	fileType := blobstore.TypeOf(name)
	category := blobstore.CategoryOf(name, p.Meta.Category)

	stored, err := s.blobs.Store(p.Content, name, category)
	if err != nil {
		uploadFailuresTotal.WithLabelValues("store").Inc()
		return nil, mapBlobError(err)
	}

	fields := model.Fields{
		"stored_name":   stored.StoredName,
		"original_name": name,
		"storage_path":  stored.StoragePath,
		"size_bytes":    stored.Size,
		"file_type":     fileType,
		"category":      category,
		"mime_type":     detectMime(p.ContentType, name),
		"description":   p.Meta.Description,
		"is_public":     p.Meta.IsPublic,
	}

	rec, err := s.repo.Create(ctx, fields)
	if err != nil {
		uploadFailuresTotal.WithLabelValues("metadata").Inc()
		// Компенсация: файл без строки метаданных недопустим
		if rmErr := s.blobs.Remove(stored.StoragePath); rmErr != nil {
			s.logger.Error("Не удалось удалить файл после ошибки сохранения метаданных",
				slog.String("storage_path", stored.StoragePath),
				slog.String("error", rmErr.Error()),
			)
			return nil, errors.Join(mapError(err), fmt.Errorf("%w: %w", ErrStorageIO, rmErr))
		}
		return nil, mapError(err)
	}

	uploadBytesTotal.Add(float64(stored.Size))
	s.mutated("upload")
	s.logger.Info("Файл загружен",
		slog.Int64("id", rec.ID),
		slog.String("original_name", rec.OriginalName),
		slog.String("storage_path", rec.StoragePath),
		slog.Int64("size", rec.SizeBytes),
	)
	return s.view(rec), nil
}

// detectMime возвращает MIME-тип из запроса или по расширению; nil — не определён.
func detectMime(contentType, name string) *string {
	ct := strings.TrimSpace(contentType)
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(blobstore.Ext(name)); byExt != "" {
			ct = byExt
		}
	}
	if ct == "" {
		return nil
	}
	return &ct
}

// Get возвращает метаданные файла.
func (s *FileService) Get(ctx context.Context, id int64) (*FileView, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return s.view(rec), nil
}

// Update изменяет описание, категорию или флаг публичности.
// Физический путь файла не меняется.
func (s *FileService) Update(ctx context.Context, id int64, patch model.FilePatch) (*FileView, error) {
	if patch.Category.Set && patch.Category.Value != nil {
		c := strings.ToLower(strings.TrimSpace(*patch.Category.Value))
		patch.Category.Value = &c
	}
	fields, err := patch.Fields()
	if err != nil {
		return nil, mapError(err)
	}
	rec, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, mapError(err)
	}
	if len(fields) > 0 {
		s.mutated("update")
	}
	return s.view(rec), nil
}

// List возвращает страницу метаданных файлов.
func (s *FileService) List(ctx context.Context, q repository.Query) (*repository.Page[FileView], error) {
	page, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, mapError(err)
	}
	items := make([]FileView, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *s.view(&page.Items[i]))
	}
	return &repository.Page[FileView]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

// Delete удаляет метаданные и физический файл в одной транзакции.
// Отсутствующий физический файл не является ошибкой.
func (s *FileService) Delete(ctx context.Context, id int64) error {
	var removed *model.FileRecord
	err := s.tx.RunInTx(ctx, func(repo FileRepo) error {
		rec, err := repo.Delete(ctx, id)
		if err != nil {
			return mapError(err)
		}
		if err := s.blobs.Remove(rec.StoragePath); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageIO, err)
		}
		removed = rec
		return nil
	})
	if err != nil {
		if removed != nil {
			// Файл уже удалён, а строка осталась: её найдёт сверка
			// (ll_reconcile_missing_files)
			s.logger.Error("Транзакция удаления не зафиксирована после удаления файла",
				slog.Int64("id", removed.ID),
				slog.String("storage_path", removed.StoragePath),
				slog.String("error", err.Error()),
			)
		}
		return mapError(err)
	}

	s.mutated("delete")
	s.logger.Info("Файл удалён",
		slog.Int64("id", removed.ID),
		slog.String("storage_path", removed.StoragePath),
	)
	return nil
}

// RecordDownload открывает файл и атомарно увеличивает счётчик скачиваний.
// Счётчик растёт только если файл удалось открыть.
func (s *FileService) RecordDownload(ctx context.Context, id int64) (*Download, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	f, err := s.blobs.Open(rec.StoragePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Файл метаданных отсутствует на диске",
				slog.Int64("id", rec.ID),
				slog.String("storage_path", rec.StoragePath),
			)
			return nil, fmt.Errorf("%w: %s", ErrMissingBlob, rec.StoragePath)
		}
		return nil, mapBlobError(err)
	}

	count, err := s.repo.Increment(ctx, id, "download_count")
	if err != nil {
		f.Close()
		return nil, mapError(err)
	}
	downloadsTotal.Inc()

	mimeType := "application/octet-stream"
	if rec.MimeType != nil && *rec.MimeType != "" {
		mimeType = *rec.MimeType
	}
	return &Download{
		File:          f,
		OriginalName:  rec.OriginalName,
		MimeType:      mimeType,
		DownloadCount: count,
	}, nil
}

// Stats возвращает сводную статистику файлов.
func (s *FileService) Stats(ctx context.Context) (stats.Summary, error) {
	return computeStats(ctx, fileResource, s.repo, FileStats, s.cache, s.now)
}

func (s *FileService) mutated(op string) {
	recordOpsTotal.WithLabelValues(fileResource, op).Inc()
	s.cache.Invalidate(fileResource)
}
