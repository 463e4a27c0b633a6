// reconcile.go — фоновая сверка файлового хранилища с таблицей file_records.
//
// За один проход:
//  1. Удаляет файлы, на которые не ссылается ни одна строка (сироты)
//  2. Удаляет брошенные временные файлы незавершённых загрузок
//  3. Считает строки, физический файл которых отсутствует
//
// Файлы моложе grace не трогаются: загрузка могла записать файл,
// но ещё не сохранить строку метаданных.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lifelog/internal/storage/blobstore"
)

// Prometheus-метрики сверки.
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ll_reconcile_runs_total",
		Help: "Общее количество запусков сверки хранилища.",
	})
	reconcileOrphansRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ll_reconcile_orphans_removed_total",
		Help: "Общее количество удалённых файлов без метаданных.",
	})
	reconcileMissingFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ll_reconcile_missing_files",
		Help: "Количество записей, файл которых отсутствует в хранилище (последний запуск).",
	})
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ll_reconcile_duration_seconds",
		Help:    "Длительность сверки хранилища в секундах.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// FileIndex — источник путей файлов, известных БД.
type FileIndex interface {
	Values(ctx context.Context, column string) ([]string, error)
}

// BlobWalker — хранилище, которое можно обойти и почистить.
type BlobWalker interface {
	Walk(fn func(blobstore.Entry) error) error
	Remove(storagePath string) error
	Exists(storagePath string) bool
}

// ReconcileResult — результат одного прохода сверки.
type ReconcileResult struct {
	// Checked — количество просмотренных файлов
	Checked int
	// OrphansRemoved — удалено файлов без строки метаданных
	OrphansRemoved int
	// TempRemoved — удалено брошенных временных файлов
	TempRemoved int
	// MissingFiles — строки, физический файл которых отсутствует
	MissingFiles int
	// Errors — ошибки удаления
	Errors   int
	Duration time.Duration
}

// BlobReconciler — сервис сверки хранилища.
type BlobReconciler struct {
	index    FileIndex
	blobs    BlobWalker
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBlobReconciler создаёт сервис сверки.
func NewBlobReconciler(
	index FileIndex,
	blobs BlobWalker,
	interval time.Duration,
	grace time.Duration,
	logger *slog.Logger,
) *BlobReconciler {
	return &BlobReconciler{
		index:    index,
		blobs:    blobs,
		interval: interval,
		grace:    grace,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую сверку. Нулевой интервал — сверка выключена.
func (r *BlobReconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("Сверка хранилища отключена")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(runCtx)

	r.logger.Info("Сверка хранилища запущена",
		slog.String("interval", r.interval.String()),
		slog.String("grace", r.grace.String()),
	)
}

// Stop останавливает фоновую сверку и ждёт завершения текущего прохода.
func (r *BlobReconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.logger.Info("Сверка хранилища остановлена")
}

func (r *BlobReconciler) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Ошибка сверки хранилища", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один проход сверки.
// Список путей из БД читается до обхода диска: файл, записанный
// после чтения списка, моложе grace и не удаляется.
func (r *BlobReconciler) RunOnce(ctx context.Context) (*ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &ReconcileResult{}

	paths, err := r.index.Values(ctx, "storage_path")
	if err != nil {
		return nil, fmt.Errorf("чтение путей файлов: %w", err)
	}
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}

	cutoff := r.now().Add(-r.grace)
	err = r.blobs.Walk(func(e blobstore.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Checked++
		if _, ok := known[e.StoragePath]; ok && !e.Temp {
			return nil
		}
		if e.ModTime.After(cutoff) {
			return nil
		}
		if err := r.blobs.Remove(e.StoragePath); err != nil {
			result.Errors++
			r.logger.Warn("Не удалось удалить файл при сверке",
				slog.String("storage_path", e.StoragePath),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if e.Temp {
			result.TempRemoved++
		} else {
			result.OrphansRemoved++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("обход хранилища: %w", err)
	}

	for _, p := range paths {
		if !r.blobs.Exists(p) {
			result.MissingFiles++
		}
	}

	result.Duration = time.Since(start)

	reconcileRunsTotal.Inc()
	reconcileOrphansRemovedTotal.Add(float64(result.OrphansRemoved))
	reconcileMissingFiles.Set(float64(result.MissingFiles))
	reconcileDurationSeconds.Observe(result.Duration.Seconds())

	r.logger.Info("Сверка хранилища завершена",
		slog.Int("checked", result.Checked),
		slog.Int("orphans_removed", result.OrphansRemoved),
		slog.Int("temp_removed", result.TempRemoved),
		slog.Int("missing_files", result.MissingFiles),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}
