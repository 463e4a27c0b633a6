// records.go — CRUD, списки и статистика записей еды и фильмов.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/stats"
)

// Prometheus-метрики операций с записями.
var (
	recordOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ll_record_operations_total",
		Help: "Количество операций с записями по ресурсу и типу операции.",
	}, []string{"resource", "operation"})
	listDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ll_list_duration_seconds",
		Help:    "Длительность запросов списка записей.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
)

// Наборы агрегатов по ресурсам.
var (
	FoodStats  = stats.Spec{Averages: []string{"rating"}, Sums: []string{"price"}}
	MovieStats = stats.Spec{Averages: []string{"rating"}, Sums: []string{"duration"}, Flags: []string{"is_favorite"}}
	NoteStats  = stats.Spec{Flags: []string{"is_special"}}
	FileStats  = stats.Spec{Sums: []string{"size_bytes"}, Flags: []string{"is_public"}}
)

// RecordStore — хранилище записей одного ресурса.
// Реализуется repository.Records.
type RecordStore[T any] interface {
	Create(ctx context.Context, fields model.Fields) (*T, error)
	GetByID(ctx context.Context, id int64) (*T, error)
	Update(ctx context.Context, id int64, fields model.Fields) (*T, error)
	Delete(ctx context.Context, id int64) (*T, error)
	List(ctx context.Context, q repository.Query) (*repository.Page[T], error)
	StatPoints(ctx context.Context, f repository.Filter) ([]stats.Point, error)
}

// RecordService — операции над записями ресурса без особой логики.
type RecordService[T any] struct {
	resource string
	store    RecordStore[T]
	spec     stats.Spec
	cache    *StatsCache
	now      func() time.Time
	logger   *slog.Logger
}

// NewRecordService создаёт сервис ресурса.
// resource — имя ресурса в метриках, логах и ключах кэша.
func NewRecordService[T any](
	resource string,
	store RecordStore[T],
	spec stats.Spec,
	cache *StatsCache,
	logger *slog.Logger,
) *RecordService[T] {
	return &RecordService[T]{
		resource: resource,
		store:    store,
		spec:     spec,
		cache:    cache,
		now:      time.Now,
		logger:   logger.With(slog.String("component", resource+"_service")),
	}
}

// Create проверяет входные данные и создаёт запись.
func (s *RecordService[T]) Create(ctx context.Context, in model.Writable) (*T, error) {
	fields, err := in.Fields()
	if err != nil {
		return nil, mapError(err)
	}
	item, err := s.store.Create(ctx, fields)
	if err != nil {
		return nil, mapError(err)
	}
	s.mutated("create")
	return item, nil
}

// Get возвращает запись по id.
func (s *RecordService[T]) Get(ctx context.Context, id int64) (*T, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	return item, nil
}

// Update применяет только переданные поля.
func (s *RecordService[T]) Update(ctx context.Context, id int64, patch model.Writable) (*T, error) {
	fields, err := patch.Fields()
	if err != nil {
		return nil, mapError(err)
	}
	item, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return nil, mapError(err)
	}
	if len(fields) > 0 {
		s.mutated("update")
	}
	return item, nil
}

// Delete удаляет запись. Повторное удаление — ErrNotFound.
func (s *RecordService[T]) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.Delete(ctx, id); err != nil {
		return mapError(err)
	}
	s.mutated("delete")
	return nil
}

// List возвращает страницу записей.
func (s *RecordService[T]) List(ctx context.Context, q repository.Query) (*repository.Page[T], error) {
	start := time.Now()
	page, err := s.store.List(ctx, q)
	listDuration.WithLabelValues(s.resource).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, mapError(err)
	}

	s.logger.Debug("Список записей",
		slog.Int("total", page.Total),
		slog.Int("page", page.Page),
		slog.Int("page_size", page.PageSize),
	)
	return page, nil
}

// Stats возвращает сводную статистику ресурса.
func (s *RecordService[T]) Stats(ctx context.Context) (stats.Summary, error) {
	return computeStats(ctx, s.resource, s.store, s.spec, s.cache, s.now)
}

func (s *RecordService[T]) mutated(op string) {
	recordOpsTotal.WithLabelValues(s.resource, op).Inc()
	s.cache.Invalidate(s.resource)
}

// statPointSource — источник проекций для агрегации.
type statPointSource interface {
	StatPoints(ctx context.Context, f repository.Filter) ([]stats.Point, error)
}

// computeStats считает сводку или берёт её из кэша.
func computeStats(
	ctx context.Context,
	resource string,
	src statPointSource,
	spec stats.Spec,
	cache *StatsCache,
	now func() time.Time,
) (stats.Summary, error) {
	cached, gen, ok := cache.Get(resource)
	if ok {
		return cached, nil
	}
	points, err := src.StatPoints(ctx, repository.Filter{})
	if err != nil {
		return stats.Summary{}, fmt.Errorf("статистика %s: %w", resource, mapError(err))
	}
	summary := stats.Compute(points, spec, now())
	// Мутация во время подсчёта: сводка отдаётся, но не кэшируется
	cache.Set(resource, gen, summary)
	return summary, nil
}
