// StatsCache — LRU-кэш сводной статистики ресурсов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lifelog/internal/stats"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ll_stats_cache_hits_total",
		Help: "Общее количество попаданий в кэш статистики.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ll_stats_cache_misses_total",
		Help: "Общее количество промахов кэша статистики.",
	})
)

// StatsCache хранит вычисленные сводки по имени ресурса.
// Мутации ресурса удаляют его сводку и увеличивают поколение ресурса;
// TTL ограничивает устаревание recent_count.
type StatsCache struct {
	cache *expirable.LRU[string, stats.Summary]

	mu  sync.Mutex
	gen map[string]uint64
}

// NewStatsCache создаёт кэш с указанным максимальным размером и TTL.
func NewStatsCache(maxSize int, ttl time.Duration) *StatsCache {
	return &StatsCache{
		cache: expirable.NewLRU[string, stats.Summary](maxSize, nil, ttl),
		gen:   make(map[string]uint64),
	}
}

// Get возвращает сводку ресурса и его текущее поколение.
// Поколение передаётся в Set после пересчёта. Nil-кэш всегда промахивается.
func (c *StatsCache) Get(resource string) (stats.Summary, uint64, bool) {
	if c == nil {
		return stats.Summary{}, 0, false
	}
	c.mu.Lock()
	gen := c.gen[resource]
	c.mu.Unlock()

	val, ok := c.cache.Get(resource)
	if ok {
		cacheHitsTotal.Inc()
		return val, gen, true
	}
	cacheMissesTotal.Inc()
	return stats.Summary{}, gen, false
}

// Set сохраняет сводку, посчитанную в поколении gen. Если ресурс успел
// измениться, сводка отбрасывается и возвращается false.
func (c *StatsCache) Set(resource string, gen uint64, s stats.Summary) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[resource] != gen {
		return false
	}
	c.cache.Add(resource, s)
	return true
}

// Invalidate удаляет сводку ресурса.
func (c *StatsCache) Invalidate(resource string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.gen[resource]++
	c.cache.Remove(resource)
	c.mu.Unlock()
}
