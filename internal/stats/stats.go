// Пакет stats — агрегаты по набору записей: общее количество,
// записи за последние 30 дней, распределение по категориям,
// помесячный ряд и числовые средние/суммы.
package stats

import (
	"sort"
	"strings"
	"time"
)

// Uncategorized — категория записей без значения категории.
const Uncategorized = "uncategorized"

// RecentWindow — окно подсчёта недавних записей.
const RecentWindow = 30 * 24 * time.Hour

// MaxMonths — максимальная длина помесячного ряда.
const MaxMonths = 12

// Point — проекция одной записи для агрегации.
type Point struct {
	CreatedAt time.Time
	// Category — nil или пустая строка попадают в Uncategorized
	Category *string
	// Bucket — строка даты YYYY-MM-DD; пустая — месяц берётся из CreatedAt
	Bucket string
	// Numbers содержит только ненулевые (не NULL) числовые значения
	Numbers map[string]float64
	Flags   map[string]bool
}

// Spec — какие агрегаты считать для ресурса.
type Spec struct {
	Averages []string
	Sums     []string
	Flags    []string
}

// CategoryCount — количество записей категории.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MonthCount — количество записей за месяц (YYYY-MM).
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Summary — результат агрегации.
type Summary struct {
	TotalCount  int                `json:"total_count"`
	RecentCount int                `json:"recent_count"`
	Categories  []CategoryCount    `json:"categories"`
	Monthly     []MonthCount       `json:"monthly"`
	Averages    map[string]float64 `json:"averages"`
	Sums        map[string]float64 `json:"sums"`
	Flags       map[string]int     `json:"flags"`
}

// Compute считает агрегаты по точкам на момент now.
func Compute(points []Point, spec Spec, now time.Time) Summary {
	sum := Summary{
		TotalCount: len(points),
		Categories: []CategoryCount{},
		Monthly:    []MonthCount{},
		Averages:   make(map[string]float64, len(spec.Averages)),
		Sums:       make(map[string]float64, len(spec.Sums)),
		Flags:      make(map[string]int, len(spec.Flags)),
	}

	cutoff := now.Add(-RecentWindow)
	categories := make(map[string]int)
	months := make(map[string]int)
	totals := make(map[string]float64)
	counts := make(map[string]int)
	for _, name := range spec.Flags {
		sum.Flags[name] = 0
	}

	for _, p := range points {
		if !p.CreatedAt.Before(cutoff) {
			sum.RecentCount++
		}

		categories[categoryName(p.Category)]++

		if m, ok := monthOf(p); ok {
			months[m]++
		}

		for name, v := range p.Numbers {
			totals[name] += v
			counts[name]++
		}
		for _, name := range spec.Flags {
			if p.Flags[name] {
				sum.Flags[name]++
			}
		}
	}

	for _, name := range spec.Averages {
		if counts[name] > 0 {
			sum.Averages[name] = totals[name] / float64(counts[name])
		} else {
			sum.Averages[name] = 0
		}
	}
	for _, name := range spec.Sums {
		sum.Sums[name] = totals[name]
	}
	for name, n := range categories {
		sum.Categories = append(sum.Categories, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(sum.Categories, func(i, j int) bool {
		if sum.Categories[i].Count != sum.Categories[j].Count {
			return sum.Categories[i].Count > sum.Categories[j].Count
		}
		return sum.Categories[i].Name < sum.Categories[j].Name
	})

	sum.Monthly = monthlySeries(months)
	return sum
}

// monthlySeries сортирует месяцы по возрастанию и оставляет
// последние MaxMonths.
func monthlySeries(months map[string]int) []MonthCount {
	series := make([]MonthCount, 0, len(months))
	for m, n := range months {
		series = append(series, MonthCount{Month: m, Count: n})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	if len(series) > MaxMonths {
		series = series[len(series)-MaxMonths:]
	}
	return series
}

func categoryName(c *string) string {
	if c == nil {
		return Uncategorized
	}
	name := strings.TrimSpace(*c)
	if name == "" {
		return Uncategorized
	}
	return name
}

// monthOf возвращает метку YYYY-MM. Точка с некорректной датой
// не попадает в ряд, но учитывается в TotalCount.
func monthOf(p Point) (string, bool) {
	if p.Bucket == "" {
		if p.CreatedAt.IsZero() {
			return "", false
		}
		return p.CreatedAt.UTC().Format("2006-01"), true
	}
	if len(p.Bucket) < 7 {
		return "", false
	}
	m := p.Bucket[:7]
	if _, err := time.Parse("2006-01", m); err != nil {
		return "", false
	}
	return m, true
}
