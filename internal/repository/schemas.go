package repository

// Схемы таблиц записей. Списки колонок совпадают с db-тегами моделей
// в internal/domain/model.

// FoodSchema — таблица food_records.
var FoodSchema = &Schema{
	Table: "food_records",
	Columns: []string{
		"id", "name", "location", "rating", "description", "date",
		"category", "price", "image_url", "created_at", "updated_at",
	},
	Required:   []string{"name"},
	Writable:   []string{"name", "location", "rating", "description", "date", "category", "price", "image_url"},
	Sortable:   []string{"id", "name", "rating", "price", "date", "category", "created_at", "updated_at"},
	Searchable: []string{"name", "location", "description"},
	Exact:      []string{"category"},
	Keys:       []string{"id"},
	DateColumn: "date",
	Stats: StatsProjection{
		CategoryColumn: "category",
		Numbers:        []string{"rating", "price"},
	},
}

// MovieSchema — таблица movie_records.
var MovieSchema = &Schema{
	Table: "movie_records",
	Columns: []string{
		"id", "title", "director", "genre", "rating", "review", "watch_date",
		"duration", "poster_url", "imdb_id", "is_favorite", "created_at", "updated_at",
	},
	Required: []string{"title"},
	Writable: []string{
		"title", "director", "genre", "rating", "review", "watch_date",
		"duration", "poster_url", "imdb_id", "is_favorite",
	},
	Sortable:   []string{"id", "title", "director", "rating", "watch_date", "duration", "created_at", "updated_at"},
	Searchable: []string{"title", "director", "review"},
	Exact:      []string{"genre", "is_favorite"},
	Keys:       []string{"id"},
	DateColumn: "watch_date",
	Stats: StatsProjection{
		CategoryColumn: "genre",
		Numbers:        []string{"rating", "duration"},
		Flags:          []string{"is_favorite"},
	},
}

// NoteSchema — таблица calendar_notes. Естественный ключ — date.
var NoteSchema = &Schema{
	Table:       "calendar_notes",
	Columns:     []string{"id", "date", "content", "mood", "weather", "is_special", "created_at", "updated_at"},
	Required:    []string{"date", "content"},
	Writable:    []string{"date", "content", "mood", "weather", "is_special"},
	Sortable:    []string{"id", "date", "mood", "created_at", "updated_at"},
	DefaultSort: "date",
	Searchable:  []string{"content", "mood"},
	Exact:       []string{"mood", "is_special"},
	Keys:        []string{"id", "date"},
	DateColumn:  "date",
	Stats: StatsProjection{
		CategoryColumn: "mood",
		BucketColumn:   "date",
		Flags:          []string{"is_special"},
	},
}

// FileSchema — таблица file_records.
var FileSchema = &Schema{
	Table: "file_records",
	Columns: []string{
		"id", "stored_name", "original_name", "storage_path", "size_bytes", "file_type",
		"category", "mime_type", "description", "is_public", "download_count",
		"created_at", "updated_at",
	},
	Required: []string{"stored_name", "original_name", "storage_path", "size_bytes", "file_type", "category"},
	Writable: []string{
		"stored_name", "original_name", "storage_path", "size_bytes", "file_type",
		"category", "mime_type", "description", "is_public",
	},
	Sortable:   []string{"id", "original_name", "size_bytes", "download_count", "category", "created_at", "updated_at"},
	Searchable: []string{"original_name", "description"},
	Exact:      []string{"file_type", "category", "is_public"},
	Keys:       []string{"id", "stored_name", "storage_path"},
	Counters:   []string{"download_count"},
	Stats: StatsProjection{
		CategoryColumn: "category",
		Numbers:        []string{"size_bytes"},
		Flags:          []string{"is_public"},
	},
}
