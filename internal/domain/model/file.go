package model

import "time"

// FileRecord — метаданные загруженного файла.
// Хранится в таблице file_records; физический файл лежит
// по пути StoragePath относительно корня хранилища.
type FileRecord struct {
	ID int64 `db:"id" json:"id"`
	// StoredName — сгенерированное имя (UUID + исходное расширение)
	StoredName string `db:"stored_name" json:"stored_name"`
	// OriginalName — имя файла, переданное клиентом
	OriginalName string `db:"original_name" json:"original_name"`
	// StoragePath — category/stored_name
	StoragePath string `db:"storage_path" json:"storage_path"`
	SizeBytes   int64  `db:"size_bytes" json:"size_bytes"`
	// FileType — категория, определённая по расширению
	FileType string `db:"file_type" json:"file_type"`
	// Category — категория отображения (переопределение или FileType)
	Category      string    `db:"category" json:"category"`
	MimeType      *string   `db:"mime_type" json:"mime_type"`
	Description   *string   `db:"description" json:"description"`
	IsPublic      bool      `db:"is_public" json:"is_public"`
	DownloadCount int64     `db:"download_count" json:"download_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FileMeta — пользовательские метаданные при загрузке файла.
type FileMeta struct {
	Description *string
	Category    string
	IsPublic    bool
}

// FilePatch — частичное обновление метаданных файла.
// Смена категории не перемещает физический файл.
type FilePatch struct {
	Description Optional[string] `json:"description"`
	Category    Optional[string] `json:"category"`
	IsPublic    Optional[bool]   `json:"is_public"`
}

// Fields возвращает только переданные колонки.
func (p FilePatch) Fields() (Fields, error) {
	s := newFieldSet()
	optText(s, "description", p.Description, 0)
	optRequired(s, "category", p.Category, 100)
	optFlag(s, "is_public", p.IsPublic)
	return s.result()
}
