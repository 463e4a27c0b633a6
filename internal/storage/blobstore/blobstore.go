// Пакет blobstore — хранение загруженных файлов на диске.
// Файлы раскладываются по директориям категорий под корнем
// хранилища и получают сгенерированные имена (UUID + расширение).
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ошибки хранилища.
var (
	// ErrTooLarge — размер файла превышает допустимый.
	ErrTooLarge = errors.New("файл превышает максимальный размер")
	// ErrExtension — расширение файла не разрешено.
	ErrExtension = errors.New("расширение файла не разрешено")
	// ErrInvalidPath — путь выходит за пределы корня хранилища.
	ErrInvalidPath = errors.New("недопустимый путь хранения")
)

// tmpPrefix — префикс временных файлов незавершённой записи.
const tmpPrefix = ".upload-"

// Store — управление физическими файлами на диске.
type Store struct {
	// root — корневая директория хранения файлов (LL_STORAGE_DIR)
	root    string
	maxSize int64
	allowed map[string]bool
}

// Stored — результат сохранения файла.
type Stored struct {
	// StoredName — имя файла на диске
	StoredName string
	// StoragePath — путь относительно корня: category/stored_name
	StoragePath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт Store. Создаёт корневую директорию, если её нет.
// allowed — расширения в нижнем регистре с точкой.
func New(root string, maxSize int64, allowed []string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", root, err)
	}

	set := make(map[string]bool, len(allowed))
	for _, ext := range allowed {
		set[strings.ToLower(ext)] = true
	}
	return &Store{root: root, maxSize: maxSize, allowed: set}, nil
}

// Root возвращает путь к корню хранилища.
func (s *Store) Root() string {
	return s.root
}

// MaxSize возвращает максимальный размер файла в байтах.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Validate проверяет имя и заявленный размер файла.
// declaredSize < 0 — размер неизвестен, превышение проверяется при записи.
func (s *Store) Validate(originalName string, declaredSize int64) error {
	if declaredSize > s.maxSize {
		return fmt.Errorf("%w: %d > %d байт", ErrTooLarge, declaredSize, s.maxSize)
	}
	ext := Ext(originalName)
	if ext == "" || !s.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrExtension, originalName)
	}
	return nil
}

// Store записывает содержимое в <root>/<category>/<uuid><ext>.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке или превышении размера temp файл удаляется.
func (s *Store) Store(content io.Reader, originalName, category string) (*Stored, error) {
	dirName := sanitize(category)
	dir := filepath.Join(s.root, dirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dirName, err)
	}

	storedName := strings.ReplaceAll(uuid.NewString(), "-", "") + Ext(originalName)
	fullPath := filepath.Join(dir, storedName)

	f, err := os.CreateTemp(dir, tmpPrefix+"*.tmp")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	// Читаем на байт больше лимита, чтобы обнаружить превышение
	size, err := io.Copy(f, io.LimitReader(content, s.maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if size > s.maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, s.maxSize)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &Stored{
		StoredName:  storedName,
		StoragePath: dirName + "/" + storedName,
		Size:        size,
	}, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (s *Store) FullPath(storagePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	return filepath.Join(s.root, clean), nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
// Для отсутствующего файла ошибка удовлетворяет errors.Is(err, fs.ErrNotExist).
func (s *Store) Open(storagePath string) (*os.File, error) {
	full, err := s.FullPath(storagePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	return f, nil
}

// Remove удаляет файл. Отсутствующий файл не является ошибкой.
func (s *Store) Remove(storagePath string) error {
	full, err := s.FullPath(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование обычного файла.
func (s *Store) Exists(storagePath string) bool {
	full, err := s.FullPath(storagePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// CheckReady проверяет, что корень хранилища существует и доступен для записи.
// Реализует handlers.ReadinessChecker.
func (s *Store) CheckReady() (status, message string) {
	f, err := os.CreateTemp(s.root, tmpPrefix+"probe-*.tmp")
	if err != nil {
		return "fail", fmt.Sprintf("хранилище недоступно для записи: %v", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return "ok", ""
}

// Entry — файл, найденный при обходе хранилища.
type Entry struct {
	// StoragePath — путь относительно корня в формате category/name
	StoragePath string
	ModTime     time.Time
	// Temp — временный файл незавершённой записи
	Temp bool
}

// Walk обходит все файлы хранилища.
func (s *Store) Walk(fn func(Entry) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		return fn(Entry{
			StoragePath: filepath.ToSlash(rel),
			ModTime:     info.ModTime(),
			Temp:        strings.HasPrefix(d.Name(), tmpPrefix),
		})
	})
}

// sanitize превращает категорию в имя директории.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return CategoryOther
	}
	return result.String()
}
