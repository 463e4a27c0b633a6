// Пакет service — бизнес-логика lifelog.
// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
)

var (
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFileTooLarge — файл превышает допустимый размер.
	ErrFileTooLarge = fmt.Errorf("%w: файл слишком большой", ErrValidation)
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrMissingBlob — метаданные файла есть, физического файла нет.
	ErrMissingBlob = errors.New("файл отсутствует в хранилище")
	// ErrStorageIO — ошибка записи или удаления в файловом хранилище.
	ErrStorageIO = errors.New("ошибка файлового хранилища")
)

// mapError переводит ошибки нижних слоёв в ошибки сервисного слоя.
// Исходная ошибка остаётся в цепочке.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrMissingBlob), errors.Is(err, ErrStorageIO):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, repository.ErrValidation), errors.Is(err, model.ErrInvalid):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	default:
		return err
	}
}
