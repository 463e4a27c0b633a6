// notes.go — заметки календаря: одна заметка на дату.
//
// Запись по дате работает как upsert-or-delete:
//
//	нет заметки + непустой текст → создание
//	нет заметки + пустой текст   → ничего
//	есть заметка + непустой текст → обновление текста
//	есть заметка + пустой текст   → удаление
//
// Уникальность даты обеспечивает ограничение в БД: проигравший
// в гонке параллельных созданий получает ErrConflict.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/stats"
)

// WriteOutcome — результат записи заметки по дате.
type WriteOutcome string

// Результаты записи.
const (
	OutcomeCreated WriteOutcome = "created"
	OutcomeUpdated WriteOutcome = "updated"
	OutcomeDeleted WriteOutcome = "deleted"
	OutcomeNoop    WriteOutcome = "noop"
)

// NoteStore — хранилище заметок. Реализуется repository.Records.
type NoteStore interface {
	Create(ctx context.Context, fields model.Fields) (*model.CalendarNote, error)
	FindOne(ctx context.Context, column string, value any) (*model.CalendarNote, error)
	UpdateBy(ctx context.Context, column string, value any, fields model.Fields) (*model.CalendarNote, error)
	DeleteBy(ctx context.Context, column string, value any) (*model.CalendarNote, error)
	List(ctx context.Context, q repository.Query) (*repository.Page[model.CalendarNote], error)
	FindAll(ctx context.Context, f repository.Filter, sortBy, sortOrder string) ([]model.CalendarNote, error)
	StatPoints(ctx context.Context, f repository.Filter) ([]stats.Point, error)
}

// MonthNotes — заметки месяца: дата → текст.
type MonthNotes struct {
	Year  int               `json:"year"`
	Month int               `json:"month"`
	Notes map[string]string `json:"notes"`
	Count int               `json:"count"`
}

const noteResource = "calendar"

// NoteService — сервис заметок календаря.
type NoteService struct {
	store  NoteStore
	cache  *StatsCache
	now    func() time.Time
	logger *slog.Logger
}

// NewNoteService создаёт сервис заметок.
func NewNoteService(store NoteStore, cache *StatsCache, logger *slog.Logger) *NoteService {
	return &NoteService{
		store:  store,
		cache:  cache,
		now:    time.Now,
		logger: logger.With(slog.String("component", "note_service")),
	}
}

func checkDate(date string) error {
	if !model.ValidDate(date) {
		return fmt.Errorf("%w: дата должна быть в формате YYYY-MM-DD, получено %q", ErrValidation, date)
	}
	return nil
}

// Write применяет таблицу переходов для (date, content).
// Возвращает заметку (nil для deleted/noop) и вид перехода.
func (s *NoteService) Write(ctx context.Context, date, content string) (*model.CalendarNote, WriteOutcome, error) {
	if err := checkDate(date); err != nil {
		return nil, "", err
	}
	content = strings.TrimSpace(content)

	existing, err := s.store.FindOne(ctx, "date", date)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, "", mapError(err)
	}
	present := err == nil

	switch {
	case !present && content == "":
		return nil, OutcomeNoop, nil

	case !present:
		note, err := s.store.Create(ctx, model.Fields{"date": date, "content": content})
		if err != nil {
			return nil, "", mapError(err)
		}
		s.mutated(OutcomeCreated, date)
		return note, OutcomeCreated, nil

	case content == "":
		if _, err := s.store.DeleteBy(ctx, "date", date); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Заметку уже удалили параллельно — итоговое состояние то же
				return nil, OutcomeNoop, nil
			}
			return nil, "", mapError(err)
		}
		s.mutated(OutcomeDeleted, date)
		return nil, OutcomeDeleted, nil

	default:
		if existing.Content == content {
			return existing, OutcomeUpdated, nil
		}
		note, err := s.store.UpdateBy(ctx, "date", date, model.Fields{"content": content})
		if err != nil {
			return nil, "", mapError(err)
		}
		s.mutated(OutcomeUpdated, date)
		return note, OutcomeUpdated, nil
	}
}

// Create создаёт заметку. Если на дату уже есть заметка — ErrConflict.
func (s *NoteService) Create(ctx context.Context, in model.NoteInput) (*model.CalendarNote, error) {
	fields, err := in.Fields()
	if err != nil {
		return nil, mapError(err)
	}
	note, err := s.store.Create(ctx, fields)
	if err != nil {
		return nil, mapError(err)
	}
	s.mutated(OutcomeCreated, in.Date)
	return note, nil
}

// Get возвращает заметку на дату.
func (s *NoteService) Get(ctx context.Context, date string) (*model.CalendarNote, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	note, err := s.store.FindOne(ctx, "date", date)
	if err != nil {
		return nil, mapError(err)
	}
	return note, nil
}

// Update изменяет только переданные поля заметки на дату.
func (s *NoteService) Update(ctx context.Context, date string, patch model.NotePatch) (*model.CalendarNote, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	fields, err := patch.Fields()
	if err != nil {
		return nil, mapError(err)
	}
	note, err := s.store.UpdateBy(ctx, "date", date, fields)
	if err != nil {
		return nil, mapError(err)
	}
	if len(fields) > 0 {
		s.mutated(OutcomeUpdated, date)
	}
	return note, nil
}

// Delete удаляет заметку на дату. Если её нет — ErrNotFound.
func (s *NoteService) Delete(ctx context.Context, date string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	if _, err := s.store.DeleteBy(ctx, "date", date); err != nil {
		return mapError(err)
	}
	s.mutated(OutcomeDeleted, date)
	return nil
}

// List возвращает страницу заметок.
func (s *NoteService) List(ctx context.Context, q repository.Query) (*repository.Page[model.CalendarNote], error) {
	page, err := s.store.List(ctx, q)
	if err != nil {
		return nil, mapError(err)
	}
	return page, nil
}

// Month возвращает заметки за месяц.
// Год — от 1900 до 2100, месяц — от 1 до 12.
func (s *NoteService) Month(ctx context.Context, year, month int) (*MonthNotes, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: месяц должен быть от 1 до 12", ErrValidation)
	}
	if year < 1900 || year > 2100 {
		return nil, fmt.Errorf("%w: год должен быть от 1900 до 2100", ErrValidation)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	notes, err := s.store.FindAll(ctx, repository.Filter{
		DateFrom: first.Format(model.DateLayout),
		DateTo:   last.Format(model.DateLayout),
	}, "date", "asc")
	if err != nil {
		return nil, mapError(err)
	}

	result := &MonthNotes{Year: year, Month: month, Notes: make(map[string]string, len(notes)), Count: len(notes)}
	for _, n := range notes {
		result.Notes[n.Date] = n.Content
	}
	return result, nil
}

// Stats возвращает сводную статистику заметок.
func (s *NoteService) Stats(ctx context.Context) (stats.Summary, error) {
	return computeStats(ctx, noteResource, s.store, NoteStats, s.cache, s.now)
}

func (s *NoteService) mutated(outcome WriteOutcome, date string) {
	recordOpsTotal.WithLabelValues(noteResource, string(outcome)).Inc()
	s.cache.Invalidate(noteResource)
	s.logger.Debug("Заметка изменена",
		slog.String("date", date),
		slog.String("outcome", string(outcome)),
	)
}
