package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/stats"
	"github.com/bigkaa/lifelog/internal/storage/blobstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }

func notFound(table string) error {
	return fmt.Errorf("%w: %s", repository.ErrNotFound, table)
}

// --- Заметки ---

type fakeNoteStore struct {
	mu     sync.Mutex
	notes  map[string]model.CalendarNote
	nextID int64

	// deleteErr — ошибка, возвращаемая DeleteBy вместо удаления
	deleteErr error
	updates   int
}

func newFakeNoteStore(notes ...model.CalendarNote) *fakeNoteStore {
	s := &fakeNoteStore{notes: make(map[string]model.CalendarNote)}
	for _, n := range notes {
		s.nextID++
		n.ID = s.nextID
		s.notes[n.Date] = n
	}
	return s
}

func (s *fakeNoteStore) Create(_ context.Context, f model.Fields) (*model.CalendarNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	date := f["date"].(string)
	if _, ok := s.notes[date]; ok {
		return nil, fmt.Errorf("%w: calendar_notes", repository.ErrConflict)
	}
	s.nextID++
	n := model.CalendarNote{ID: s.nextID, Date: date, Content: f["content"].(string), CreatedAt: time.Now()}
	s.notes[date] = n
	return &n, nil
}

func (s *fakeNoteStore) FindOne(_ context.Context, column string, value any) (*model.CalendarNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if column != "date" {
		return nil, errors.New("неподдерживаемая колонка")
	}
	n, ok := s.notes[value.(string)]
	if !ok {
		return nil, notFound("calendar_notes")
	}
	return &n, nil
}

func (s *fakeNoteStore) UpdateBy(_ context.Context, _ string, value any, f model.Fields) (*model.CalendarNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[value.(string)]
	if !ok {
		return nil, notFound("calendar_notes")
	}
	if c, ok := f["content"]; ok {
		n.Content = c.(string)
	}
	if v, ok := f["is_special"]; ok {
		n.IsSpecial = v.(bool)
	}
	s.updates++
	s.notes[n.Date] = n
	return &n, nil
}

func (s *fakeNoteStore) DeleteBy(_ context.Context, _ string, value any) (*model.CalendarNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return nil, s.deleteErr
	}
	n, ok := s.notes[value.(string)]
	if !ok {
		return nil, notFound("calendar_notes")
	}
	delete(s.notes, n.Date)
	return &n, nil
}

func (s *fakeNoteStore) sorted() []model.CalendarNote {
	items := slices.Collect(maps.Values(s.notes))
	slices.SortFunc(items, func(a, b model.CalendarNote) int {
		switch {
		case a.Date < b.Date:
			return -1
		case a.Date > b.Date:
			return 1
		}
		return 0
	})
	return items
}

func (s *fakeNoteStore) List(_ context.Context, q repository.Query) (*repository.Page[model.CalendarNote], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.sorted()
	return &repository.Page[model.CalendarNote]{
		Items: items, Total: len(items), Page: q.Page, PageSize: q.PageSize,
		TotalPages: repository.TotalPages(len(items), q.PageSize),
	}, nil
}

func (s *fakeNoteStore) FindAll(_ context.Context, f repository.Filter, _, _ string) ([]model.CalendarNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CalendarNote
	for _, n := range s.sorted() {
		if (f.DateFrom == "" || n.Date >= f.DateFrom) && (f.DateTo == "" || n.Date <= f.DateTo) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeNoteStore) StatPoints(_ context.Context, _ repository.Filter) ([]stats.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]stats.Point, 0, len(s.notes))
	for _, n := range s.notes {
		points = append(points, stats.Point{
			CreatedAt: n.CreatedAt,
			Category:  n.Mood,
			Bucket:    n.Date,
			Flags:     map[string]bool{"is_special": n.IsSpecial},
		})
	}
	return points, nil
}

// --- Записи еды ---

type fakeFoodStore struct {
	mu         sync.Mutex
	items      map[int64]model.FoodRecord
	nextID     int64
	statCalls  int
	createErr  error
	lastFields model.Fields
	// onStat вызывается внутри StatPoints без блокировки
	onStat func()
}

func newFakeFoodStore() *fakeFoodStore {
	return &fakeFoodStore{items: make(map[int64]model.FoodRecord)}
}

func (s *fakeFoodStore) apply(r *model.FoodRecord, f model.Fields) {
	for col, v := range f {
		switch col {
		case "name":
			r.Name = v.(string)
		case "rating":
			if v == nil {
				r.Rating = nil
			} else {
				x := v.(float64)
				r.Rating = &x
			}
		case "category":
			if v == nil {
				r.Category = nil
			} else {
				r.Category = strPtr(v.(string))
			}
		}
	}
}

func (s *fakeFoodStore) Create(_ context.Context, f model.Fields) (*model.FoodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.lastFields = f
	s.nextID++
	r := model.FoodRecord{ID: s.nextID, CreatedAt: time.Now()}
	s.apply(&r, f)
	s.items[r.ID] = r
	return &r, nil
}

func (s *fakeFoodStore) GetByID(_ context.Context, id int64) (*model.FoodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, notFound("food_records")
	}
	return &r, nil
}

func (s *fakeFoodStore) Update(_ context.Context, id int64, f model.Fields) (*model.FoodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, notFound("food_records")
	}
	s.lastFields = f
	s.apply(&r, f)
	s.items[id] = r
	return &r, nil
}

func (s *fakeFoodStore) Delete(_ context.Context, id int64) (*model.FoodRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, notFound("food_records")
	}
	delete(s.items, id)
	return &r, nil
}

func (s *fakeFoodStore) List(_ context.Context, q repository.Query) (*repository.Page[model.FoodRecord], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := slices.Collect(maps.Values(s.items))
	return &repository.Page[model.FoodRecord]{Items: items, Total: len(items), Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *fakeFoodStore) StatPoints(_ context.Context, _ repository.Filter) ([]stats.Point, error) {
	if s.onStat != nil {
		s.onStat()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statCalls++
	points := make([]stats.Point, 0, len(s.items))
	for _, r := range s.items {
		p := stats.Point{CreatedAt: r.CreatedAt, Category: r.Category, Numbers: map[string]float64{}}
		if r.Rating != nil {
			p.Numbers["rating"] = *r.Rating
		}
		points = append(points, p)
	}
	return points, nil
}

// --- Файлы ---

type fakeFileRepo struct {
	mu     sync.Mutex
	items  map[int64]model.FileRecord
	nextID int64

	createErr error
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{items: make(map[int64]model.FileRecord)}
}

func (r *fakeFileRepo) Create(_ context.Context, f model.Fields) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	rec := model.FileRecord{
		ID:           r.nextID,
		StoredName:   f["stored_name"].(string),
		OriginalName: f["original_name"].(string),
		StoragePath:  f["storage_path"].(string),
		SizeBytes:    f["size_bytes"].(int64),
		FileType:     f["file_type"].(string),
		Category:     f["category"].(string),
		MimeType:     f["mime_type"].(*string),
		Description:  f["description"].(*string),
		IsPublic:     f["is_public"].(bool),
		CreatedAt:    time.Now(),
	}
	r.items[rec.ID] = rec
	return &rec, nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, id int64) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, notFound("file_records")
	}
	return &rec, nil
}

func (r *fakeFileRepo) Update(_ context.Context, id int64, f model.Fields) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, notFound("file_records")
	}
	if v, ok := f["category"]; ok {
		rec.Category = v.(string)
	}
	if v, ok := f["is_public"]; ok {
		rec.IsPublic = v.(bool)
	}
	if v, ok := f["description"]; ok {
		if v == nil {
			rec.Description = nil
		} else {
			rec.Description = strPtr(v.(string))
		}
	}
	r.items[id] = rec
	return &rec, nil
}

func (r *fakeFileRepo) Delete(_ context.Context, id int64) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return nil, notFound("file_records")
	}
	delete(r.items, id)
	return &rec, nil
}

func (r *fakeFileRepo) List(_ context.Context, q repository.Query) (*repository.Page[model.FileRecord], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := slices.Collect(maps.Values(r.items))
	return &repository.Page[model.FileRecord]{Items: items, Total: len(items), Page: q.Page, PageSize: q.PageSize}, nil
}

func (r *fakeFileRepo) Increment(_ context.Context, id int64, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[id]
	if !ok {
		return 0, notFound("file_records")
	}
	rec.DownloadCount++
	r.items[id] = rec
	return rec.DownloadCount, nil
}

func (r *fakeFileRepo) StatPoints(_ context.Context, _ repository.Filter) ([]stats.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	points := make([]stats.Point, 0, len(r.items))
	for _, rec := range r.items {
		c := rec.Category
		points = append(points, stats.Point{
			CreatedAt: rec.CreatedAt,
			Category:  &c,
			Numbers:   map[string]float64{"size_bytes": float64(rec.SizeBytes)},
			Flags:     map[string]bool{"is_public": rec.IsPublic},
		})
	}
	return points, nil
}

func (r *fakeFileRepo) Values(_ context.Context, _ string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, rec := range r.items {
		out = append(out, rec.StoragePath)
	}
	return out, nil
}

// fakeFileTx восстанавливает состояние репозитория при ошибке fn.
// commitErr имитирует сбой фиксации после успешного fn.
type fakeFileTx struct {
	repo      *fakeFileRepo
	commitErr error
}

func (t *fakeFileTx) RunInTx(_ context.Context, fn func(repo FileRepo) error) error {
	t.repo.mu.Lock()
	snapshot := maps.Clone(t.repo.items)
	t.repo.mu.Unlock()

	err := fn(t.repo)
	if err == nil && t.commitErr != nil {
		err = t.commitErr
	}
	if err != nil {
		t.repo.mu.Lock()
		t.repo.items = snapshot
		t.repo.mu.Unlock()
		return err
	}
	return nil
}

// faultyBlobs — blobstore.Store с отказами удаления и открытия.
type faultyBlobs struct {
	store     *blobstore.Store
	removeErr error
	openErr   error
}

func (b *faultyBlobs) Validate(originalName string, declaredSize int64) error {
	return b.store.Validate(originalName, declaredSize)
}

func (b *faultyBlobs) Store(content io.Reader, originalName, category string) (*blobstore.Stored, error) {
	return b.store.Store(content, originalName, category)
}

func (b *faultyBlobs) Open(storagePath string) (*os.File, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.store.Open(storagePath)
}

func (b *faultyBlobs) Remove(storagePath string) error {
	if b.removeErr != nil {
		return b.removeErr
	}
	return b.store.Remove(storagePath)
}

func (b *faultyBlobs) Exists(storagePath string) bool {
	return b.store.Exists(storagePath)
}

// errReader возвращает ошибку после первых байт.
type errReader struct {
	sent bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, io.ErrUnexpectedEOF
}
