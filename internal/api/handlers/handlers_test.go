package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lifelog/internal/api/errors"
	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/service"
	"github.com/bigkaa/lifelog/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Моки ---

type mockFoodAPI struct {
	lastQuery  repository.Query
	lastCreate model.Writable
	err        error
}

func (m *mockFoodAPI) Create(_ context.Context, in model.Writable) (*model.FoodRecord, error) {
	m.lastCreate = in
	if m.err != nil {
		return nil, m.err
	}
	return &model.FoodRecord{ID: 1, Name: in.(model.FoodInput).Name}, nil
}

func (m *mockFoodAPI) Get(_ context.Context, id int64) (*model.FoodRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.FoodRecord{ID: id, Name: "Кафе"}, nil
}

func (m *mockFoodAPI) Update(_ context.Context, id int64, _ model.Writable) (*model.FoodRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &model.FoodRecord{ID: id}, nil
}

func (m *mockFoodAPI) Delete(_ context.Context, _ int64) error { return m.err }

func (m *mockFoodAPI) List(_ context.Context, q repository.Query) (*repository.Page[model.FoodRecord], error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	return &repository.Page[model.FoodRecord]{Items: []model.FoodRecord{}, Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *mockFoodAPI) Stats(_ context.Context) (stats.Summary, error) {
	return stats.Summary{TotalCount: 3}, m.err
}

type mockNoteAPI struct {
	outcome     service.WriteOutcome
	note        *model.CalendarNote
	year, month int
	writes      int
	err         error
}

func (m *mockNoteAPI) Write(_ context.Context, _, _ string) (*model.CalendarNote, service.WriteOutcome, error) {
	m.writes++
	return m.note, m.outcome, m.err
}
func (m *mockNoteAPI) Create(_ context.Context, _ model.NoteInput) (*model.CalendarNote, error) {
	return m.note, m.err
}
func (m *mockNoteAPI) Get(_ context.Context, _ string) (*model.CalendarNote, error) {
	return m.note, m.err
}
func (m *mockNoteAPI) Update(_ context.Context, _ string, _ model.NotePatch) (*model.CalendarNote, error) {
	return m.note, m.err
}
func (m *mockNoteAPI) Delete(_ context.Context, _ string) error { return m.err }
func (m *mockNoteAPI) List(_ context.Context, q repository.Query) (*repository.Page[model.CalendarNote], error) {
	return &repository.Page[model.CalendarNote]{Items: []model.CalendarNote{}, Page: q.Page, PageSize: q.PageSize}, m.err
}
func (m *mockNoteAPI) Month(_ context.Context, year, month int) (*service.MonthNotes, error) {
	m.year, m.month = year, month
	if m.err != nil {
		return nil, m.err
	}
	return &service.MonthNotes{Year: year, Month: month, Notes: map[string]string{}}, nil
}
func (m *mockNoteAPI) Stats(_ context.Context) (stats.Summary, error) { return stats.Summary{}, m.err }

type mockFileAPI struct {
	lastUpload service.UploadParams
	body       string
	download   *service.Download
	blobPath   string
	err        error
}

func (m *mockFileAPI) Upload(_ context.Context, p service.UploadParams) (*service.FileView, error) {
	m.lastUpload = p
	data, _ := io.ReadAll(p.Content)
	m.body = string(data)
	if m.err != nil {
		return nil, m.err
	}
	return &service.FileView{FileRecord: model.FileRecord{ID: 5, OriginalName: p.OriginalName}, DownloadReference: "5"}, nil
}
func (m *mockFileAPI) Get(_ context.Context, id int64) (*service.FileView, error) {
	return &service.FileView{FileRecord: model.FileRecord{ID: id}}, m.err
}
func (m *mockFileAPI) Update(_ context.Context, id int64, _ model.FilePatch) (*service.FileView, error) {
	return &service.FileView{FileRecord: model.FileRecord{ID: id}}, m.err
}
func (m *mockFileAPI) Delete(_ context.Context, _ int64) error { return m.err }
func (m *mockFileAPI) List(_ context.Context, q repository.Query) (*repository.Page[service.FileView], error) {
	return &repository.Page[service.FileView]{Items: []service.FileView{}, Page: q.Page, PageSize: q.PageSize}, m.err
}
func (m *mockFileAPI) RecordDownload(_ context.Context, _ int64) (*service.Download, error) {
	if m.err != nil {
		return nil, m.err
	}
	f, err := os.Open(m.blobPath)
	if err != nil {
		return nil, err
	}
	d := *m.download
	d.File = f
	return &d, nil
}
func (m *mockFileAPI) Stats(_ context.Context) (stats.Summary, error) { return stats.Summary{}, m.err }

type staticChecker struct{ status string }

func (c staticChecker) CheckReady() (string, string) { return c.status, "" }

// --- Помощники ---

func newRouter(food *mockFoodAPI, notes *mockNoteAPI, files *mockFileAPI) http.Handler {
	logger := testLogger()
	r := chi.NewRouter()
	r.Route("/api/v1/food", NewRecordHandler[model.FoodRecord, model.FoodInput, model.FoodPatch](
		"food", food, FilterParams{Strings: []string{"category"}}, 10, logger).Routes)
	r.Route("/api/v1/calendar", NewCalendarHandler(notes, 10, logger).Routes)
	r.Route("/api/v1/files", NewFilesHandler(files, 16, 10, logger).Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ошибки не JSON: %q", rec.Body.String())
	}
	return body.Error.Code
}

// --- Тесты ---

func TestList_ParsesQuery(t *testing.T) {
	food := &mockFoodAPI{}
	h := newRouter(food, &mockNoteAPI{}, &mockFileAPI{})

	rec := do(t, h, http.MethodGet,
		"/api/v1/food?page=2&page_size=5&sort_by=rating&sort_order=asc&search=+pho+&category=thai&date_from=2024-01-01&date_to=2024-02-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}

	q := food.lastQuery
	if q.Page != 2 || q.PageSize != 5 {
		t.Errorf("page/page_size = %d/%d, ожидалось 2/5", q.Page, q.PageSize)
	}
	if q.SortBy != "rating" || q.SortOrder != "asc" {
		t.Errorf("сортировка = %s %s", q.SortBy, q.SortOrder)
	}
	if q.Filter.Keyword != "pho" {
		t.Errorf("Keyword = %q, ожидалось \"pho\"", q.Filter.Keyword)
	}
	if q.Filter.DateFrom != "2024-01-01" || q.Filter.DateTo != "2024-02-01" {
		t.Errorf("даты = %s..%s", q.Filter.DateFrom, q.Filter.DateTo)
	}
	if len(q.Filter.Exact) != 1 || q.Filter.Exact[0].Column != "category" || q.Filter.Exact[0].Value != "thai" {
		t.Errorf("Exact = %+v", q.Filter.Exact)
	}
}

func TestList_Defaults(t *testing.T) {
	food := &mockFoodAPI{}
	h := newRouter(food, &mockNoteAPI{}, &mockFileAPI{})

	if rec := do(t, h, http.MethodGet, "/api/v1/food", nil); rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	if food.lastQuery.Page != 1 || food.lastQuery.PageSize != 10 {
		t.Errorf("умолчания = %d/%d, ожидалось 1/10", food.lastQuery.Page, food.lastQuery.PageSize)
	}
	if len(food.lastQuery.Filter.Exact) != 0 {
		t.Errorf("Exact = %+v, ожидалось пусто", food.lastQuery.Filter.Exact)
	}
}

func TestList_BoolFilter(t *testing.T) {
	files := &mockFileAPI{}
	h := newRouter(&mockFoodAPI{}, &mockNoteAPI{}, files)

	rec := do(t, h, http.MethodGet, "/api/v1/files?is_public=yes", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("is_public=yes: статус = %d, ожидалось 400", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/files?is_public=true&file_type=image", nil); rec.Code != http.StatusOK {
		t.Errorf("is_public=true: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
}

func TestList_InvalidParams(t *testing.T) {
	h := newRouter(&mockFoodAPI{}, &mockNoteAPI{}, &mockFileAPI{})
	for _, target := range []string{"/api/v1/food?page=abc", "/api/v1/food?page_size=1.5"} {
		rec := do(t, h, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: статус = %d, ожидалось 400", target, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != apierrors.CodeValidationError {
			t.Errorf("%s: код = %s", target, code)
		}
	}
}

func TestRecordCreateGetDelete(t *testing.T) {
	food := &mockFoodAPI{}
	h := newRouter(food, &mockNoteAPI{}, &mockFileAPI{})

	rec := do(t, h, http.MethodPost, "/api/v1/food", strings.NewReader(`{"name":"Суши","rating":9}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	in, ok := food.lastCreate.(model.FoodInput)
	if !ok || in.Name != "Суши" || in.Rating == nil || *in.Rating != 9 {
		t.Errorf("входные данные = %+v", food.lastCreate)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/food", strings.NewReader(`{"name":`)); rec.Code != http.StatusBadRequest {
		t.Errorf("битый JSON: статус = %d, ожидалось 400", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/food/7", nil); rec.Code != http.StatusOK {
		t.Errorf("GET: статус = %d", rec.Code)
	}
	for _, id := range []string{"abc", "0", "-3"} {
		if rec := do(t, h, http.MethodGet, "/api/v1/food/"+id, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("GET /%s: статус = %d, ожидалось 400", id, rec.Code)
		}
	}

	if rec := do(t, h, http.MethodDelete, "/api/v1/food/7", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE: статус = %d, ожидалось 204", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/food/stats", nil); rec.Code != http.StatusOK {
		t.Errorf("stats: статус = %d", rec.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: x", service.ErrValidation), http.StatusBadRequest, apierrors.CodeValidationError},
		{fmt.Errorf("%w: x", service.ErrFileTooLarge), http.StatusRequestEntityTooLarge, apierrors.CodeFileTooLarge},
		{fmt.Errorf("%w: x", service.ErrNotFound), http.StatusNotFound, apierrors.CodeNotFound},
		{fmt.Errorf("%w: x", service.ErrConflict), http.StatusConflict, apierrors.CodeConflict},
		{fmt.Errorf("%w: x", service.ErrMissingBlob), http.StatusGone, apierrors.CodeBlobMissing},
		{fmt.Errorf("%w: x", service.ErrStorageIO), http.StatusInternalServerError, apierrors.CodeInternalError},
		{fmt.Errorf("неизвестно"), http.StatusInternalServerError, apierrors.CodeInternalError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, testLogger(), tt.err, "test")
		if rec.Code != tt.status {
			t.Errorf("%v: статус = %d, ожидалось %d", tt.err, rec.Code, tt.status)
		}
		if code := errorCode(t, rec); code != tt.code {
			t.Errorf("%v: код = %s, ожидалось %s", tt.err, code, tt.code)
		}
	}
}

func TestCalendarWrite(t *testing.T) {
	notes := &mockNoteAPI{outcome: service.OutcomeCreated, note: &model.CalendarNote{ID: 1, Date: "2024-03-15", Content: "x"}}
	h := newRouter(&mockFoodAPI{}, notes, &mockFileAPI{})

	rec := do(t, h, http.MethodPut, "/api/v1/calendar/2024-03-15", strings.NewReader(`{"content":"x"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("created: статус = %d", rec.Code)
	}

	notes.outcome, notes.note = service.OutcomeDeleted, nil
	rec = do(t, h, http.MethodPut, "/api/v1/calendar/2024-03-15", strings.NewReader(`{"content":""}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("deleted: статус = %d", rec.Code)
	}
	var resp struct {
		Outcome string          `json:"outcome"`
		Note    json.RawMessage `json:"note"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("ответ не JSON: %v", err)
	}
	if resp.Outcome != "deleted" || string(resp.Note) != "null" {
		t.Errorf("ответ = %s", rec.Body.String())
	}

	notes.err = fmt.Errorf("%w: дата", service.ErrValidation)
	if rec := do(t, h, http.MethodPut, "/api/v1/calendar/bad", strings.NewReader(`{"content":"x"}`)); rec.Code != http.StatusBadRequest {
		t.Errorf("неверная дата: статус = %d, ожидалось 400", rec.Code)
	}
}

func TestCalendarWrite_ContentRequired(t *testing.T) {
	notes := &mockNoteAPI{outcome: service.OutcomeDeleted}
	h := newRouter(&mockFoodAPI{}, notes, &mockFileAPI{})

	for _, body := range []string{`{}`, `{"content":null}`, `{"contnet":"typo"}`} {
		rec := do(t, h, http.MethodPut, "/api/v1/calendar/2024-03-15", strings.NewReader(body))
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != apierrors.CodeValidationError {
			t.Errorf("%s: статус = %d, ожидалось 400", body, rec.Code)
		}
	}
	if notes.writes != 0 {
		t.Errorf("Write вызван %d раз для некорректных тел", notes.writes)
	}
}

func TestCalendarMonth(t *testing.T) {
	notes := &mockNoteAPI{}
	h := newRouter(&mockFoodAPI{}, notes, &mockFileAPI{})

	if rec := do(t, h, http.MethodGet, "/api/v1/calendar/month/2024/3", nil); rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if notes.year != 2024 || notes.month != 3 {
		t.Errorf("Month(%d, %d), ожидалось (2024, 3)", notes.year, notes.month)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/calendar/month/2024/march", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("month=march: статус = %d, ожидалось 400", rec.Code)
	}
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestFilesUpload(t *testing.T) {
	files := &mockFileAPI{}
	h := newRouter(&mockFoodAPI{}, &mockNoteAPI{}, files)

	body, ct := multipartBody(t, "photo.JPG", "12345", map[string]string{
		"description": "отпуск", "category": "Travel", "is_public": "true",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	p := files.lastUpload
	if p.OriginalName != "photo.JPG" || p.Size != 5 || files.body != "12345" {
		t.Errorf("параметры загрузки = %+v, тело %q", p, files.body)
	}
	if p.Meta.Category != "Travel" || !p.Meta.IsPublic || p.Meta.Description == nil || *p.Meta.Description != "отпуск" {
		t.Errorf("метаданные = %+v", p.Meta)
	}
}

func TestFilesUpload_Errors(t *testing.T) {
	h := newRouter(&mockFoodAPI{}, &mockNoteAPI{}, &mockFileAPI{})

	// Без поля file
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("description", "x")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("без файла: статус = %d, ожидалось 400", rec.Code)
	}

	// Тело больше лимита (16 байт + запас)
	big, ct := multipartBody(t, "a.txt", strings.Repeat("x", 2<<20), nil)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", big)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("большой файл: статус = %d, ожидалось 413", rec.Code)
	}

	// Недопустимый is_public
	body, ct := multipartBody(t, "a.txt", "x", map[string]string{"is_public": "maybe"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("is_public=maybe: статус = %d, ожидалось 400", rec.Code)
	}
}

func TestFilesDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	files := &mockFileAPI{blobPath: path, download: &service.Download{
		OriginalName: "отчёт.pdf", MimeType: "application/pdf", DownloadCount: 4,
	}}
	h := newRouter(&mockFoodAPI{}, &mockNoteAPI{}, files)

	rec := do(t, h, http.MethodGet, "/api/v1/files/3/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "%PDF-1.4" {
		t.Errorf("тело = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if n := rec.Header().Get("X-Download-Count"); n != "4" {
		t.Errorf("X-Download-Count = %q", n)
	}

	files.err = fmt.Errorf("%w: document/x.pdf", service.ErrMissingBlob)
	rec = do(t, h, http.MethodGet, "/api/v1/files/3/download", nil)
	if rec.Code != http.StatusGone || errorCode(t, rec) != apierrors.CodeBlobMissing {
		t.Errorf("отсутствующий файл: статус = %d", rec.Code)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name   string
		pg     ReadinessChecker
		store  ReadinessChecker
		status int
	}{
		{"всё ok", staticChecker{"ok"}, staticChecker{"ok"}, http.StatusOK},
		{"degraded", staticChecker{"degraded"}, staticChecker{"ok"}, http.StatusOK},
		{"хранилище fail", staticChecker{"ok"}, staticChecker{"fail"}, http.StatusServiceUnavailable},
		{"нет checker-а", nil, staticChecker{"ok"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.store)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.status {
				t.Errorf("статус = %d, ожидалось %d", rec.Code, tt.status)
			}
		})
	}

	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil).HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live: статус = %d", rec.Code)
	}
}
