package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bigkaa/lifelog/internal/domain/model"
)

func TestNoteWrite_TransitionTable(t *testing.T) {
	const date = "2024-03-15"
	tests := []struct {
		name        string
		existing    *model.CalendarNote
		content     string
		wantOutcome WriteOutcome
		wantPresent bool
		wantContent string
	}{
		{"нет заметки, пустой текст", nil, "   ", OutcomeNoop, false, ""},
		{"нет заметки, непустой текст", nil, "  привет  ", OutcomeCreated, true, "привет"},
		{"есть заметка, новый текст", &model.CalendarNote{Date: date, Content: "старое"}, "новое", OutcomeUpdated, true, "новое"},
		{"есть заметка, пустой текст", &model.CalendarNote{Date: date, Content: "старое"}, "", OutcomeDeleted, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeNoteStore()
			if tt.existing != nil {
				store = newFakeNoteStore(*tt.existing)
			}
			svc := NewNoteService(store, nil, testLogger())

			note, outcome, err := svc.Write(context.Background(), date, tt.content)
			if err != nil {
				t.Fatalf("Write: неожиданная ошибка: %v", err)
			}
			if outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, ожидалось %q", outcome, tt.wantOutcome)
			}

			stored, ok := store.notes[date]
			if ok != tt.wantPresent {
				t.Fatalf("заметка в хранилище: %v, ожидалось %v", ok, tt.wantPresent)
			}
			if tt.wantPresent {
				if stored.Content != tt.wantContent {
					t.Errorf("content = %q, ожидалось %q", stored.Content, tt.wantContent)
				}
				if note == nil || note.Content != tt.wantContent {
					t.Errorf("возвращённая заметка = %+v", note)
				}
			} else if note != nil {
				t.Errorf("ожидалась nil-заметка, получено %+v", note)
			}
		})
	}
}

func TestNoteWrite_SameContentSkipsUpdate(t *testing.T) {
	store := newFakeNoteStore(model.CalendarNote{Date: "2024-01-01", Content: "текст"})
	svc := NewNoteService(store, nil, testLogger())

	note, outcome, err := svc.Write(context.Background(), "2024-01-01", " текст ")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if outcome != OutcomeUpdated || note.Content != "текст" {
		t.Errorf("получено %q / %+v", outcome, note)
	}
	if store.updates != 0 {
		t.Errorf("UpdateBy вызван %d раз, ожидалось 0", store.updates)
	}
}

func TestNoteWrite_ConcurrentDeleteIsNoop(t *testing.T) {
	store := newFakeNoteStore(model.CalendarNote{Date: "2024-01-01", Content: "текст"})
	store.deleteErr = notFound("calendar_notes")
	svc := NewNoteService(store, nil, testLogger())

	_, outcome, err := svc.Write(context.Background(), "2024-01-01", "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if outcome != OutcomeNoop {
		t.Errorf("outcome = %q, ожидалось noop", outcome)
	}
}

func TestNoteWrite_InvalidDate(t *testing.T) {
	svc := NewNoteService(newFakeNoteStore(), nil, testLogger())
	for _, date := range []string{"", "2024-13-01", "2024-02-30", "15.03.2024", "2024-3-5"} {
		if _, _, err := svc.Write(context.Background(), date, "x"); !errors.Is(err, ErrValidation) {
			t.Errorf("Write(%q): ожидалась ErrValidation, получено %v", date, err)
		}
	}
}

func TestNoteCreate_DuplicateDateConflict(t *testing.T) {
	store := newFakeNoteStore(model.CalendarNote{Date: "2024-05-05", Content: "есть"})
	svc := NewNoteService(store, nil, testLogger())

	_, err := svc.Create(context.Background(), model.NoteInput{Date: "2024-05-05", Content: "ещё"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("ожидалась ErrConflict, получено %v", err)
	}
}

func TestNoteGetDelete_Missing(t *testing.T) {
	svc := NewNoteService(newFakeNoteStore(), nil, testLogger())

	if _, err := svc.Get(context.Background(), "2024-01-02"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: ожидалась ErrNotFound, получено %v", err)
	}
	if err := svc.Delete(context.Background(), "2024-01-02"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestNoteUpdate_PartialPatch(t *testing.T) {
	store := newFakeNoteStore(model.CalendarNote{Date: "2024-01-01", Content: "текст"})
	svc := NewNoteService(store, nil, testLogger())

	special := true
	note, err := svc.Update(context.Background(), "2024-01-01", model.NotePatch{IsSpecial: model.Some(special)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !note.IsSpecial || note.Content != "текст" {
		t.Errorf("получено %+v", note)
	}
}

func TestNoteMonth(t *testing.T) {
	store := newFakeNoteStore(
		model.CalendarNote{Date: "2024-01-31", Content: "январь"},
		model.CalendarNote{Date: "2024-02-01", Content: "первое"},
		model.CalendarNote{Date: "2024-02-29", Content: "високосный"},
		model.CalendarNote{Date: "2024-03-01", Content: "март"},
	)
	svc := NewNoteService(store, nil, testLogger())

	month, err := svc.Month(context.Background(), 2024, 2)
	if err != nil {
		t.Fatalf("Month: %v", err)
	}
	if month.Count != 2 || len(month.Notes) != 2 {
		t.Fatalf("Count = %d, ожидалось 2: %+v", month.Count, month.Notes)
	}
	if month.Notes["2024-02-29"] != "високосный" {
		t.Errorf("Notes[2024-02-29] = %q", month.Notes["2024-02-29"])
	}
	if _, ok := month.Notes["2024-03-01"]; ok {
		t.Error("заметка другого месяца попала в результат")
	}
}

func TestNoteMonth_InvalidRange(t *testing.T) {
	svc := NewNoteService(newFakeNoteStore(), nil, testLogger())
	cases := [][2]int{{2024, 0}, {2024, 13}, {1899, 5}, {2101, 5}}
	for _, c := range cases {
		if _, err := svc.Month(context.Background(), c[0], c[1]); !errors.Is(err, ErrValidation) {
			t.Errorf("Month(%d, %d): ожидалась ErrValidation, получено %v", c[0], c[1], err)
		}
	}
}
