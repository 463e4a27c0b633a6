package model

import (
	"strings"
	"time"
)

// CalendarNote — заметка календаря. Дата уникальна.
// Хранится в таблице calendar_notes.
type CalendarNote struct {
	ID        int64     `db:"id" json:"id"`
	Date      string    `db:"date" json:"date"`
	Content   string    `db:"content" json:"content"`
	Mood      *string   `db:"mood" json:"mood"`
	Weather   *string   `db:"weather" json:"weather"`
	IsSpecial bool      `db:"is_special" json:"is_special"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NoteInput — данные создания заметки.
type NoteInput struct {
	Date      string  `json:"date"`
	Content   string  `json:"content"`
	Mood      *string `json:"mood"`
	Weather   *string `json:"weather"`
	IsSpecial *bool   `json:"is_special"`
}

// Fields проверяет входные данные и возвращает колонки для INSERT.
// Содержимое сохраняется без окружающих пробелов.
func (in NoteInput) Fields() (Fields, error) {
	s := newFieldSet()
	if !ValidDate(in.Date) {
		s.fail(invalid("date: ожидается дата в формате YYYY-MM-DD, получено %q", in.Date))
	}
	s.fields["date"] = in.Date
	content := strings.TrimSpace(in.Content)
	s.required("content", &content, 0)
	s.text("mood", in.Mood, 50)
	s.text("weather", in.Weather, 50)
	if in.IsSpecial != nil {
		s.flag("is_special", in.IsSpecial)
	}
	return s.result()
}

// NotePatch — частичное обновление заметки. Дата не изменяется.
type NotePatch struct {
	Content   Optional[string] `json:"content"`
	Mood      Optional[string] `json:"mood"`
	Weather   Optional[string] `json:"weather"`
	IsSpecial Optional[bool]   `json:"is_special"`
}

// Fields возвращает только переданные колонки.
func (p NotePatch) Fields() (Fields, error) {
	s := newFieldSet()
	if p.Content.Set && p.Content.Value != nil {
		trimmed := strings.TrimSpace(*p.Content.Value)
		p.Content.Value = &trimmed
	}
	optRequired(s, "content", p.Content, 0)
	optText(s, "mood", p.Mood, 50)
	optText(s, "weather", p.Weather, 50)
	optFlag(s, "is_special", p.IsSpecial)
	return s.result()
}
