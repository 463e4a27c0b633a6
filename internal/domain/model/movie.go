package model

import "time"

// MovieRecord — рецензия на фильм.
// Хранится в таблице movie_records.
type MovieRecord struct {
	ID         int64     `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Director   *string   `db:"director" json:"director"`
	Genre      *string   `db:"genre" json:"genre"`
	Rating     *float64  `db:"rating" json:"rating"`
	Review     *string   `db:"review" json:"review"`
	WatchDate  *string   `db:"watch_date" json:"watch_date"`
	Duration   *int64    `db:"duration" json:"duration"`
	PosterURL  *string   `db:"poster_url" json:"poster_url"`
	IMDbID     *string   `db:"imdb_id" json:"imdb_id"`
	IsFavorite bool      `db:"is_favorite" json:"is_favorite"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MovieInput — данные создания рецензии.
type MovieInput struct {
	Title      string   `json:"title"`
	Director   *string  `json:"director"`
	Genre      *string  `json:"genre"`
	Rating     *float64 `json:"rating"`
	Review     *string  `json:"review"`
	WatchDate  *string  `json:"watch_date"`
	Duration   *int64   `json:"duration"`
	PosterURL  *string  `json:"poster_url"`
	IMDbID     *string  `json:"imdb_id"`
	IsFavorite *bool    `json:"is_favorite"`
}

// Fields проверяет входные данные и возвращает колонки для INSERT.
// Неуказанный is_favorite получает значение по умолчанию из БД.
func (in MovieInput) Fields() (Fields, error) {
	s := newFieldSet()
	s.required("title", &in.Title, 200)
	s.text("director", in.Director, 200)
	s.text("genre", in.Genre, 100)
	s.rating("rating", in.Rating)
	s.text("review", in.Review, 0)
	s.date("watch_date", in.WatchDate)
	s.integer("duration", in.Duration, 0)
	s.text("poster_url", in.PosterURL, 500)
	s.text("imdb_id", in.IMDbID, 50)
	if in.IsFavorite != nil {
		s.flag("is_favorite", in.IsFavorite)
	}
	return s.result()
}

// MoviePatch — частичное обновление рецензии.
type MoviePatch struct {
	Title      Optional[string]  `json:"title"`
	Director   Optional[string]  `json:"director"`
	Genre      Optional[string]  `json:"genre"`
	Rating     Optional[float64] `json:"rating"`
	Review     Optional[string]  `json:"review"`
	WatchDate  Optional[string]  `json:"watch_date"`
	Duration   Optional[int64]   `json:"duration"`
	PosterURL  Optional[string]  `json:"poster_url"`
	IMDbID     Optional[string]  `json:"imdb_id"`
	IsFavorite Optional[bool]    `json:"is_favorite"`
}

// Fields возвращает только переданные колонки.
func (p MoviePatch) Fields() (Fields, error) {
	s := newFieldSet()
	optRequired(s, "title", p.Title, 200)
	optText(s, "director", p.Director, 200)
	optText(s, "genre", p.Genre, 100)
	optRating(s, "rating", p.Rating)
	optText(s, "review", p.Review, 0)
	optDate(s, "watch_date", p.WatchDate)
	optInteger(s, "duration", p.Duration, 0)
	optText(s, "poster_url", p.PosterURL, 500)
	optText(s, "imdb_id", p.IMDbID, 50)
	optFlag(s, "is_favorite", p.IsFavorite)
	return s.result()
}
