package model

import "time"

// FoodRecord — запись о посещении заведения.
// Хранится в таблице food_records.
type FoodRecord struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Location    *string   `db:"location" json:"location"`
	Rating      *float64  `db:"rating" json:"rating"`
	Description *string   `db:"description" json:"description"`
	Date        *string   `db:"date" json:"date"`
	Category    *string   `db:"category" json:"category"`
	Price       *float64  `db:"price" json:"price"`
	ImageURL    *string   `db:"image_url" json:"image_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FoodInput — данные создания записи о еде.
type FoodInput struct {
	Name        string   `json:"name"`
	Location    *string  `json:"location"`
	Rating      *float64 `json:"rating"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	ImageURL    *string  `json:"image_url"`
}

// Fields проверяет входные данные и возвращает колонки для INSERT.
func (in FoodInput) Fields() (Fields, error) {
	s := newFieldSet()
	s.required("name", &in.Name, 200)
	s.text("location", in.Location, 200)
	s.rating("rating", in.Rating)
	s.text("description", in.Description, 0)
	s.date("date", in.Date)
	s.text("category", in.Category, 100)
	s.nonNegative("price", in.Price)
	s.text("image_url", in.ImageURL, 500)
	return s.result()
}

// FoodPatch — частичное обновление записи о еде.
type FoodPatch struct {
	Name        Optional[string]  `json:"name"`
	Location    Optional[string]  `json:"location"`
	Rating      Optional[float64] `json:"rating"`
	Description Optional[string]  `json:"description"`
	Date        Optional[string]  `json:"date"`
	Category    Optional[string]  `json:"category"`
	Price       Optional[float64] `json:"price"`
	ImageURL    Optional[string]  `json:"image_url"`
}

// Fields возвращает только переданные колонки.
func (p FoodPatch) Fields() (Fields, error) {
	s := newFieldSet()
	optRequired(s, "name", p.Name, 200)
	optText(s, "location", p.Location, 200)
	optRating(s, "rating", p.Rating)
	optText(s, "description", p.Description, 0)
	optDate(s, "date", p.Date)
	optText(s, "category", p.Category, 100)
	optNonNegative(s, "price", p.Price)
	optText(s, "image_url", p.ImageURL, 500)
	return s.result()
}
