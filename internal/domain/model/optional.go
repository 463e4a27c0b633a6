package model

import (
	"bytes"
	"encoding/json"
)

// Optional — поле частичного обновления.
// Различает три состояния: ключ отсутствует (Set == false),
// передан null (Set == true, Value == nil) и передано значение.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some возвращает Optional с заданным значением.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null возвращает Optional с явным null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull сообщает, что поле передано со значением null.
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Value == nil
}

// UnmarshalJSON вызывается только для присутствующих ключей,
// поэтому отсутствующее поле остаётся с Set == false.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON сериализует значение или null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
