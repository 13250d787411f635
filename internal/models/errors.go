package models

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound — запрошенной записи нет в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID — идентификатор структурно некорректен (не uuid).
	ErrInvalidID = errors.New("invalid parcel id")
)

// ParseID разбирает внешний идентификатор. Детали ошибки парсинга клиенту
// не показываем, поэтому сводим её к ErrInvalidID.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}
