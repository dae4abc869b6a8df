package mapping

import (
	"database/sql"
	"time"
)

// MapViewModels applies mapFunc to every entity and collects the results.
func MapViewModels[T, V any](entities []T, mapFunc func(T) V) []V {
	viewModels := make([]V, len(entities))
	for i, entity := range entities {
		viewModels[i] = mapFunc(entity)
	}
	return viewModels
}

// MapViewModelsErr is MapViewModels for mappers that can fail; the first
// failure aborts the mapping.
func MapViewModelsErr[T, V any](entities []T, mapFunc func(T) (V, error)) ([]V, error) {
	viewModels := make([]V, len(entities))
	for i, entity := range entities {
		vm, err := mapFunc(entity)
		if err != nil {
			return nil, err
		}
		viewModels[i] = vm
	}
	return viewModels, nil
}

func Pointer[T any](v T) *T {
	return &v
}

func Value[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

func ValueToSQLNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func PointerToSQLNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ValueToSQLNullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func PointerToSQLNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func PointerToSQLNullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}

func PointerToSQLNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func SQLNullStringToPointer(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func SQLNullTimeToPointer(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func SQLNullInt64ToPointer(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
