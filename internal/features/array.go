package features

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Array is a numeric feature array of rank 1 (vector) or rank 2 (matrix),
// stored row-major. A nil *Array means the feature was not computed.
type Array struct {
	data []float64
	cols int // 0 for rank 1
}

// Vector wraps v as a rank-1 array. The slice is copied.
func Vector(v []float64) *Array {
	data := make([]float64, len(v))
	copy(data, v)
	return &Array{data: data}
}

// Matrix builds a rank-2 array from equally sized rows.
func Matrix(rows [][]float64) (*Array, error) {
	if len(rows) == 0 {
		return &Array{}, nil
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, errors.New("features: matrix rows must not be empty")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("features: ragged matrix: row %d has %d columns, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return &Array{data: data, cols: cols}, nil
}

// Rank returns 1 for vectors and 2 for matrices.
func (a *Array) Rank() int {
	if a.cols > 0 {
		return 2
	}
	return 1
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.data)
}

// Shape returns [n] for vectors and [rows, cols] for matrices.
func (a *Array) Shape() []int {
	if a.cols > 0 {
		return []int{len(a.data) / a.cols, a.cols}
	}
	return []int{len(a.data)}
}

// Flat returns a copy of the elements in row-major order.
func (a *Array) Flat() []float64 {
	out := make([]float64, len(a.data))
	copy(out, a.data)
	return out
}

// Rows returns the array as nested rows. A vector is a single row.
func (a *Array) Rows() [][]float64 {
	if a.cols == 0 {
		return [][]float64{a.Flat()}
	}
	n := len(a.data) / a.cols
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = append([]float64(nil), a.data[i*a.cols:(i+1)*a.cols]...)
	}
	return rows
}

// Equal reports whether a and b have the same shape and elements.
// Two nil arrays are equal.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.cols != b.cols || len(a.data) != len(b.data) {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the array as plain nested numeric lists.
func (a *Array) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	for _, v := range a.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("features: array contains NaN or Inf")
		}
	}
	if a.cols == 0 {
		if a.data == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.data)
	}
	return json.Marshal(a.Rows())
}

// UnmarshalJSON decodes a flat or nested numeric list.
func (a *Array) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) < 2 || trimmed[0] != '[' {
		return fmt.Errorf("features: expected JSON array, got %q", truncate(trimmed))
	}

	inner := bytes.TrimSpace(trimmed[1:])
	if len(inner) > 0 && inner[0] == '[' {
		var rows [][]float64
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return fmt.Errorf("features: decode matrix: %w", err)
		}
		m, err := Matrix(rows)
		if err != nil {
			return err
		}
		*a = *m
		return nil
	}

	var v []float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return fmt.Errorf("features: decode vector: %w", err)
	}
	*a = Array{data: v}
	return nil
}

// Value implements driver.Valuer so arrays can be bound directly as query
// arguments. A nil array binds as SQL NULL.
func (a *Array) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Parse decodes a stored JSON column. An empty string yields nil.
func Parse(s string) (*Array, error) {
	if s == "" || s == "null" {
		return nil, nil
	}
	var a Array
	if err := a.UnmarshalJSON([]byte(s)); err != nil {
		return nil, err
	}
	return &a, nil
}

func truncate(b []byte) string {
	const max = 32
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
