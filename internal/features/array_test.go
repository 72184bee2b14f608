package features

import (
	"encoding/json"
	"math"
	"testing"
)

func TestArrayJSON(t *testing.T) {
	m, err := Matrix([][]float64{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}

	tests := []struct {
		name  string
		in    *Array
		want  string
		shape []int
	}{
		{name: "vector", in: Vector([]float64{0.5, 1, 2}), want: `[0.5,1,2]`, shape: []int{3}},
		{name: "empty vector", in: Vector(nil), want: `[]`, shape: []int{0}},
		{name: "matrix", in: m, want: `[[1,2],[3,4],[5,6]]`, shape: []int{3, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal error = %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal = %s, want %s", b, tt.want)
			}

			got, err := Parse(string(b))
			if err != nil {
				t.Fatalf("Parse error = %v", err)
			}
			if !got.Equal(tt.in) {
				t.Errorf("Parse(%s) = %v, want %v", b, got.Rows(), tt.in.Rows())
			}
			shape := got.Shape()
			if len(shape) != len(tt.shape) {
				t.Fatalf("Shape() = %v, want %v", shape, tt.shape)
			}
			for i := range shape {
				if shape[i] != tt.shape[i] {
					t.Errorf("Shape() = %v, want %v", shape, tt.shape)
				}
			}
		})
	}
}

func TestMatrixRagged(t *testing.T) {
	if _, err := Matrix([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("Matrix() with ragged rows should fail")
	}
}

func TestParseNull(t *testing.T) {
	for _, in := range []string{"", "null"} {
		got, err := Parse(in)
		if err != nil || got != nil {
			t.Errorf("Parse(%q) = %v, %v; want nil, nil", in, got, err)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"{}", "3", `["a"]`, `[[1],[2,3]]`} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestMarshalRejectsNaN(t *testing.T) {
	if _, err := Vector([]float64{math.NaN()}).MarshalJSON(); err == nil {
		t.Error("MarshalJSON should reject NaN")
	}
}

func TestValueNil(t *testing.T) {
	var a *Array
	v, err := a.Value()
	if err != nil || v != nil {
		t.Errorf("nil Value() = %v, %v; want nil, nil", v, err)
	}

	v, err = Vector([]float64{1}).Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "[1]" {
		t.Errorf("Value() = %v, want [1]", v)
	}
}

func TestEqual(t *testing.T) {
	a := Vector([]float64{1, 2})
	m, _ := Matrix([][]float64{{1, 2}})

	if !a.Equal(Vector([]float64{1, 2})) {
		t.Error("identical vectors should be equal")
	}
	if a.Equal(m) {
		t.Error("vector and matrix with the same data should differ")
	}
	if a.Equal(nil) {
		t.Error("array should not equal nil")
	}
	var n *Array
	if !n.Equal(nil) {
		t.Error("nil should equal nil")
	}
}

func TestVectorCopies(t *testing.T) {
	src := []float64{1, 2, 3}
	a := Vector(src)
	src[0] = 99
	if a.Flat()[0] != 1 {
		t.Error("Vector should copy its input")
	}
}
