package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type filter struct {
	Category *string
	Authors  []string
	Year     int
	hidden   string
}

func joinWithSeparator(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += KeySeparator + p
	}
	return out
}

func TestKeySerializer_BasicTypes(t *testing.T) {
	var s KeySerializer

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{"no args", "Books", nil, "Books"},
		{"paging", "Books", []any{1, 20}, joinWithSeparator("Books", "1", "20")},
		{"mixed", "Get", []any{"hello:world", true, 3.5}, joinWithSeparator("Get", `"hello:world"`, "true", "3.5")},
		{"nil", "Get", []any{nil}, joinWithSeparator("Get", "nil")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.SerializeKey(tt.method, tt.args...))
		})
	}
}

func TestKeySerializer_Struct(t *testing.T) {
	var s KeySerializer
	fiction := "Fiction"

	got := s.SerializeKey("Books", filter{Category: &fiction, Authors: []string{"A", "B"}, Year: 1965, hidden: "x"}, 1, 10)

	assert.Equal(t,
		`Books::struct:{Category:"Fiction",Authors:slice[2]:{"A","B"},Year:1965}::1::10`,
		got)
}

func TestKeySerializer_DistinguishesNilAndEmpty(t *testing.T) {
	var s KeySerializer

	assert.NotEqual(t,
		s.SerializeKey("Books", filter{}),
		s.SerializeKey("Books", filter{Authors: []string{}}))
}

func TestKeySerializer_SeparatorsInStrings(t *testing.T) {
	var s KeySerializer

	tests := []struct {
		name string
		a, b any
	}{
		{"comma in slice element", filter{Authors: []string{"Strugatsky,A", "B"}}, filter{Authors: []string{"Strugatsky", "A,B"}}},
		{"brace in slice element", []string{"A}", "B"}, []string{"A", "}B"}},
		{"equals in map key", map[string]string{"a=b": "c"}, map[string]string{"a": "b=c"}},
		{"key separator in arg", []any{"a::b", "c"}, []any{"a", "b::c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := []any{tt.a}, []any{tt.b}
			if args, ok := tt.a.([]any); ok {
				a, b = args, tt.b.([]any)
			}
			assert.NotEqual(t, s.SerializeKey("Books", a...), s.SerializeKey("Books", b...))
		})
	}
}

func TestKeySerializer_MapsAreOrdered(t *testing.T) {
	var s KeySerializer
	m := map[string]int{"b": 2, "a": 1, "c": 3}

	first := s.SerializeKey("M", m)
	for range 20 {
		assert.Equal(t, first, s.SerializeKey("M", m))
	}
	assert.Equal(t, `M::map[3]:{"a"=1,"b"=2,"c"=3}`, first)
}

func TestKeySerializer_Time(t *testing.T) {
	var s KeySerializer
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, `Overdue::"2026-03-01T10:00:00Z"`, s.SerializeKey("Overdue", ts))
	assert.Equal(t, `Overdue::"2026-03-01T10:00:00Z"`, s.SerializeKey("Overdue", &ts))
}

func TestEntityKeys(t *testing.T) {
	assert.Equal(t, "Book:book-1:Details", BookDetailsKey("book-1"))
	assert.Equal(t, "Borrow:borrow-1", BorrowKey("borrow-1"))
}
