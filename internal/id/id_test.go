package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate(PrefixBook)
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixBook, PrefixReader, PrefixBorrow} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(id, prefix+"-"))
			assert.Len(t, id, len(prefix)+1+21)
			assert.True(t, Is(prefix, id))
		})
	}
}

func TestIs(t *testing.T) {
	valid := MustGenerate(PrefixBorrow)

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"generated id", valid, true},
		{"wrong prefix", strings.Replace(valid, PrefixBorrow, PrefixBook, 1), false},
		{"reader name", "Ivan Petrov", false},
		{"prefix only", "borrow-", false},
		{"too short", "borrow-abc", false},
		{"illegal character", "borrow-" + strings.Repeat("a", 20) + "!", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Is(PrefixBorrow, tt.input))
		})
	}
}

func TestMustGenerate_Format(t *testing.T) {
	id := MustGenerate(PrefixReader)

	assert.True(t, strings.HasPrefix(id, "reader-"))
	assert.Equal(t, len("reader")+1+21, len(id))
}

func BenchmarkGenerate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Generate("bench")
	}
}
