package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/Guiss-Guiss/ScriptumAI/internal/pkg/errors"
)

func TestSplitEmpty(t *testing.T) {
	chunks, err := Split("", 1000, 200)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestSplitShorterThanSize(t *testing.T) {
	chunks, err := Split("hello world", 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "hello world", chunks[0].Text)
	require.Equal(t, 0, chunks[0].Start)
}

func TestSplitWindows(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, []int{0, 800, 1600}, []int{chunks[0].Start, chunks[1].Start, chunks[2].Start})
	require.Len(t, chunks[0].Text, 1000)
	require.Len(t, chunks[1].Text, 1000)
	require.Len(t, chunks[2].Text, 900)
	for i, c := range chunks {
		require.Equal(t, i, c.Index)
	}
}

func TestSplitOverlapContent(t *testing.T) {
	text := "abcdefghij"
	chunks, err := Split(text, 4, 2)
	require.NoError(t, err)
	got := make([]string, 0, len(chunks))
	for _, c := range chunks {
		got = append(got, c.Text)
	}
	require.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, got)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		require.True(t, strings.HasPrefix(chunks[i].Text, string(prev[len(prev)-2:])))
	}
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("é", 10)
	chunks, err := Split(text, 4, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, "éééé", chunks[0].Text)
	require.Equal(t, 3, chunks[1].Start)
}

func TestSplitCountMatchesFormula(t *testing.T) {
	tests := []struct {
		length, size, overlap int
	}{
		{1, 1000, 200},
		{200, 1000, 200},
		{1000, 1000, 200},
		{1001, 1000, 200},
		{1800, 1000, 200},
		{1801, 1000, 200},
		{10000, 1000, 0},
		{37, 5, 4},
	}
	for _, tt := range tests {
		chunks, err := Split(strings.Repeat("x", tt.length), tt.size, tt.overlap)
		require.NoError(t, err)
		require.Equal(t, Count(tt.length, tt.size, tt.overlap), len(chunks), "length=%d", tt.length)
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum ", 300)
	a, err := Split(text, 1000, 200)
	require.NoError(t, err)
	b, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSplitRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap above size", 100, 150},
		{"negative overlap", 100, -1},
		{"zero size", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split("text", tt.size, tt.overlap)
			require.True(t, errors.Is(err, appErr.ErrConfiguration))
			_, err = New(tt.size, tt.overlap)
			require.Error(t, err)
		})
	}
}

func TestChunkerSplit(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	require.Len(t, c.Split(strings.Repeat("b", 1500)), 2)
}
