package ingestion_engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSplitter_Split(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "empty input",
			size: 1000, overlap: 200,
			text: "",
			want: []string{},
		},
		{
			name: "fits in one chunk",
			size: 1000, overlap: 200,
			text: "hello world",
			want: []string{"hello world"},
		},
		{
			name: "no overlap",
			size: 10, overlap: 0,
			text: "aaaa bbbb cccc",
			want: []string{"aaaa bbbb", "cccc"},
		},
		{
			name: "overlap carries the tail forward",
			size: 10, overlap: 4,
			text: "aaaa bbbb cccc dddd",
			want: []string{"aaaa bbbb", "bbbb cccc", "cccc dddd"},
		},
		{
			name: "oversized segment is emitted whole",
			size: 5, overlap: 0,
			text: "ab abcdefghij cd",
			want: []string{"ab", "abcdefghij", "cd"},
		},
		{
			name: "paragraph separator takes priority",
			size: 3, overlap: 0,
			text: "p1\n\np2 x",
			want: []string{"p1", "p2 x"},
		},
		{
			name: "character split when no separator occurs",
			size: 2, overlap: 0,
			text: "abcdef",
			want: []string{"ab", "cd", "ef"},
		},
		{
			name: "lengths are counted in characters",
			size: 5, overlap: 0,
			text: "héllo wörld",
			want: []string{"héllo", "wörld"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTextSplitter(tt.size, tt.overlap)
			assert.Equal(t, tt.want, s.Split(tt.text))
		})
	}
}

func TestTextSplitter_ChunksRespectSizeAndOverlap(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, fmt.Sprintf("w%03d", i))
	}
	text := strings.Join(words, " ")

	s := NewTextSplitter(50, 10)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 50, "chunk %d too long", i)
		if i == 0 {
			continue
		}
		first := strings.Fields(c)[0]
		assert.Contains(t, chunks[i-1], first, "chunk %d does not overlap its predecessor", i)
	}

	// every word survives somewhere
	joined := strings.Join(chunks, " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, approxTokens(""))
	assert.Equal(t, 1, approxTokens("abcd"))
	assert.Equal(t, 2, approxTokens("abcde"))
	assert.Equal(t, 250, approxTokens(strings.Repeat("x", 1000)))
}
