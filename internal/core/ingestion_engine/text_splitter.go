package ingestion_engine

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order; the first one present in the text wins.
// The empty separator always matches and splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// TextSplitter cuts text into overlapping chunks of at most ChunkSize
// characters. Lengths are counted in runes.
//
// The split is single-level: segments longer than ChunkSize are emitted whole
// rather than re-split with the next separator.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	return &TextSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Split greedily merges separator-delimited segments into chunks. When the
// next segment would overflow the current chunk, the chunk is emitted and its
// leading segments are dropped until what remains fits in ChunkOverlap; that
// tail seeds the next chunk.
func (s *TextSplitter) Split(text string) []string {
	if text == "" {
		return []string{}
	}

	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	sep := seps[len(seps)-1]
	for _, candidate := range seps {
		if strings.Contains(text, candidate) {
			sep = candidate
			break
		}
	}
	sepLen := utf8.RuneCountInString(sep)

	var (
		chunks  []string
		cur     []string
		curLens []int
		curLen  int
	)

	joinedLen := func() int {
		if len(cur) == 0 {
			return 0
		}
		n := sepLen * (len(cur) - 1)
		for _, l := range curLens {
			n += l
		}
		return n
	}

	for _, segment := range strings.Split(text, sep) {
		segLen := utf8.RuneCountInString(segment)

		extra := 0
		if len(cur) > 0 {
			extra = sepLen
		}
		if curLen+segLen+extra > s.ChunkSize && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, sep))

			for len(cur) > 0 && joinedLen() > s.ChunkOverlap {
				cur = cur[1:]
				curLens = curLens[1:]
			}
			curLen = joinedLen()
		}

		cur = append(cur, segment)
		curLens = append(curLens, segLen)
		if len(cur) > 1 {
			curLen += segLen + sepLen
		} else {
			curLen += segLen
		}
	}

	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, sep))
	}
	return chunks
}

// approxTokens estimates tokens as ceil(chars/4).
func approxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
