package knowledge

import (
	"unicode"
)

// Default text chunking
const (
	DefaultChunkSize = 2000
	DefaultOverlap   = 400
)

// ChunkText splits text into pieces of about size runes.
// Every piece but the first starts overlap runes before its slot.
// Both ends are moved to word boundaries.
func ChunkText(text string, size int, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap = min(max(overlap, 0), size-1)

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	for slot := 0; slot < n; slot += size {
		start := slot
		if start != 0 {
			start -= overlap
		}
		for start > 0 && isWord(runes[start-1]) && isWord(runes[start]) {
			start--
		}

		end := min(slot+size, n)
		for end < n && isWord(runes[end-1]) && isWord(runes[end]) {
			end++
		}

		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
