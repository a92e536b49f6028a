// Package chunker splits long replies into transport-sized segments that keep code fences valid.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	fence      = "```"
	closeFence = "\n" + fence
	maxLangLen = 16
)

// Chunker errors
var (
	errNoRoom = errors.New("[chunker] no room for text")
)

// Chunk splits text into pieces of at most limit runes.
// Splits fall on whitespace unless a word is longer than limit/2,
// which is then cut at character boundary outside fence markers.
// Concatenating pieces reproduces text.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	c := &packer{limit: limit}
	for _, tok := range tokenize(text) {
		c.add(tok)
	}
	c.flush()
	return c.out
}

type packer struct {
	limit int
	cur   []rune
	out   []string
}

func (c *packer) room() int {
	return c.limit - len(c.cur)
}

func (c *packer) flush() {
	if len(c.cur) > 0 {
		c.out = append(c.out, string(c.cur))
		c.cur = c.cur[:0]
	}
}

func (c *packer) add(tok []rune) {
	for len(tok) > 0 {
		if len(tok) <= c.room() {
			c.cur = append(c.cur, tok...)
			return
		}

		word := !unicode.IsSpace(tok[0])

		// Short word moves whole to next piece
		if word && len(tok) <= c.limit/2 {
			c.flush()
			continue
		}

		cut := c.room()
		if word {
			cut = safeCut(tok, cut)
		}
		if cut == 0 {
			if len(c.cur) > 0 {
				c.flush()
				continue
			}
			cut = c.room()
		}

		c.cur = append(c.cur, tok[:cut]...)
		tok = tok[cut:]
		c.flush()
	}
}

// Moves cut left out of backtick run
func safeCut(tok []rune, cut int) int {
	for cut > 0 && cut < len(tok) && tok[cut-1] == '`' && tok[cut] == '`' {
		cut--
	}
	return cut
}

// Alternating runs of whitespace and non-whitespace
func tokenize(text string) [][]rune {
	var (
		toks  [][]rune
		cur   []rune
		space bool
	)
	for _, r := range text {
		s := unicode.IsSpace(r)
		if len(cur) > 0 && s != space {
			toks = append(toks, cur)
			cur = nil
		}
		space = s
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		toks = append(toks, cur)
	}
	return toks
}

// fenceMark is fence position in original text
type fenceMark struct {
	end  int // byte offset after marker
	lang string
}

// Finds fence markers; runs of more backticks count as one marker.
// Overlong language tags are dropped.
func scanFences(text string) []fenceMark {
	var marks []fenceMark
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], fence)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(fence)
		for end < len(text) && text[end] == '`' {
			end++
		}

		langEnd := end
		for langEnd < len(text) {
			r, size := utf8.DecodeRuneInString(text[langEnd:])
			if unicode.IsSpace(r) || r == '`' {
				break
			}
			langEnd += size
		}

		lang := text[end:langEnd]
		if utf8.RuneCountInString(lang) > maxLangLen {
			lang = ""
		}
		marks = append(marks, fenceMark{end: end, lang: lang})
		i = end
	}
	return marks
}

// BalanceFences closes fence open at end of each chunk and reopens it,
// with language of the opening marker, at start of next one.
// Chunks must concatenate to original.
func BalanceFences(original string, chunks []string) []string {
	marks := scanFences(original)
	if len(marks) == 0 || len(chunks) == 0 {
		return chunks
	}

	out := make([]string, len(chunks))
	var (
		open   bool
		lang   string
		offset int
		m      int
		reopen string
	)
	for i, chunk := range chunks {
		offset += len(chunk)
		for m < len(marks) && marks[m].end <= offset {
			open = !open
			if open {
				lang = marks[m].lang
			}
			m++
		}

		var sb strings.Builder
		sb.WriteString(reopen)
		sb.WriteString(chunk)
		reopen = ""
		if open {
			sb.WriteString(closeFence)
			reopen = fence + lang + "\n"
		}
		out[i] = sb.String()
	}
	return out
}

// Split chunks text, balances fences and appends disclaimer to every segment.
// Room for fences and disclaimer is reserved so no segment exceeds limit runes.
// Whitespace-only segments are dropped.
func Split(text string, limit int, disclaimer string) ([]string, error) {
	var (
		textLen       = utf8.RuneCountInString(text)
		disclaimerLen = utf8.RuneCountInString(disclaimer)
	)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", errNoRoom)
	}
	if textLen+disclaimerLen <= limit && len(scanFences(text))%2 == 0 {
		return []string{text + disclaimer}, nil
	}

	var longestLang int
	for _, mark := range scanFences(text) {
		longestLang = max(longestLang, utf8.RuneCountInString(mark.lang))
	}
	overhead := disclaimerLen + len(closeFence) + len(fence) + longestLang + 1

	budget := limit - overhead
	if budget < 2 {
		return nil, fmt.Errorf(
			"%w: limit %d, overhead %d", errNoRoom, limit, overhead,
		)
	}

	chunks := BalanceFences(text, Chunk(text, budget))
	segments := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) == "" {
			continue
		}
		segments = append(segments, c+disclaimer)
	}
	return segments, nil
}
