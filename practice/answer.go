// Package practice checks spoken or typed answers against the sentences of
// a playlist.
package practice

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// punctuation lists the marks stripped before comparison in addition to the
// ASCII ones, so full-width CJK marks and typographic quotes do not count.
const punctuation = ".,!?;:'\"“”‘’、。，！？；：「」『』…—–-()[]{}"

var lower = cases.Lower(language.Und)

// Normalize prepares text for comparison: NFC, lowercase, punctuation
// removed and whitespace collapsed.
func Normalize(text string) string {
	text = lower.String(norm.NFC.String(text))
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

// Distance returns the Levenshtein distance between a and b in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similarity returns how alike a and b are as a rounded percentage of the
// longer string. Two empty strings are 100% alike.
func Similarity(a, b string) int {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	d := Distance(a, b)
	return int(float64(longest-d)/float64(longest)*100 + 0.5)
}

// Result is the outcome of checking one answer.
type Result struct {
	Correct    bool
	Answer     string // As given
	Expected   string // As stored in the playlist
	Similarity int    // 0-100, over the normalized forms
}

// Check compares an answer with the expected text after normalizing both.
func Check(answer, expected string) Result {
	na, ne := Normalize(answer), Normalize(expected)
	return Result{
		Correct:    na == ne,
		Answer:     answer,
		Expected:   expected,
		Similarity: Similarity(na, ne),
	}
}

// WordStatus classifies a word in a diff.
type WordStatus int

const (
	// WordMatch is a word present at the same position in both texts.
	WordMatch WordStatus = iota
	// WordWrong is an answer word that differs from the expected one.
	WordWrong
	// WordMissing is an expected word the answer got wrong or left out.
	WordMissing
)

// Word is one entry of a word diff.
type Word struct {
	Text   string
	Status WordStatus
}

// Diff compares answer and expected position by position, word by word. It
// returns the annotated answer words and the annotated expected words.
func Diff(answer, expected string) (got, want []Word) {
	aw := strings.Fields(lower.String(answer))
	ew := strings.Fields(lower.String(expected))

	for i := 0; i < max(len(aw), len(ew)); i++ {
		var a, e string
		if i < len(aw) {
			a = aw[i]
		}
		if i < len(ew) {
			e = ew[i]
		}
		if a == e {
			got = append(got, Word{a, WordMatch})
			want = append(want, Word{e, WordMatch})
			continue
		}
		if a != "" {
			got = append(got, Word{a, WordWrong})
		}
		if e != "" {
			want = append(want, Word{e, WordMissing})
		}
	}
	return got, want
}
