package playlist

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgnsrekt/lingoloop/playback"
)

// minSentenceLength drops fragments such as stray numbers.
const minSentenceLength = 3

var (
	markdownParser = goldmark.New()
	frontMatter    = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// abbreviations do not end a sentence when followed by a period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true, "jr": true,
	"st": true, "vs": true, "etc": true, "inc": true, "ltd": true, "co": true, "corp": true,
	"e.g": true, "i.e": true, "cf": true, "al": true, "ph.d": true, "u.s": true, "u.k": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
	"no": true, "vol": true, "p": true, "pp": true, "min": true, "sec": true,
}

// ParseMarkdown turns an article into a playlist, one sentence per entry.
// The sentences have no native rendering.
func ParseMarkdown(markdown, name, targetLang string) (*Playlist, error) {
	p := &Playlist{Name: name, TargetLang: targetLang}
	for _, s := range SplitSentences(StripMarkdown(markdown)) {
		p.Sentences = append(p.Sentences, playback.Sentence{
			TargetText: s,
			TargetLang: targetLang,
		})
	}
	if len(p.Sentences) == 0 {
		return nil, ErrNoSentences
	}
	return p, nil
}

// StripMarkdown reduces markdown to plain prose, one line per paragraph,
// heading or list item. Code, HTML and front matter are dropped.
func StripMarkdown(markdown string) string {
	source := []byte(frontMatter.ReplaceAllString(strings.ReplaceAll(markdown, "\r\n", "\n"), ""))
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil

		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			if !entering {
				b.WriteString("\n")
			}

		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(source))
				if n.SoftLineBreak() || n.HardLineBreak() {
					b.WriteString(" ")
				}
			}

		case *ast.String:
			if entering {
				b.Write(n.Value)
			}

		case *ast.AutoLink:
			if entering {
				b.Write(n.Label(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// SplitSentences splits prose at sentence-ending punctuation. Newlines
// always end a sentence. Full-width CJK marks end a sentence without a
// following space.
func SplitSentences(text string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
		if len([]rune(s)) >= minSentenceLength {
			out = append(out, s)
		}
	}

	for _, para := range strings.Split(text, "\n") {
		runes := []rune(para)
		start := 0
		for i := 0; i < len(runes); i++ {
			if !isTerminal(runes[i]) {
				continue
			}
			end := i + 1
			for end < len(runes) && (isTerminal(runes[end]) || isCloser(runes[end])) {
				end++
			}
			if sentenceEnds(runes, i, end) {
				add(string(runes[start:end]))
				start = end
			}
			i = end - 1
		}
		if start < len(runes) {
			add(string(runes[start:]))
		}
	}
	return out
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』', '）':
		return true
	}
	return false
}

// sentenceEnds decides whether the punctuation run runes[pos:end] ends a
// sentence.
func sentenceEnds(runes []rune, pos, end int) bool {
	switch runes[pos] {
	case '。', '！', '？':
		return true
	}
	if end >= len(runes) {
		return true
	}
	// "3.14", "example.com" and the like.
	if !unicode.IsSpace(runes[end]) {
		return false
	}
	if runes[pos] != '.' || end-pos > 1 {
		return true
	}

	word := wordBefore(runes, pos)
	if abbreviations[strings.ToLower(word)] {
		return false
	}
	// Initials such as "J. R. R. Tolkien".
	if len([]rune(word)) == 1 && unicode.IsUpper([]rune(word)[0]) {
		return false
	}

	next := end
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	return next >= len(runes) || !unicode.IsLower(runes[next])
}

// wordBefore returns the word ending at pos, without the period and any
// opening punctuation.
func wordBefore(runes []rune, pos int) string {
	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	return strings.TrimLeft(string(runes[start:pos]), `"'([“‘`)
}
