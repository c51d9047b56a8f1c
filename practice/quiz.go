package practice

import (
	"errors"
	"math/rand/v2"

	"github.com/dgnsrekt/lingoloop/playback"
)

// ErrNoSentences is returned when a quiz is started without sentences.
var ErrNoSentences = errors.New("no sentences to practice")

// Mode selects how answers are given.
type Mode int

const (
	// Writing answers are typed.
	Writing Mode = iota
	// Speaking answers come from speech recognition.
	Speaking
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Speaking {
		return "speaking"
	}
	return "writing"
}

// Progress summarizes a quiz.
type Progress struct {
	Current   int // 1-based position of the current sentence
	Total     int
	Correct   int
	Attempted int
}

// Percentage is the share of attempts answered correctly, rounded.
func (p Progress) Percentage() int {
	if p.Attempted == 0 {
		return 0
	}
	return (p.Correct*100 + p.Attempted/2) / p.Attempted
}

// Quiz walks a shuffled copy of a playlist and scores answers against each
// sentence's target text.
type Quiz struct {
	Mode Mode

	sentences []playback.Sentence
	index     int
	correct   int
	attempted int
}

// NewQuiz starts a quiz over a shuffled copy of sentences. rng may be nil.
func NewQuiz(sentences []playback.Sentence, mode Mode, rng *rand.Rand) (*Quiz, error) {
	if len(sentences) == 0 {
		return nil, ErrNoSentences
	}
	q := &Quiz{Mode: mode, sentences: append([]playback.Sentence(nil), sentences...)}
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(q.sentences), func(i, j int) {
		q.sentences[i], q.sentences[j] = q.sentences[j], q.sentences[i]
	})
	return q, nil
}

// Current returns the sentence being asked. ok is false once the quiz is
// complete.
func (q *Quiz) Current() (playback.Sentence, bool) {
	if q.Complete() {
		return playback.Sentence{}, false
	}
	return q.sentences[q.index], true
}

// Answer scores an answer for the current sentence.
func (q *Quiz) Answer(answer string) Result {
	s, ok := q.Current()
	if !ok {
		return Result{Answer: answer}
	}
	r := Check(answer, s.TargetText)
	q.attempted++
	if r.Correct {
		q.correct++
	}
	return r
}

// Next moves to the following sentence.
func (q *Quiz) Next() {
	if !q.Complete() {
		q.index++
	}
}

// Complete reports whether every sentence has been asked.
func (q *Quiz) Complete() bool { return q.index >= len(q.sentences) }

// Progress returns the current counters.
func (q *Quiz) Progress() Progress {
	return Progress{
		Current:   q.index + 1,
		Total:     len(q.sentences),
		Correct:   q.correct,
		Attempted: q.attempted,
	}
}
