package widget

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	MinTermLength   = 2
)

// Suggester fetches names matching a partial term.
type Suggester interface {
	Suggest(ctx context.Context, term string) ([]string, error)
}

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// CurrentTerm is the trimmed text after the last comma.
func CurrentTerm(text string) string {
	if i := strings.LastIndexByte(text, ','); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

// TagInput is a comma-separated tag field with debounced suggestions.
// Each keystroke restarts the timer; only the latest issued request may
// update the suggestion list.
type TagInput struct {
	Suggester Suggester
	Delay     time.Duration
	MinChars  int
	AfterFunc func(d time.Duration, f func()) Timer
	// OnResults runs after the suggestion list is replaced.
	OnResults func(term string, results []string)
	OnError   func(term string, err error)

	mu      sync.Mutex
	text    string
	timer   Timer
	issued  uint64
	results []string
}

func NewTagInput(s Suggester) *TagInput {
	return &TagInput{
		Suggester: s,
		Delay:     DefaultDebounce,
		MinChars:  MinTermLength,
		AfterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
	}
}

// Type replaces the field's text, as an input event would.
func (t *TagInput) Type(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	term := CurrentTerm(text)
	if utf8.RuneCountInString(term) < t.MinChars {
		t.results = nil
		return
	}
	t.timer = t.AfterFunc(t.Delay, func() { t.fetch(term) })
}

func (t *TagInput) fetch(term string) {
	t.mu.Lock()
	t.issued++
	seq := t.issued
	t.mu.Unlock()

	results, err := t.Suggester.Suggest(context.Background(), term)

	t.mu.Lock()
	stale := seq != t.issued || CurrentTerm(t.text) != term
	if !stale && err == nil {
		t.results = results
	}
	onResults, onError := t.OnResults, t.OnError
	t.mu.Unlock()

	switch {
	case stale:
		log.Debug().Str("term", term).Msg("discarding stale suggestions")
	case err != nil:
		log.Warn().Err(err).Str("term", term).Msg("tag suggestions failed")
		if onError != nil {
			onError(term, err)
		}
	case onResults != nil:
		onResults(term, results)
	}
}

// Accept replaces the term being typed with s and starts a new one.
func (t *TagInput) Accept(s string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := ""
	if i := strings.LastIndexByte(t.text, ','); i >= 0 {
		prefix = strings.TrimRight(t.text[:i+1], " ") + " "
	}
	t.text = prefix + s + ", "
	t.results = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	return t.text
}

func (t *TagInput) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}

func (t *TagInput) Suggestions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.results...)
}

// Tags splits the field into trimmed, non-empty names.
func (t *TagInput) Tags() []string {
	return SplitTags(t.Text())
}

func SplitTags(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
