// Package sentiment implements the bundled text functions of the plugin:
// VADER sentiment scoring and tweet cleansing, row-wise and as tables.
package sentiment

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Scores holds the polarity scores of one text.
type Scores struct {
	Neg      float64
	Neu      float64
	Pos      float64
	Compound float64
}

// Score selects a single score for the row-wise sentiment function.
type Score string

const (
	ScoreAll      Score = "all"
	ScorePositive Score = "pos"
	ScoreNegative Score = "neg"
	ScoreNeutral  Score = "neu"
	ScoreCompound Score = "comp"
)

// String renders all scores as "neg: x| neu: y| pos: z| compound: w|".
func (s Scores) String() string {
	var b strings.Builder
	for _, kv := range []struct {
		name  string
		value float64
	}{
		{"neg", s.Neg},
		{"neu", s.Neu},
		{"pos", s.Pos},
		{"compound", s.Compound},
	} {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv.name)
		b.WriteString(": ")
		b.WriteString(formatScore(kv.value))
		b.WriteByte('|')
	}
	return b.String()
}

// Select renders the score named by sel. Unknown selectors yield the
// compound score.
func (s Scores) Select(sel Score) string {
	switch sel {
	case ScoreAll:
		return s.String()
	case ScorePositive:
		return formatScore(s.Pos)
	case ScoreNegative:
		return formatScore(s.Neg)
	case ScoreNeutral:
		return formatScore(s.Neu)
	default:
		return formatScore(s.Compound)
	}
}

// formatScore always keeps a fractional part, so 0 renders as "0.0".
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// Analyzer scores the sentiment of a text. Implementations must be safe
// for concurrent use.
type Analyzer interface {
	Scores(text string) (Scores, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(text string) (Scores, error)

// Scores calls f.
func (f AnalyzerFunc) Scores(text string) (Scores, error) {
	return f(text)
}

// Serialized wraps an analyzer that is not safe for concurrent use.
func Serialized(a Analyzer) Analyzer {
	return &serialized{a: a}
}

type serialized struct {
	mu sync.Mutex
	a  Analyzer
}

func (s *serialized) Scores(text string) (Scores, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Scores(text)
}

// Result is the per-row outcome of a text function. A failed row is
// rendered as an "Error: <msg>" cell instead of failing the call.
type Result struct {
	Value string
	Err   error
}

// String renders the result cell.
func (r Result) String() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Value
}

// analyze scores text and recovers analyzer panics into a row error.
func analyze(a Analyzer, text string, render func(Scores) string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("analyzer panicked: %v", r)}
		}
	}()
	scores, err := a.Scores(text)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: render(scores)}
}
