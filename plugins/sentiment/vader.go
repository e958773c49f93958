package sentiment

import (
	"github.com/jonreiter/govader"
)

// Vader is the VADER lexicon analyzer.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader loads the VADER lexicon. The result is not safe for concurrent
// use; wrap it with Serialized before sharing it between calls.
func NewVader() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Scores implements Analyzer.
func (v *Vader) Scores(text string) (Scores, error) {
	s := v.analyzer.PolarityScores(text)
	return Scores{
		Neg:      s.Negative,
		Neu:      s.Neutral,
		Pos:      s.Positive,
		Compound: s.Compound,
	}, nil
}
