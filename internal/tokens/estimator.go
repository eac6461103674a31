// Package tokens approximates LM token counts from text length. Estimates
// gate quota checks before a call; provider-reported usage always wins
// afterwards.
package tokens

import "unicode/utf8"

// DefaultCharsPerToken is the usual ratio for English text.
const DefaultCharsPerToken = 4

// Estimator maps text to an approximate token count. The zero value uses
// DefaultCharsPerToken.
type Estimator struct {
	CharsPerToken int
}

// Estimate returns ceil(runes / CharsPerToken); 0 for empty text. It is
// deterministic and non-decreasing in text length.
func (e Estimator) Estimate(text string) int {
	per := e.CharsPerToken
	if per <= 0 {
		per = DefaultCharsPerToken
	}
	n := utf8.RuneCountInString(text)
	return (n + per - 1) / per
}

// EstimateAll sums Estimate over texts.
func (e Estimator) EstimateAll(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += e.Estimate(t)
	}
	return total
}

// Estimate uses the default ratio.
func Estimate(text string) int { return Estimator{}.Estimate(text) }
