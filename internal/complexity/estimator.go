// Package complexity scores prompt difficulty to guide tier selection.
package complexity

import (
	"strings"
	"unicode/utf8"
)

// Score is the combined complexity value plus the raw factors it was built from.
type Score struct {
	Value  float64 // combined, clipped to [0,1]
	Length float64 // normalized character-length factor
	Terms  float64 // normalized technical-term factor
	Struct float64 // normalized structural-character factor
}

// Weights controls how the three factors combine. They should sum to ~1.
type Weights struct {
	Length float64
	Terms  float64
	Struct float64
}

// DefaultWeights favor length and vocabulary over structure.
func DefaultWeights() Weights { return Weights{Length: 0.4, Terms: 0.4, Struct: 0.2} }

// Normalization caps: a factor saturates at 1.0 once its raw count reaches the cap.
const (
	lengthCap = 10000
	termCap   = 10
	structCap = 100
)

// structuralChars are characters typical of code, math and markup.
const structuralChars = "{}[]()<>+-*/\\=^;:"

var defaultTerms = []string{
	"algorithm", "function", "variable", "module", "tensor",
	"derivative", "integral", "matrix", "vector", "quantum",
	"regression", "neural network", "transformer", "attention",
	"parameter", "coefficient", "theorem", "equation",
}

// Estimator scores text deterministically. It never errors: malformed
// encoding is skipped, empty input yields the minimum score.
type Estimator struct {
	weights Weights
	terms   []string
}

// New builds an Estimator. Zero-valued weights fall back to defaults;
// an empty term list falls back to the built-in technical vocabulary.
func New(w Weights, terms []string) *Estimator {
	if w.Length == 0 && w.Terms == 0 && w.Struct == 0 {
		w = DefaultWeights()
	}
	if len(terms) == 0 {
		terms = defaultTerms
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return &Estimator{weights: w, terms: lowered}
}

// Score computes the complexity of text. Pure: identical input always
// produces identical output.
func (e *Estimator) Score(text string) Score {
	if text == "" {
		return Score{}
	}

	length := utf8.RuneCountInString(text)
	lengthFactor := clip01(float64(length) / lengthCap)

	lower := strings.ToLower(text)
	termHits := 0
	for _, t := range e.terms {
		if strings.Contains(lower, t) {
			termHits++
		}
	}
	termFactor := clip01(float64(termHits) / termCap)

	structural := 0
	for _, r := range text {
		if r == utf8.RuneError {
			continue
		}
		if strings.ContainsRune(structuralChars, r) {
			structural++
		}
	}
	structFactor := clip01(float64(structural) / structCap)

	v := e.weights.Length*lengthFactor + e.weights.Terms*termFactor + e.weights.Struct*structFactor
	return Score{
		Value:  clip01(v),
		Length: lengthFactor,
		Terms:  termFactor,
		Struct: structFactor,
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
