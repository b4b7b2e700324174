package complexity

import (
	"strings"
	"testing"
)

func TestScoreEmptyIsMinimum(t *testing.T) {
	e := New(Weights{}, nil)
	s := e.Score("")
	if s.Value != 0 {
		t.Fatalf("expected 0 for empty input, got %v", s.Value)
	}
}

func TestScoreWithinUnitInterval(t *testing.T) {
	e := New(Weights{}, nil)
	inputs := []string{
		"hi",
		"The quick brown fox jumps over the lazy dog.",
		strings.Repeat("matrix tensor vector quantum theorem equation ", 500),
		strings.Repeat("{}[]()<>+-*/=;:", 100),
		"\xff\xfe broken encoding \xff",
	}
	for _, in := range inputs {
		s := e.Score(in)
		if s.Value < 0 || s.Value > 1 {
			t.Fatalf("score out of range for %q: %v", in[:min(len(in), 20)], s.Value)
		}
	}
}

func TestScoreMonotonicInLength(t *testing.T) {
	e := New(Weights{}, nil)
	prev := -1.0
	for _, n := range []int{10, 100, 1000, 5000, 20000} {
		s := e.Score(strings.Repeat("a", n))
		if s.Value < prev {
			t.Fatalf("score decreased with length %d: %v < %v", n, s.Value, prev)
		}
		prev = s.Value
	}
}

func TestScoreCountsTechnicalTerms(t *testing.T) {
	e := New(Weights{}, nil)
	plain := e.Score("tell me a story about a cat")
	technical := e.Score("derive the gradient of the loss function over the parameter matrix using the chain rule theorem")
	if technical.Value <= plain.Value {
		t.Fatalf("expected technical prompt to score higher: %v <= %v", technical.Value, plain.Value)
	}
	if technical.Terms == 0 {
		t.Fatalf("expected nonzero term factor")
	}
}

func TestScoreCountsStructuralChars(t *testing.T) {
	e := New(Weights{}, nil)
	prose := e.Score("a short sentence with no markup at all here")
	code := e.Score("func f(x int) int { return (x*x + 2*x) / (x - 1) }")
	if code.Struct <= prose.Struct {
		t.Fatalf("expected code to have higher structural factor: %v <= %v", code.Struct, prose.Struct)
	}
}

func TestScoreDeterministic(t *testing.T) {
	e := New(Weights{}, nil)
	in := "solve the integral of x^2 over [0, 1]"
	a := e.Score(in)
	b := e.Score(in)
	if a != b {
		t.Fatalf("score not deterministic: %+v vs %+v", a, b)
	}
}

func TestCustomWeightsAndTerms(t *testing.T) {
	e := New(Weights{Length: 0, Terms: 1, Struct: 0}, []string{"kubernetes"})
	s := e.Score("deploy to kubernetes")
	if s.Value == 0 {
		t.Fatalf("expected custom term to register")
	}
	none := e.Score("deploy the matrix tensor") // built-ins replaced
	if none.Terms != 0 {
		t.Fatalf("expected built-in terms to be replaced, got factor %v", none.Terms)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
