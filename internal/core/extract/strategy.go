package extract

import (
	"regexp"
	"strings"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// Document is the read-only view that every strategy inspects.
type Document struct {
	Text  string
	Lines []entity.StructuredLine
}

// Strategy yields a field value, or ok=false to defer to the next strategy.
type Strategy[T any] func(doc *Document) (T, bool)

// Cascade evaluates its strategies in order; the first hit wins and later
// strategies are not consulted.
type Cascade[T any] struct {
	Field      Field
	Strategies []Strategy[T]
	Default    T
}

// Run returns the first strategy result or the default.
func (c Cascade[T]) Run(doc *Document) T {
	for _, s := range c.Strategies {
		if v, ok := s(doc); ok {
			return v
		}
	}
	return c.Default
}

// captureFirst tries each pattern once, in order. The first pattern that
// matches decides: accept maps the first capture group to a value or rejects
// it, in which case the next pattern is tried.
func captureFirst[T any](patterns []*regexp.Regexp, accept func(string) (T, bool)) Strategy[T] {
	return func(doc *Document) (T, bool) {
		for _, re := range patterns {
			m := re.FindStringSubmatch(doc.Text)
			if len(m) < 2 {
				continue
			}
			if v, ok := accept(m[1]); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// captureAny is like captureFirst but also considers every later match of a
// pattern before moving on to the next pattern.
func captureAny[T any](patterns []*regexp.Regexp, accept func(string) (T, bool)) Strategy[T] {
	return func(doc *Document) (T, bool) {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(doc.Text, -1) {
				if len(m) < 2 {
					continue
				}
				if v, ok := accept(m[1]); ok {
					return v, true
				}
			}
		}
		var zero T
		return zero, false
	}
}

// lineScan looks for a line matching keyword, then searches that line and the
// following lines (window in total) with find.
func lineScan[T any](keyword func(string) bool, from, window int, find func(string) (T, bool)) Strategy[T] {
	return func(doc *Document) (T, bool) {
		for i, line := range doc.Lines {
			if !keyword(line.Text) {
				continue
			}
			for j := i + from; j < len(doc.Lines) && j < i+from+window; j++ {
				if v, ok := find(doc.Lines[j].Text); ok {
					return v, true
				}
			}
		}
		var zero T
		return zero, false
	}
}

// primaryThenFallback splits a pattern list into its primary entry and the
// remaining fallbacks, each with its own acceptance rule.
func primaryThenFallback[T any](patterns []*regexp.Regexp, primary, fallback func(string) (T, bool)) []Strategy[T] {
	if len(patterns) == 0 {
		return nil
	}
	return []Strategy[T]{
		captureFirst(patterns[:1], primary),
		captureFirst(patterns[1:], fallback),
	}
}

func trimmed(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func upper(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, s != ""
}

func validGST(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, IsValidGST(s)
}

func amount(s string) (float64, bool) {
	return ParseAmount(s), true
}

func percent(s string) (float64, bool) {
	return ParsePercent(s), true
}

func containsFold(s string, words ...string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
