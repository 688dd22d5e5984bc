package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns are the callout code expressions, tried in order.
var DefaultPatterns = []string{
	`\b[A-Z]-?\d+\b`,      // A-3, M2, E12
	`\b[A-Z]{2}-\d+\b`,    // PT-1
	`\b[A-Z]{2}\d{1,3}\b`, // PT12
}

// PatternSet is an ordered list of compiled, case-insensitive callout patterns.
type PatternSet struct {
	find []*regexp.Regexp
}

// CompilePatterns compiles expressions into a PatternSet. Each expression is
// made case-insensitive.
func CompilePatterns(exprs []string) (*PatternSet, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("extract: at least one pattern is required")
	}
	ps := &PatternSet{}
	for _, expr := range exprs {
		find, err := regexp.Compile(`(?i)` + expr)
		if err != nil {
			return nil, fmt.Errorf("extract: compile pattern %q: %w", expr, err)
		}
		ps.find = append(ps.find, find)
	}
	return ps, nil
}

// MustCompilePatterns is like CompilePatterns but panics on error.
func MustCompilePatterns(exprs []string) *PatternSet {
	ps, err := CompilePatterns(exprs)
	if err != nil {
		panic(err)
	}
	return ps
}

// FindAll returns the distinct uppercase matches in text, in pattern order
// and then position order.
func (ps *PatternSet) FindAll(text string) []string {
	upper := strings.ToUpper(text)
	var out []string
	seen := map[string]bool{}
	for _, re := range ps.find {
		for _, m := range re.FindAllString(upper, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Contains reports whether any pattern occurs in text.
func (ps *PatternSet) Contains(text string) bool {
	upper := strings.ToUpper(text)
	for _, re := range ps.find {
		if re.MatchString(upper) {
			return true
		}
	}
	return false
}
