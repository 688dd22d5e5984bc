// Package extract finds callout codes and vocabulary words in OCR output.
//
// An Extractor runs four passes over one page:
//
//	token          regex matches inside each OCR token
//	block          regex matches inside paragraph text, only when the page has no tokens
//	reconstructed  codes split across two or three neighbouring tokens ("PT" + "-2")
//	word           alphabetic tokens sorted into semantic buckets
//
// Extraction is pure computation and safe for concurrent use.
package extract

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"callouts/internal/ocr"
)

const (
	// DefaultBlockConfidence is assigned to block fallback matches.
	DefaultBlockConfidence = 0.8

	// DefaultMaxMergeDistance bounds the center distance of merged tokens.
	DefaultMaxMergeDistance = 50.0

	// DefaultRowTolerance bounds the vertical offset of merged tokens.
	DefaultRowTolerance = 20.0

	// MinWordLength is the shortest token considered by the word pass.
	MinWordLength = 3
)

// Item types.
const (
	TypePattern = "pattern"
	TypeWord    = "word"
)

// Candidate sources.
const (
	SourceToken         = "token"
	SourceBlock         = "block"
	SourceReconstructed = "reconstructed"
)

// Candidate is one occurrence of a code or word on a page.
type Candidate struct {
	Key        string    `json:"key"`
	Type       string    `json:"type"`
	Category   string    `json:"category"`
	Page       int       `json:"page"`
	BBox       *ocr.Quad `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// Options configures an Extractor. Zero values select the defaults.
type Options struct {
	Patterns         []string
	Vocabulary       Vocabulary
	BlockConfidence  float64
	MaxMergeDistance float64
	RowTolerance     float64
}

// Extractor runs the extraction passes.
type Extractor struct {
	patterns         *PatternSet
	vocabulary       Vocabulary
	blockConfidence  float64
	maxMergeDistance float64
	rowTolerance     float64
}

// New creates an Extractor.
func New(opts Options) (*Extractor, error) {
	exprs := opts.Patterns
	if len(exprs) == 0 {
		exprs = DefaultPatterns
	}
	patterns, err := CompilePatterns(exprs)
	if err != nil {
		return nil, err
	}

	e := &Extractor{
		patterns:         patterns,
		vocabulary:       opts.Vocabulary,
		blockConfidence:  opts.BlockConfidence,
		maxMergeDistance: opts.MaxMergeDistance,
		rowTolerance:     opts.RowTolerance,
	}
	if e.vocabulary == nil {
		e.vocabulary = DefaultVocabulary()
	}
	if e.blockConfidence <= 0 {
		e.blockConfidence = DefaultBlockConfidence
	}
	if e.maxMergeDistance <= 0 {
		e.maxMergeDistance = DefaultMaxMergeDistance
	}
	if e.rowTolerance <= 0 {
		e.rowTolerance = DefaultRowTolerance
	}
	return e, nil
}

// NewDefault creates an Extractor with the built-in patterns and vocabulary.
func NewDefault() *Extractor {
	e, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return e
}

// Patterns exposes the compiled pattern set.
func (e *Extractor) Patterns() *PatternSet { return e.patterns }

// Extract returns all candidates found on page. Pattern candidates come
// first (token, block, reconstructed), then words.
func (e *Extractor) Extract(page int, text *ocr.PageText) []Candidate {
	if text == nil {
		return nil
	}

	var out []Candidate
	out = append(out, e.tokenPass(page, text.Tokens)...)
	if len(text.Tokens) == 0 {
		out = e.blockPass(page, text.Paragraphs, out)
	}
	out = append(out, e.reconstructPass(page, text.Tokens)...)
	out = append(out, e.wordPass(page, text.Tokens)...)
	return out
}

func (e *Extractor) tokenPass(page int, tokens []ocr.Token) []Candidate {
	var out []Candidate
	for _, tok := range tokens {
		for _, key := range e.patterns.FindAll(tok.Text) {
			bbox := tok.BBox
			out = append(out, Candidate{
				Key:        key,
				Type:       TypePattern,
				Category:   Categorize(key),
				Page:       page,
				BBox:       &bbox,
				Confidence: tok.Confidence,
				Source:     SourceToken,
			})
		}
	}
	return out
}

// blockPass appends paragraph-level matches to existing. A match is dropped
// when a candidate with the same key on this page exists and both carry a box;
// box positions are not compared.
func (e *Extractor) blockPass(page int, paragraphs []ocr.Paragraph, existing []Candidate) []Candidate {
	out := existing
	for _, para := range paragraphs {
		for _, key := range e.patterns.FindAll(para.Text) {
			var bbox *ocr.Quad
			if para.BBox != nil {
				q := *para.BBox
				bbox = &q
			}
			if bbox != nil && hasBoxedDuplicate(out, key, page) {
				continue
			}
			out = append(out, Candidate{
				Key:        key,
				Type:       TypePattern,
				Category:   Categorize(key),
				Page:       page,
				BBox:       bbox,
				Confidence: e.blockConfidence,
				Source:     SourceBlock,
			})
		}
	}
	return out
}

func hasBoxedDuplicate(cands []Candidate, key string, page int) bool {
	for _, c := range cands {
		if c.Key == key && c.Page == page && c.BBox != nil {
			return true
		}
	}
	return false
}

// reconstructPass merges codes split across neighbouring tokens. Tokens are
// put in reading order by (center y, center x). Windows of three are tried
// before pairs and accepted windows do not overlap. A window is skipped when
// any of its tokens already contains a code on its own, so a stray prefix
// next to a complete code ("P" beside "T-1") never yields a longer code.
// The complete code is still reported by the token pass.
func (e *Extractor) reconstructPass(page int, tokens []ocr.Token) []Candidate {
	if len(tokens) < 2 {
		return nil
	}

	ordered := make([]ocr.Token, len(tokens))
	copy(ordered, tokens)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := ordered[i].BBox.Center(), ordered[j].BBox.Center()
		if ci.Y != cj.Y {
			return ci.Y < cj.Y
		}
		return ci.X < cj.X
	})

	standalone := make([]bool, len(ordered))
	for i, tok := range ordered {
		standalone[i] = e.patterns.Contains(tok.Text)
	}

	var out []Candidate
	for i := 0; i < len(ordered)-1; {
		if cands := e.tryMerge(page, ordered, standalone, i, 3); len(cands) > 0 {
			out = append(out, cands...)
			i += 3
			continue
		}
		if cands := e.tryMerge(page, ordered, standalone, i, 2); len(cands) > 0 {
			out = append(out, cands...)
			i += 2
			continue
		}
		i++
	}
	return out
}

// tryMerge joins a window of tokens and returns one candidate per code found
// in the joined text. Punctuation around the code ("PT" + "-2,") is dropped
// from the key; the box still covers the whole window.
func (e *Extractor) tryMerge(page int, ordered []ocr.Token, standalone []bool, start, size int) []Candidate {
	if start+size > len(ordered) {
		return nil
	}
	window := ordered[start : start+size]
	for k := range window {
		if standalone[start+k] {
			return nil
		}
		if k > 0 && !e.adjacent(window[k-1], window[k]) {
			return nil
		}
	}

	// Concatenate left to right so row jitter does not reverse the parts.
	parts := make([]ocr.Token, size)
	copy(parts, window)
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].BBox.Center().X < parts[j].BBox.Center().X
	})

	var (
		text  strings.Builder
		quads = make([]ocr.Quad, 0, size)
		conf  float64
	)
	for _, tok := range parts {
		text.WriteString(strings.TrimSpace(tok.Text))
		quads = append(quads, tok.BBox)
		conf += tok.Confidence
	}

	matches := e.patterns.FindAll(text.String())
	if len(matches) == 0 {
		return nil
	}

	bbox := ocr.Union(quads...)
	out := make([]Candidate, 0, len(matches))
	for _, code := range matches {
		box := bbox
		out = append(out, Candidate{
			Key:        code,
			Type:       TypePattern,
			Category:   Categorize(code),
			Page:       page,
			BBox:       &box,
			Confidence: conf / float64(size),
			Source:     SourceReconstructed,
		})
	}
	return out
}

func (e *Extractor) adjacent(a, b ocr.Token) bool {
	ca, cb := a.BBox.Center(), b.BBox.Center()
	return ocr.Distance(ca, cb) < e.maxMergeDistance && math.Abs(ca.Y-cb.Y) < e.rowTolerance
}

func (e *Extractor) wordPass(page int, tokens []ocr.Token) []Candidate {
	var out []Candidate
	for _, tok := range tokens {
		word := strings.TrimFunc(tok.Text, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len([]rune(word)) < MinWordLength || !isAlphabetic(word) {
			continue
		}
		if e.patterns.Contains(word) {
			continue
		}
		key := strings.ToLower(word)
		bbox := tok.BBox
		out = append(out, Candidate{
			Key:        key,
			Type:       TypeWord,
			Category:   e.vocabulary.Classify(key),
			Page:       page,
			BBox:       &bbox,
			Confidence: tok.Confidence,
			Source:     SourceToken,
		})
	}
	return out
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
